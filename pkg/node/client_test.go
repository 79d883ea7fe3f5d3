package node

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

func TestTxRecordSegwit(t *testing.T) {
	id := chainhash.DoubleHashH([]byte("tx"))
	legacy := TxRecord{TxID: id, WTxID: id}
	require.False(t, legacy.Segwit())

	wid := chainhash.DoubleHashH([]byte("wtx"))
	segwit := TxRecord{TxID: id, WTxID: wid}
	require.True(t, segwit.Segwit())
}

func TestNewDefaultsCacheSize(t *testing.T) {
	c, err := New(Config{Host: "127.0.0.1:8332", User: "u", Pass: "p", DisableTLS: true}, nil)
	require.NoError(t, err)
	defer c.Close()
	require.NotNil(t, c.blocks)
}
