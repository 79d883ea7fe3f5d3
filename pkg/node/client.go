// Package node talks to a bitcoin full node over JSON-RPC and shapes the
// responses into the records the prover consumes.
package node

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/rpcclient"
	"github.com/btcsuite/btclog"
	lru "github.com/hashicorp/golang-lru/v2"
)

// ErrUnconfirmed is returned when the node knows a transaction but reports
// no containing block for it.
var ErrUnconfirmed = errors.New("node: transaction has no containing block")

const defaultBlockCacheSize = 16

// Config carries the RPC endpoint settings. Host is host:port without a
// scheme, as rpcclient expects.
type Config struct {
	Host       string `toml:"host"`
	User       string `toml:"user"`
	Pass       string `toml:"pass"`
	DisableTLS bool   `toml:"disable_tls"`

	BlockCacheSize int `toml:"block_cache_size"`
}

// TxRecord is one transaction of a fetched block. Both ids are in internal
// byte order; RawHex is the node-reported serialization.
type TxRecord struct {
	TxID   chainhash.Hash
	WTxID  chainhash.Hash
	RawHex string
}

// Segwit reports whether the transaction commits to witness data.
func (t *TxRecord) Segwit() bool {
	return t.TxID != t.WTxID
}

// Block is an immutable snapshot of a block with its full transaction list,
// in canonical order (index 0 is the coinbase).
type Block struct {
	Hash       chainhash.Hash
	Height     int64
	MerkleRoot chainhash.Hash
	Header     []byte
	Txs        []TxRecord
}

// Client wraps the JSON-RPC connection. Fetched blocks are kept in a small
// LRU so concurrent proof jobs over the same block hit the node once.
type Client struct {
	rpc    *rpcclient.Client
	blocks *lru.Cache[chainhash.Hash, *Block]
	log    btclog.Logger
}

func New(cfg Config, log btclog.Logger) (*Client, error) {
	if log == nil {
		log = btclog.Disabled
	}
	rpc, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         cfg.Host,
		User:         cfg.User,
		Pass:         cfg.Pass,
		HTTPPostMode: true,
		DisableTLS:   cfg.DisableTLS,
	}, nil)
	if err != nil {
		return nil, err
	}

	size := cfg.BlockCacheSize
	if size <= 0 {
		size = defaultBlockCacheSize
	}
	blocks, err := lru.New[chainhash.Hash, *Block](size)
	if err != nil {
		return nil, err
	}

	return &Client{rpc: rpc, blocks: blocks, log: log}, nil
}

// Block fetches a block by hash with its full transaction list and the
// serialized 80-byte header.
func (c *Client) Block(hash *chainhash.Hash) (*Block, error) {
	if blk, ok := c.blocks.Get(*hash); ok {
		return blk, nil
	}

	verbose, err := c.rpc.GetBlockVerboseTx(hash)
	if err != nil {
		return nil, fmt.Errorf("node: getblock %s: %w", hash, err)
	}
	header, err := c.rpc.GetBlockHeader(hash)
	if err != nil {
		return nil, fmt.Errorf("node: getblockheader %s: %w", hash, err)
	}
	var hdr bytes.Buffer
	if err := header.Serialize(&hdr); err != nil {
		return nil, err
	}

	root, err := chainhash.NewHashFromStr(verbose.MerkleRoot)
	if err != nil {
		return nil, fmt.Errorf("node: bad merkle root %q: %w", verbose.MerkleRoot, err)
	}

	txs := make([]TxRecord, 0, len(verbose.Tx))
	for _, tx := range verbose.Tx {
		txid, err := chainhash.NewHashFromStr(tx.Txid)
		if err != nil {
			return nil, fmt.Errorf("node: bad txid %q: %w", tx.Txid, err)
		}
		// The "hash" field of getblock verbosity 2 is the wtxid.
		wtxid, err := chainhash.NewHashFromStr(tx.Hash)
		if err != nil {
			return nil, fmt.Errorf("node: bad wtxid %q: %w", tx.Hash, err)
		}
		txs = append(txs, TxRecord{TxID: *txid, WTxID: *wtxid, RawHex: tx.Hex})
	}

	blk := &Block{
		Hash:       *hash,
		Height:     verbose.Height,
		MerkleRoot: *root,
		Header:     hdr.Bytes(),
		Txs:        txs,
	}
	c.blocks.Add(*hash, blk)
	c.log.Debugf("fetched block %s height %d with %d txs", hash, blk.Height, len(txs))
	return blk, nil
}

// BlockForTx locates the block containing txid via getrawtransaction and
// fetches it.
func (c *Client) BlockForTx(txid *chainhash.Hash) (*Block, error) {
	raw, err := c.rpc.GetRawTransactionVerbose(txid)
	if err != nil {
		return nil, fmt.Errorf("node: getrawtransaction %s: %w", txid, err)
	}
	if raw.BlockHash == "" {
		return nil, ErrUnconfirmed
	}
	hash, err := chainhash.NewHashFromStr(raw.BlockHash)
	if err != nil {
		return nil, fmt.Errorf("node: bad block hash %q: %w", raw.BlockHash, err)
	}
	return c.Block(hash)
}

// EstimateFee passes through estimatesmartfee and returns the rate in
// BTC/kvB.
func (c *Client) EstimateFee(confTarget int64) (float64, error) {
	mode := btcjson.EstimateModeConservative
	res, err := c.rpc.EstimateSmartFee(confTarget, &mode)
	if err != nil {
		return 0, err
	}
	if res.FeeRate == nil {
		return 0, fmt.Errorf("node: estimatesmartfee: %v", res.Errors)
	}
	return *res.FeeRate, nil
}

// Close shuts down the RPC connection.
func (c *Client) Close() {
	c.rpc.Shutdown()
}
