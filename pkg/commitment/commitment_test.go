package commitment

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

func hashOf(b byte) chainhash.Hash {
	return chainhash.DoubleHashH([]byte{b})
}

func TestExtract(t *testing.T) {
	want := hashOf(7)
	coinbase := append([]byte{0x01, 0x00, 0x00, 0x00, 0xAB}, Marker...)
	coinbase = append(coinbase, want[:]...)
	coinbase = append(coinbase, 0x00, 0x00)

	got, ok := Extract(coinbase)
	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestExtractMissingMarker(t *testing.T) {
	_, ok := Extract([]byte{0x01, 0x02, 0x03, 0x6a, 0x24})
	require.False(t, ok)
}

func TestExtractZeroPlaceholder(t *testing.T) {
	coinbase := append([]byte{}, Marker...)
	coinbase = append(coinbase, make([]byte, 32)...)
	_, ok := Extract(coinbase)
	require.False(t, ok)
}

func TestExtractTruncatedCommitment(t *testing.T) {
	coinbase := append([]byte{}, Marker...)
	coinbase = append(coinbase, 0x11, 0x22, 0x33)
	_, ok := Extract(coinbase)
	require.False(t, ok)
}

func TestExtractLastOccurrenceWins(t *testing.T) {
	first, second := hashOf(1), hashOf(2)
	coinbase := append([]byte{}, Marker...)
	coinbase = append(coinbase, first[:]...)
	coinbase = append(coinbase, Marker...)
	coinbase = append(coinbase, second[:]...)

	got, ok := Extract(coinbase)
	require.True(t, ok)
	require.Equal(t, second, got)
}

func TestComputeVerifyLaw(t *testing.T) {
	root, reserved := hashOf(3), hashOf(4)
	commit := Compute(root, reserved)
	require.True(t, Verify(root, reserved, commit))

	flippedRoot := root
	flippedRoot[0] ^= 0x01
	require.False(t, Verify(flippedRoot, reserved, commit))

	flippedReserved := reserved
	flippedReserved[31] ^= 0x80
	require.False(t, Verify(root, flippedReserved, commit))

	flippedCommit := commit
	flippedCommit[16] ^= 0x10
	require.False(t, Verify(root, reserved, flippedCommit))
}
