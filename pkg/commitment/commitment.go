// Package commitment extracts and recomputes the segwit witness commitment
// carried by a block's coinbase transaction.
package commitment

import (
	"bytes"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Marker is the OP_RETURN witness commitment header: OP_RETURN, push of 36
// bytes, and the 4-byte commitment tag defined by BIP141.
var Marker = []byte{0x6a, 0x24, 0xaa, 0x21, 0xa9, 0xed}

// Extract scans a serialized coinbase transaction for the commitment marker
// and returns the 32 bytes that follow it. When several outputs carry the
// marker the last occurrence wins, matching the highest-output-index rule.
// An all-zero value is a placeholder, not a commitment, and reports false.
func Extract(coinbase []byte) (chainhash.Hash, bool) {
	var h chainhash.Hash
	idx := bytes.LastIndex(coinbase, Marker)
	if idx < 0 || idx+len(Marker)+chainhash.HashSize > len(coinbase) {
		return h, false
	}
	copy(h[:], coinbase[idx+len(Marker):idx+len(Marker)+chainhash.HashSize])
	if h == (chainhash.Hash{}) {
		return h, false
	}
	return h, true
}

// Compute returns doubleSHA256(witnessMerkleRoot || reservedValue).
func Compute(witnessRoot, reserved chainhash.Hash) chainhash.Hash {
	var buf [64]byte
	copy(buf[:32], witnessRoot[:])
	copy(buf[32:], reserved[:])
	return chainhash.DoubleHashH(buf[:])
}

// Verify checks a claimed commitment against the recomputed one.
func Verify(witnessRoot, reserved, expected chainhash.Hash) bool {
	return Compute(witnessRoot, reserved) == expected
}
