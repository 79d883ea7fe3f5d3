package prover

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"btc-prover/pkg/merkle"
	"btc-prover/pkg/txcodec"
)

// CommitmentPolicy decides what happens to a segwit proof whose witness
// commitment cannot be resolved.
type CommitmentPolicy string

const (
	// PolicyStrict fails the request with ErrCommitmentNotFound.
	PolicyStrict CommitmentPolicy = "strict"
	// PolicyDegrade returns the proof with the commitment fields absent.
	PolicyDegrade CommitmentPolicy = "degrade"
)

// WitnessSection is the segwit part of a proof set. When Degraded is true
// the commitment could not be resolved and Commitment/Reserved are unset;
// the witness merkle proof itself is still present.
type WitnessSection struct {
	Commitment chainhash.Hash
	Reserved   chainhash.Hash
	Root       chainhash.Hash
	Proof      *merkle.Proof
	Degraded   bool
}

// ProofSet is the final artifact: everything an on-chain verifier needs to
// check that one transaction is included in one block. It is immutable once
// assembled and safe to cache forever. Witness is nil for legacy targets,
// TxProof is nil for segwit targets.
type ProofSet struct {
	TxID          chainhash.Hash
	TxIndex       int
	Height        int64
	Header        []byte
	TreeDepth     int
	MerkleRoot    chainhash.Hash
	TxProof       *merkle.Proof
	CoinbaseProof *merkle.Proof
	Witness       *WitnessSection
	Parsed        *txcodec.Transaction
	WitnessBytes  []byte
	CoinbaseHex   string
}

// Segwit reports which variant of the proof set this is.
func (p *ProofSet) Segwit() bool {
	return p.Witness != nil
}
