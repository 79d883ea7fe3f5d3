package prover

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"btc-prover/pkg/commitment"
	"btc-prover/pkg/merkle"
	"btc-prover/pkg/node"
	"btc-prover/pkg/txcodec"
)

// zeroHash doubles as the coinbase leaf of the witness tree and the default
// reserved value.
var zeroHash chainhash.Hash

// assemble builds a complete proof set from a fetched block. The caller has
// already located the target at index idx, decoded it into parsed, and
// recovered its witness section bytes and the coinbase reserved value.
//
// The computed txid root must match the block header root; a disagreement
// is fatal, not advisory.
func assemble(blk *node.Block, txs []node.TxRecord, idx int, parsed *txcodec.Transaction,
	witnessBytes []byte, reserved chainhash.Hash, policy CommitmentPolicy) (*ProofSet, error) {

	txidLeaves := make([]chainhash.Hash, len(txs))
	for i := range txs {
		txidLeaves[i] = txs[i].TxID
	}

	root := merkle.BuildRoot(txidLeaves)
	if root != blk.MerkleRoot {
		return nil, fmt.Errorf("%w: computed %s, header %s", ErrMerkleRootMismatch, root, blk.MerkleRoot)
	}

	// The coinbase proof is always built as a cross-check artifact.
	coinbaseProof, err := merkle.BuildProof(0, txidLeaves)
	if err != nil {
		return nil, err
	}

	ps := &ProofSet{
		TxID:          txs[idx].TxID,
		TxIndex:       idx,
		Height:        blk.Height,
		Header:        blk.Header,
		TreeDepth:     coinbaseProof.Depth,
		MerkleRoot:    root,
		CoinbaseProof: coinbaseProof,
		Parsed:        parsed,
		WitnessBytes:  witnessBytes,
		CoinbaseHex:   txs[0].RawHex,
	}

	if !txs[idx].Segwit() {
		if ps.TxProof, err = merkle.BuildProof(idx, txidLeaves); err != nil {
			return nil, err
		}
		return ps, nil
	}

	wtxidLeaves := make([]chainhash.Hash, len(txs))
	for i := 1; i < len(txs); i++ {
		wtxidLeaves[i] = txs[i].WTxID
	}
	wtxidLeaves[0] = zeroHash

	wproof, err := merkle.BuildProof(idx, wtxidLeaves)
	if err != nil {
		return nil, err
	}
	wroot := merkle.BuildRoot(wtxidLeaves)

	ps.Witness, err = resolveWitness(txs[0].RawHex, wroot, reserved, wproof, policy)
	if err != nil {
		return nil, err
	}
	return ps, nil
}

// resolveWitness ties the witness merkle root to the commitment embedded in
// the coinbase output script. The extracted value is authoritative; the
// supplied reserved value is tried first and the all-zero convention second,
// since reported reserved fields are frequently placeholders.
func resolveWitness(coinbaseHex string, wroot, reserved chainhash.Hash,
	wproof *merkle.Proof, policy CommitmentPolicy) (*WitnessSection, error) {

	cbRaw, err := hex.DecodeString(coinbaseHex)
	if err != nil {
		return nil, fmt.Errorf("%w: bad coinbase hex: %v", ErrMalformedTx, err)
	}

	if extracted, ok := commitment.Extract(cbRaw); ok {
		if commitment.Verify(wroot, reserved, extracted) {
			return &WitnessSection{
				Commitment: extracted,
				Reserved:   reserved,
				Root:       wroot,
				Proof:      wproof,
			}, nil
		}
		if reserved != zeroHash && commitment.Verify(wroot, zeroHash, extracted) {
			return &WitnessSection{
				Commitment: extracted,
				Reserved:   zeroHash,
				Root:       wroot,
				Proof:      wproof,
			}, nil
		}
	}

	if policy == PolicyDegrade {
		return &WitnessSection{
			Root:     wroot,
			Proof:    wproof,
			Degraded: true,
		}, nil
	}
	return nil, fmt.Errorf("%w: coinbase carries no commitment matching witness root %s",
		ErrCommitmentNotFound, wroot)
}

// findTx returns the canonical index of target in the block, or -1.
func findTx(txs []node.TxRecord, target chainhash.Hash) int {
	for i := range txs {
		if txs[i].TxID == target {
			return i
		}
	}
	return -1
}
