package prover

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"btc-prover/pkg/merkle"
)

// encodedProofSet is the shape consumed by the on-chain verifier: hash
// fields hex-encoded, proof branches flattened into consecutive fixed
// 32-byte chunks in internal byte order.
type encodedProofSet struct {
	TxID          string `json:"txId"`
	TxIndex       int    `json:"txIndex"`
	Height        int64  `json:"height"`
	Header        string `json:"header"`
	TreeDepth     int    `json:"treeDepth"`
	MerkleRoot    string `json:"merkleRoot"`
	TxProof       string `json:"txProof,omitempty"`
	CoinbaseProof string `json:"coinbaseProof"`
	Segwit        bool   `json:"segwit"`

	WitnessCommitment string `json:"witnessCommitment,omitempty"`
	WitnessReserved   string `json:"witnessReservedValue,omitempty"`
	WitnessRoot       string `json:"witnessMerkleRoot,omitempty"`
	WitnessProof      string `json:"witnessProof,omitempty"`
	WitnessBytes      string `json:"witness,omitempty"`

	CoinbaseHex string `json:"coinbaseHex"`
}

// EncodeProofSet serializes a proof set for transmission. A branch whose
// sibling count disagrees with the tree depth is a defect and is rejected
// here rather than padded.
func EncodeProofSet(ps *ProofSet) ([]byte, error) {
	out := encodedProofSet{
		TxID:        ps.TxID.String(),
		TxIndex:     ps.TxIndex,
		Height:      ps.Height,
		Header:      hex.EncodeToString(ps.Header),
		TreeDepth:   ps.TreeDepth,
		MerkleRoot:  ps.MerkleRoot.String(),
		Segwit:      ps.Segwit(),
		CoinbaseHex: ps.CoinbaseHex,
	}

	var err error
	if out.CoinbaseProof, err = flattenBranch(ps.CoinbaseProof, ps.TreeDepth); err != nil {
		return nil, err
	}
	if ps.TxProof != nil {
		if out.TxProof, err = flattenBranch(ps.TxProof, ps.TreeDepth); err != nil {
			return nil, err
		}
	}
	if w := ps.Witness; w != nil {
		if out.WitnessProof, err = flattenBranch(w.Proof, ps.TreeDepth); err != nil {
			return nil, err
		}
		out.WitnessRoot = w.Root.String()
		out.WitnessBytes = hex.EncodeToString(ps.WitnessBytes)
		if !w.Degraded {
			out.WitnessCommitment = w.Commitment.String()
			out.WitnessReserved = hex.EncodeToString(w.Reserved[:])
		}
	}

	return json.Marshal(out)
}

func flattenBranch(proof *merkle.Proof, depth int) (string, error) {
	if proof == nil {
		return "", fmt.Errorf("%w: missing branch", merkle.ErrProofLengthMismatch)
	}
	if proof.Depth != depth || len(proof.Siblings) != depth {
		return "", fmt.Errorf("%w: %d siblings for depth %d",
			merkle.ErrProofLengthMismatch, len(proof.Siblings), depth)
	}
	flat := make([]byte, 0, depth*32)
	for _, sib := range proof.Siblings {
		flat = append(flat, sib[:]...)
	}
	return hex.EncodeToString(flat), nil
}
