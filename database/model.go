package database

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	"btc-prover/pkg/merkle"
	"btc-prover/pkg/prover"
	"btc-prover/pkg/txcodec"
)

type proofDocument struct {
	ID string `bson:"_id"` // display txid

	TxIndex    int    `bson:"tx_index"`
	Height     int64  `bson:"height"`
	Header     string `bson:"header"`
	TreeDepth  int    `bson:"tree_depth"`
	MerkleRoot string `bson:"merkle_root"`

	TxProof       *branchDocument  `bson:"tx_proof,omitempty"`
	CoinbaseProof *branchDocument  `bson:"coinbase_proof"`
	Witness       *witnessDocument `bson:"witness,omitempty"`

	Parsed       *txDocument `bson:"parsed,omitempty"`
	WitnessBytes string      `bson:"witness_bytes,omitempty"`
	CoinbaseHex  string      `bson:"coinbase_hex"`
}

type branchDocument struct {
	Siblings []string `bson:"siblings"`
	Depth    int      `bson:"depth"`
	Index    int      `bson:"index"`
}

type witnessDocument struct {
	Commitment string          `bson:"commitment,omitempty"`
	Reserved   string          `bson:"reserved,omitempty"`
	Root       string          `bson:"root"`
	Degraded   bool            `bson:"degraded"`
	Proof      *branchDocument `bson:"proof"`
}

type txDocument struct {
	Version  uint32           `bson:"version"`
	LockTime uint32           `bson:"lock_time"`
	Inputs   []inputDocument  `bson:"inputs"`
	Outputs  []outputDocument `bson:"outputs"`
	Witness  [][]string       `bson:"witness,omitempty"`
}

type inputDocument struct {
	PrevHash  string `bson:"prev_hash"`
	PrevIndex uint32 `bson:"prev_index"`
	ScriptSig string `bson:"script_sig"`
	Sequence  uint32 `bson:"sequence"`
}

type outputDocument struct {
	Value    uint64 `bson:"value"`
	PkScript string `bson:"pk_script"`
}

func newProofDocument(ps *prover.ProofSet) *proofDocument {
	doc := &proofDocument{
		ID:            ps.TxID.String(),
		TxIndex:       ps.TxIndex,
		Height:        ps.Height,
		Header:        hex.EncodeToString(ps.Header),
		TreeDepth:     ps.TreeDepth,
		MerkleRoot:    ps.MerkleRoot.String(),
		TxProof:       newBranchDocument(ps.TxProof),
		CoinbaseProof: newBranchDocument(ps.CoinbaseProof),
		WitnessBytes:  hex.EncodeToString(ps.WitnessBytes),
		CoinbaseHex:   ps.CoinbaseHex,
	}
	if w := ps.Witness; w != nil {
		doc.Witness = &witnessDocument{
			Root:     w.Root.String(),
			Degraded: w.Degraded,
			Proof:    newBranchDocument(w.Proof),
		}
		if !w.Degraded {
			doc.Witness.Commitment = w.Commitment.String()
			doc.Witness.Reserved = hex.EncodeToString(w.Reserved[:])
		}
	}
	if tx := ps.Parsed; tx != nil {
		parsed := &txDocument{
			Version:  tx.Version,
			LockTime: tx.LockTime,
			Inputs:   make([]inputDocument, len(tx.Inputs)),
			Outputs:  make([]outputDocument, len(tx.Outputs)),
		}
		for i, in := range tx.Inputs {
			parsed.Inputs[i] = inputDocument{
				PrevHash:  hex.EncodeToString(in.PrevHash[:]),
				PrevIndex: in.PrevIndex,
				ScriptSig: hex.EncodeToString(in.ScriptSig),
				Sequence:  in.Sequence,
			}
		}
		for i, out := range tx.Outputs {
			parsed.Outputs[i] = outputDocument{
				Value:    out.Value,
				PkScript: hex.EncodeToString(out.PkScript),
			}
		}
		if tx.Witnesses != nil {
			parsed.Witness = make([][]string, len(tx.Witnesses))
			for i, stack := range tx.Witnesses {
				items := make([]string, len(stack))
				for j, item := range stack {
					items[j] = hex.EncodeToString(item)
				}
				parsed.Witness[i] = items
			}
		}
		doc.Parsed = parsed
	}
	return doc
}

func newBranchDocument(proof *merkle.Proof) *branchDocument {
	if proof == nil {
		return nil
	}
	doc := &branchDocument{
		Siblings: make([]string, len(proof.Siblings)),
		Depth:    proof.Depth,
		Index:    proof.Index,
	}
	for i, sib := range proof.Siblings {
		doc.Siblings[i] = sib.String()
	}
	return doc
}

func (doc *proofDocument) toProofSet() (*prover.ProofSet, error) {
	txid, err := chainhash.NewHashFromStr(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("database: bad txid %q: %w", doc.ID, err)
	}
	root, err := chainhash.NewHashFromStr(doc.MerkleRoot)
	if err != nil {
		return nil, fmt.Errorf("database: bad merkle root %q: %w", doc.MerkleRoot, err)
	}
	header, err := hex.DecodeString(doc.Header)
	if err != nil {
		return nil, err
	}
	witnessBytes, err := hex.DecodeString(doc.WitnessBytes)
	if err != nil {
		return nil, err
	}
	if len(witnessBytes) == 0 {
		witnessBytes = nil
	}

	ps := &prover.ProofSet{
		TxID:         *txid,
		TxIndex:      doc.TxIndex,
		Height:       doc.Height,
		Header:       header,
		TreeDepth:    doc.TreeDepth,
		MerkleRoot:   *root,
		WitnessBytes: witnessBytes,
		CoinbaseHex:  doc.CoinbaseHex,
	}
	if ps.TxProof, err = doc.TxProof.toProof(); err != nil {
		return nil, err
	}
	if ps.CoinbaseProof, err = doc.CoinbaseProof.toProof(); err != nil {
		return nil, err
	}
	if doc.Witness != nil {
		w := &prover.WitnessSection{Degraded: doc.Witness.Degraded}
		wroot, err := chainhash.NewHashFromStr(doc.Witness.Root)
		if err != nil {
			return nil, err
		}
		w.Root = *wroot
		if w.Proof, err = doc.Witness.Proof.toProof(); err != nil {
			return nil, err
		}
		if !w.Degraded {
			c, err := chainhash.NewHashFromStr(doc.Witness.Commitment)
			if err != nil {
				return nil, err
			}
			w.Commitment = *c
			reserved, err := hex.DecodeString(doc.Witness.Reserved)
			if err != nil || len(reserved) != chainhash.HashSize {
				return nil, fmt.Errorf("database: bad reserved value %q", doc.Witness.Reserved)
			}
			copy(w.Reserved[:], reserved)
		}
		ps.Witness = w
	}
	if doc.Parsed != nil {
		if ps.Parsed, err = doc.Parsed.toTransaction(); err != nil {
			return nil, err
		}
	}
	return ps, nil
}

func (doc *branchDocument) toProof() (*merkle.Proof, error) {
	if doc == nil {
		return nil, nil
	}
	proof := &merkle.Proof{
		Siblings: make([]chainhash.Hash, len(doc.Siblings)),
		Depth:    doc.Depth,
		Index:    doc.Index,
	}
	for i, s := range doc.Siblings {
		h, err := chainhash.NewHashFromStr(s)
		if err != nil {
			return nil, fmt.Errorf("database: bad sibling %q: %w", s, err)
		}
		proof.Siblings[i] = *h
	}
	return proof, nil
}

func (doc *txDocument) toTransaction() (*txcodec.Transaction, error) {
	tx := &txcodec.Transaction{
		Version:  doc.Version,
		LockTime: doc.LockTime,
		Inputs:   make([]txcodec.Input, len(doc.Inputs)),
		Outputs:  make([]txcodec.Output, len(doc.Outputs)),
	}
	for i, in := range doc.Inputs {
		prev, err := hex.DecodeString(in.PrevHash)
		if err != nil || len(prev) != chainhash.HashSize {
			return nil, fmt.Errorf("database: bad prev hash %q", in.PrevHash)
		}
		script, err := hex.DecodeString(in.ScriptSig)
		if err != nil {
			return nil, err
		}
		tx.Inputs[i] = txcodec.Input{PrevIndex: in.PrevIndex, ScriptSig: script, Sequence: in.Sequence}
		copy(tx.Inputs[i].PrevHash[:], prev)
	}
	for i, out := range doc.Outputs {
		script, err := hex.DecodeString(out.PkScript)
		if err != nil {
			return nil, err
		}
		tx.Outputs[i] = txcodec.Output{Value: out.Value, PkScript: script}
	}
	if doc.Witness != nil {
		tx.Witnesses = make([][][]byte, len(doc.Witness))
		for i, stack := range doc.Witness {
			items := make([][]byte, len(stack))
			for j, s := range stack {
				item, err := hex.DecodeString(s)
				if err != nil {
					return nil, err
				}
				items[j] = item
			}
			tx.Witnesses[i] = items
		}
	}
	return tx, nil
}
