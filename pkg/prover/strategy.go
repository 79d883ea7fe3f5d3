package prover

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"runtime"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"golang.org/x/sync/errgroup"

	"btc-prover/pkg/node"
	"btc-prover/pkg/txcodec"
)

// strategyFunc turns a fetched block and a target txid into a proof set.
// Two independent implementations exist so a defect in one decoder cannot
// poison both paths.
type strategyFunc func(blk *node.Block, target chainhash.Hash, policy CommitmentPolicy) (*ProofSet, error)

// primaryStrategy trusts the ids the node reported alongside the block and
// decodes only the target transaction (plus the coinbase, for the reserved
// value) with the in-house codec. An unsupported target format bubbles up
// unchanged so the orchestrator can fall back.
func primaryStrategy(blk *node.Block, target chainhash.Hash, policy CommitmentPolicy) (*ProofSet, error) {
	idx := findTx(blk.Txs, target)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s not in block %s", ErrTxNotInBlock, target, blk.Hash)
	}

	raw, err := hex.DecodeString(blk.Txs[idx].RawHex)
	if err != nil {
		return nil, fmt.Errorf("%w: bad raw hex for %s: %v", ErrMalformedTx, target, err)
	}
	parsed, witnessBytes, err := txcodec.Decode(raw)
	if err != nil {
		return nil, err
	}

	reserved := zeroHash
	if blk.Txs[idx].Segwit() {
		reserved = coinbaseReserved(blk.Txs[0].RawHex)
	}

	return assemble(blk, blk.Txs, idx, parsed, witnessBytes, reserved, policy)
}

// coinbaseReserved recovers the 32-byte reserved value from the coinbase
// witness stack. Anything unexpected falls back to the all-zero convention.
func coinbaseReserved(coinbaseHex string) chainhash.Hash {
	raw, err := hex.DecodeString(coinbaseHex)
	if err != nil {
		return zeroHash
	}
	cb, _, err := txcodec.Decode(raw)
	if err != nil || len(cb.Witnesses) == 0 || len(cb.Witnesses[0]) == 0 {
		return zeroHash
	}
	item := cb.Witnesses[0][0]
	if len(item) != chainhash.HashSize {
		return zeroHash
	}
	var reserved chainhash.Hash
	copy(reserved[:], item)
	return reserved
}

// fallbackStrategy rebuilds every id from the raw transaction bytes using
// the btcd decoder, which handles formats the primary codec refuses. It is
// the expensive path: the whole block is re-decoded, so the orchestrator
// meters it per caller.
func fallbackStrategy(blk *node.Block, target chainhash.Hash, policy CommitmentPolicy) (*ProofSet, error) {
	decoded := make([]*btcutil.Tx, len(blk.Txs))
	recs := make([]node.TxRecord, len(blk.Txs))

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i := range blk.Txs {
		i := i
		g.Go(func() error {
			raw, err := hex.DecodeString(blk.Txs[i].RawHex)
			if err != nil {
				return fmt.Errorf("%w: bad raw hex at index %d: %v", ErrMalformedTx, i, err)
			}
			tx, err := btcutil.NewTxFromBytes(raw)
			if err != nil {
				return fmt.Errorf("%w: index %d: %v", ErrMalformedTx, i, err)
			}
			decoded[i] = tx
			recs[i] = node.TxRecord{
				TxID:   *tx.Hash(),
				WTxID:  *tx.WitnessHash(),
				RawHex: blk.Txs[i].RawHex,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	idx := findTx(recs, target)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s not in block %s", ErrTxNotInBlock, target, blk.Hash)
	}

	msg := decoded[idx].MsgTx()
	parsed := parsedFromMsgTx(msg)
	var witnessBytes []byte
	if msg.HasWitness() {
		var err error
		witnessBytes, err = witnessSectionBytes(msg)
		if err != nil {
			return nil, err
		}
	}

	reserved := zeroHash
	if cb := decoded[0].MsgTx(); len(cb.TxIn) > 0 && len(cb.TxIn[0].Witness) > 0 &&
		len(cb.TxIn[0].Witness[0]) == chainhash.HashSize {
		copy(reserved[:], cb.TxIn[0].Witness[0])
	}

	return assemble(blk, recs, idx, parsed, witnessBytes, reserved, policy)
}

// parsedFromMsgTx converts a btcd transaction into the codec's structure so
// both strategies hand consumers the same shape.
func parsedFromMsgTx(msg *wire.MsgTx) *txcodec.Transaction {
	tx := &txcodec.Transaction{
		Version:  uint32(msg.Version),
		LockTime: msg.LockTime,
		Inputs:   make([]txcodec.Input, len(msg.TxIn)),
		Outputs:  make([]txcodec.Output, len(msg.TxOut)),
	}
	for i, in := range msg.TxIn {
		tx.Inputs[i] = txcodec.Input{
			PrevHash:  in.PreviousOutPoint.Hash,
			PrevIndex: in.PreviousOutPoint.Index,
			ScriptSig: in.SignatureScript,
			Sequence:  in.Sequence,
		}
	}
	for i, out := range msg.TxOut {
		tx.Outputs[i] = txcodec.Output{
			Value:    uint64(out.Value),
			PkScript: out.PkScript,
		}
	}
	if msg.HasWitness() {
		tx.Witnesses = make([][][]byte, len(msg.TxIn))
		for i, in := range msg.TxIn {
			tx.Witnesses[i] = in.Witness
		}
	}
	return tx
}

// witnessSectionBytes serializes the witness section exactly as it appears
// on the wire: per input, a compact item count followed by length-prefixed
// items.
func witnessSectionBytes(msg *wire.MsgTx) ([]byte, error) {
	var buf bytes.Buffer
	for _, in := range msg.TxIn {
		if err := wire.WriteVarInt(&buf, 0, uint64(len(in.Witness))); err != nil {
			return nil, err
		}
		for _, item := range in.Witness {
			if err := wire.WriteVarBytes(&buf, 0, item); err != nil {
				return nil, err
			}
		}
	}
	return buf.Bytes(), nil
}
