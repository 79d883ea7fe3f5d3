// Package txcodec decodes the binary encoding of bitcoin transactions, both
// the legacy form and the segregated-witness form with the 0x00 0x01
// marker/flag pair. It exists so the proof assembler can recover structural
// fields and the raw witness section without trusting the node to report
// them.
package txcodec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

var (
	ErrMalformed   = errors.New("txcodec: malformed transaction")
	ErrUnsupported = errors.New("txcodec: unsupported transaction format")
)

// Reject scripts and item counts no real transaction gets anywhere near.
const maxScriptLen = 128 * 1024
const maxItems = 128 * 1024

// Input is one transaction input. PrevHash stays in the wire byte order.
type Input struct {
	PrevHash  chainhash.Hash
	PrevIndex uint32
	ScriptSig []byte
	Sequence  uint32
}

// Output is one transaction output. Value is in satoshi, unconverted.
type Output struct {
	Value    uint64
	PkScript []byte
}

// Transaction is the decoded structure of a raw transaction. Witnesses holds
// one stack per input and is nil for legacy transactions.
type Transaction struct {
	Version   uint32
	Inputs    []Input
	Outputs   []Output
	Witnesses [][][]byte
	LockTime  uint32
}

// Segwit reports whether the transaction was witness-encoded.
func (tx *Transaction) Segwit() bool {
	return tx.Witnesses != nil
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) byte() (byte, error) {
	if r.off >= len(r.buf) {
		return 0, fmt.Errorf("%w: truncated at offset %d", ErrMalformed, r.off)
	}
	b := r.buf[r.off]
	r.off++
	return b, nil
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.buf) {
		return nil, fmt.Errorf("%w: truncated at offset %d", ErrMalformed, r.off)
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *reader) uint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *reader) varBytes(limit int) ([]byte, error) {
	n, err := r.readCompactSize()
	if err != nil {
		return nil, err
	}
	if n > uint64(limit) {
		return nil, fmt.Errorf("%w: unreasonable length %d", ErrMalformed, n)
	}
	b, err := r.take(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// Decode parses a raw transaction and returns its structure together with
// the raw bytes of the witness section (nil for legacy transactions). It
// never returns a partially decoded transaction: any failure yields a nil
// result.
//
// Versions other than 1 and 2 fail with ErrUnsupported so the caller can
// route the transaction through the fallback decoder instead.
func Decode(raw []byte) (*Transaction, []byte, error) {
	r := &reader{buf: raw}

	version, err := r.uint32()
	if err != nil {
		return nil, nil, err
	}
	if version != 1 && version != 2 {
		return nil, nil, fmt.Errorf("%w: version %d", ErrUnsupported, version)
	}

	// A zero byte where the input count belongs is the segwit marker; no
	// valid transaction has zero inputs.
	segwit := false
	if r.off < len(r.buf) && r.buf[r.off] == 0x00 {
		r.off++
		flag, err := r.byte()
		if err != nil {
			return nil, nil, err
		}
		if flag != 0x01 {
			return nil, nil, fmt.Errorf("%w: segwit flag 0x%02x", ErrUnsupported, flag)
		}
		segwit = true
	}

	inCount, err := r.readCompactSize()
	if err != nil {
		return nil, nil, err
	}
	if inCount == 0 || inCount > maxItems {
		return nil, nil, fmt.Errorf("%w: input count %d", ErrMalformed, inCount)
	}
	inputs := make([]Input, inCount)
	for i := range inputs {
		prev, err := r.take(32)
		if err != nil {
			return nil, nil, err
		}
		copy(inputs[i].PrevHash[:], prev)
		if inputs[i].PrevIndex, err = r.uint32(); err != nil {
			return nil, nil, err
		}
		if inputs[i].ScriptSig, err = r.varBytes(maxScriptLen); err != nil {
			return nil, nil, err
		}
		if inputs[i].Sequence, err = r.uint32(); err != nil {
			return nil, nil, err
		}
	}

	outCount, err := r.readCompactSize()
	if err != nil {
		return nil, nil, err
	}
	if outCount > maxItems {
		return nil, nil, fmt.Errorf("%w: output count %d", ErrMalformed, outCount)
	}
	outputs := make([]Output, outCount)
	for i := range outputs {
		if outputs[i].Value, err = r.uint64(); err != nil {
			return nil, nil, err
		}
		if outputs[i].PkScript, err = r.varBytes(maxScriptLen); err != nil {
			return nil, nil, err
		}
	}

	var witnesses [][][]byte
	var witnessBytes []byte
	if segwit {
		start := r.off
		witnesses = make([][][]byte, inCount)
		for i := range witnesses {
			items, err := r.readCompactSize()
			if err != nil {
				return nil, nil, err
			}
			if items > maxItems {
				return nil, nil, fmt.Errorf("%w: witness item count %d", ErrMalformed, items)
			}
			stack := make([][]byte, items)
			for j := range stack {
				if stack[j], err = r.varBytes(maxScriptLen); err != nil {
					return nil, nil, err
				}
			}
			witnesses[i] = stack
		}
		witnessBytes = make([]byte, r.off-start)
		copy(witnessBytes, raw[start:r.off])
	}

	lockTime, err := r.uint32()
	if err != nil {
		return nil, nil, err
	}
	if r.off != len(raw) {
		return nil, nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(raw)-r.off)
	}

	return &Transaction{
		Version:   version,
		Inputs:    inputs,
		Outputs:   outputs,
		Witnesses: witnesses,
		LockTime:  lockTime,
	}, witnessBytes, nil
}
