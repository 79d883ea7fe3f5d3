package txcodec

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// txBuilder assembles raw transaction encodings byte by byte so the decoder
// is checked against the format itself rather than against its own output.
type txBuilder struct {
	buf bytes.Buffer
}

func (b *txBuilder) u32(v uint32) *txBuilder {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.buf.Write(tmp[:])
	return b
}

func (b *txBuilder) u64(v uint64) *txBuilder {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	b.buf.Write(tmp[:])
	return b
}

func (b *txBuilder) compact(v uint64) *txBuilder {
	switch {
	case v < 0xFD:
		b.buf.WriteByte(byte(v))
	case v <= 0xFFFF:
		b.buf.WriteByte(0xFD)
		var tmp [2]byte
		binary.LittleEndian.PutUint16(tmp[:], uint16(v))
		b.buf.Write(tmp[:])
	default:
		b.buf.WriteByte(0xFE)
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(v))
		b.buf.Write(tmp[:])
	}
	return b
}

func (b *txBuilder) raw(p []byte) *txBuilder {
	b.buf.Write(p)
	return b
}

func (b *txBuilder) varBytes(p []byte) *txBuilder {
	return b.compact(uint64(len(p))).raw(p)
}

func (b *txBuilder) bytes() []byte {
	return b.buf.Bytes()
}

func fill(n int, v byte) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = v
	}
	return p
}

func legacyTx() []byte {
	b := new(txBuilder)
	b.u32(1)
	b.compact(1) // inputs
	b.raw(fill(32, 0x11)).u32(3).varBytes([]byte{0x51, 0x52}).u32(0xFFFFFFFF)
	b.compact(2) // outputs
	b.u64(50_000).varBytes([]byte{0x76, 0xA9})
	b.u64(7).varBytes([]byte{0x6A})
	b.u32(101) // locktime
	return b.bytes()
}

func segwitTx() (tx []byte, witnessSection []byte) {
	w := new(txBuilder)
	w.compact(2).varBytes([]byte{0x30, 0x45, 0x01}).varBytes(fill(33, 0x02))

	b := new(txBuilder)
	b.u32(2)
	b.raw([]byte{0x00, 0x01})
	b.compact(1)
	b.raw(fill(32, 0x22)).u32(0).varBytes(nil).u32(0xFFFFFFFD)
	b.compact(1)
	b.u64(1_000_000).varBytes(fill(22, 0x00))
	b.raw(w.bytes())
	b.u32(0)
	return b.bytes(), w.bytes()
}

func TestDecodeLegacy(t *testing.T) {
	tx, witnessBytes, err := Decode(legacyTx())
	require.NoError(t, err)
	require.Nil(t, witnessBytes)
	require.False(t, tx.Segwit())

	require.Equal(t, uint32(1), tx.Version)
	require.Equal(t, uint32(101), tx.LockTime)

	require.Len(t, tx.Inputs, 1)
	require.Equal(t, fill(32, 0x11), tx.Inputs[0].PrevHash[:])
	require.Equal(t, uint32(3), tx.Inputs[0].PrevIndex)
	require.Equal(t, []byte{0x51, 0x52}, tx.Inputs[0].ScriptSig)
	require.Equal(t, uint32(0xFFFFFFFF), tx.Inputs[0].Sequence)

	require.Len(t, tx.Outputs, 2)
	require.Equal(t, uint64(50_000), tx.Outputs[0].Value)
	require.Equal(t, []byte{0x76, 0xA9}, tx.Outputs[0].PkScript)
	require.Equal(t, uint64(7), tx.Outputs[1].Value)
}

func TestDecodeSegwit(t *testing.T) {
	raw, wantWitness := segwitTx()
	tx, witnessBytes, err := Decode(raw)
	require.NoError(t, err)
	require.True(t, tx.Segwit())
	require.Equal(t, wantWitness, witnessBytes)

	require.Equal(t, uint32(2), tx.Version)
	require.Len(t, tx.Witnesses, 1)
	require.Len(t, tx.Witnesses[0], 2)
	require.Equal(t, []byte{0x30, 0x45, 0x01}, tx.Witnesses[0][0])
	require.Equal(t, fill(33, 0x02), tx.Witnesses[0][1])
	require.Empty(t, tx.Inputs[0].ScriptSig)
}

func TestDecodeTruncated(t *testing.T) {
	raw, _ := segwitTx()
	for cut := 0; cut < len(raw); cut++ {
		_, _, err := Decode(raw[:cut])
		require.Error(t, err, "prefix of %d bytes", cut)
		require.ErrorIs(t, err, ErrMalformed, "prefix of %d bytes", cut)
	}
}

func TestDecodeTrailingGarbage(t *testing.T) {
	raw := append(legacyTx(), 0x00)
	_, _, err := Decode(raw)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeUnsupportedVersion(t *testing.T) {
	raw := legacyTx()
	binary.LittleEndian.PutUint32(raw[:4], 3)
	_, _, err := Decode(raw)
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestDecodeBadSegwitFlag(t *testing.T) {
	raw, _ := segwitTx()
	raw[5] = 0x02 // flag byte
	_, _, err := Decode(raw)
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestDecodeZeroInputs(t *testing.T) {
	b := new(txBuilder)
	// a legacy transaction with zero inputs is indistinguishable from a
	// broken segwit marker; either way it must not decode
	b.u32(1).compact(0).compact(0).u32(0)
	_, _, err := Decode(b.bytes())
	require.Error(t, err)
}

func TestDecodeTwoByteCompactSize(t *testing.T) {
	script := fill(300, 0xAB)
	b := new(txBuilder)
	b.u32(1)
	b.compact(1)
	b.raw(fill(32, 0x33)).u32(0).varBytes(script).u32(0)
	b.compact(1)
	b.u64(1).varBytes([]byte{0x51})
	b.u32(0)

	tx, _, err := Decode(b.bytes())
	require.NoError(t, err)
	require.Equal(t, script, tx.Inputs[0].ScriptSig)
}

func TestDecodeNonCanonicalCompactSize(t *testing.T) {
	b := new(txBuilder)
	b.u32(1)
	b.compact(1)
	b.raw(fill(32, 0x33)).u32(0)
	b.raw([]byte{0xFD, 0x01, 0x00, 0x51}) // length 1 in the 0xFD form
	b.u32(0)
	b.compact(1)
	b.u64(1).varBytes([]byte{0x51})
	b.u32(0)

	_, _, err := Decode(b.bytes())
	require.ErrorIs(t, err, ErrMalformed)
}

func TestDecodeUnreasonableScript(t *testing.T) {
	b := new(txBuilder)
	b.u32(1)
	b.compact(1)
	b.raw(fill(32, 0x33)).u32(0)
	b.raw([]byte{0xFE, 0x00, 0x00, 0x20, 0x00}) // claims a 2 MiB script
	_, _, err := Decode(b.bytes())
	require.ErrorIs(t, err, ErrMalformed)
}
