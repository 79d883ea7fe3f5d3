package merkle

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

func leaf(i byte) chainhash.Hash {
	return chainhash.DoubleHashH([]byte{i})
}

func leaves(n int) []chainhash.Hash {
	out := make([]chainhash.Hash, n)
	for i := range out {
		out[i] = leaf(byte(i))
	}
	return out
}

func TestBuildRootEmpty(t *testing.T) {
	require.Equal(t, EmptyRoot, BuildRoot(nil))
}

func TestSingleLeaf(t *testing.T) {
	ls := leaves(1)
	require.Equal(t, ls[0], BuildRoot(ls))

	proof, err := BuildProof(0, ls)
	require.NoError(t, err)
	require.Equal(t, 0, proof.Depth)
	require.Empty(t, proof.Siblings)
	require.True(t, VerifyProof(ls[0], proof, ls[0]))
}

func TestOddDuplicationLaw(t *testing.T) {
	a, b, c := leaf(1), leaf(2), leaf(3)
	require.Equal(t,
		BuildRoot([]chainhash.Hash{a, b, c, c}),
		BuildRoot([]chainhash.Hash{a, b, c}),
	)
}

func TestThreeLeafShape(t *testing.T) {
	ls := leaves(3)
	want := Combine(Combine(ls[0], ls[1]), Combine(ls[2], ls[2]))
	require.Equal(t, want, BuildRoot(ls))

	proof, err := BuildProof(2, ls)
	require.NoError(t, err)
	require.Equal(t, 2, proof.Depth)
	// last element of an odd level is its own sibling
	require.Equal(t, []chainhash.Hash{ls[2], Combine(ls[0], ls[1])}, proof.Siblings)
}

func TestBuildRootPure(t *testing.T) {
	ls := leaves(7)
	require.Equal(t, BuildRoot(ls), BuildRoot(ls))
}

func TestRoundTripAllIndices(t *testing.T) {
	for n := 1; n <= 9; n++ {
		ls := leaves(n)
		root := BuildRoot(ls)
		for i := 0; i < n; i++ {
			proof, err := BuildProof(i, ls)
			require.NoError(t, err, "n=%d i=%d", n, i)
			require.True(t, VerifyProof(ls[i], proof, root), "n=%d i=%d", n, i)
			require.False(t, VerifyProof(leaf(0xee), proof, root), "n=%d i=%d wrong leaf", n, i)
		}
	}
}

func TestProofDepthMatchesTree(t *testing.T) {
	for n, depth := range map[int]int{1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 8: 3, 9: 4} {
		proof, err := BuildProof(0, leaves(n))
		require.NoError(t, err)
		require.Equal(t, depth, proof.Depth, "n=%d", n)
		require.Len(t, proof.Siblings, depth, "n=%d", n)
	}
}

func TestBuildProofBadInput(t *testing.T) {
	_, err := BuildProof(0, nil)
	require.Error(t, err)
	_, err = BuildProof(3, leaves(3))
	require.Error(t, err)
	_, err = BuildProof(-1, leaves(3))
	require.Error(t, err)
}

func TestVerifyRejectsTampering(t *testing.T) {
	ls := leaves(5)
	root := BuildRoot(ls)
	proof, err := BuildProof(3, ls)
	require.NoError(t, err)

	proof.Siblings[1][0] ^= 0x01
	require.False(t, VerifyProof(ls[3], proof, root))
	proof.Siblings[1][0] ^= 0x01
	require.True(t, VerifyProof(ls[3], proof, root))

	short := &Proof{Siblings: proof.Siblings[:2], Depth: proof.Depth, Index: proof.Index}
	require.False(t, VerifyProof(ls[3], short, root))
	require.False(t, VerifyProof(ls[3], nil, root))
}
