package merkle

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// EmptyRoot is the sentinel returned by BuildRoot for an empty leaf set. It
// is a defined value, not the hash of anything.
var EmptyRoot = chainhash.Hash{}

var ErrProofLengthMismatch = errors.New("merkle: proof length does not match tree depth")

// Proof is an inclusion proof for one leaf: the sibling hashes from the leaf
// level up to (but excluding) the root, in internal byte order.
type Proof struct {
	Siblings []chainhash.Hash
	Depth    int
	Index    int
}

// Combine hashes two nodes into their parent, left operand first.
func Combine(left, right chainhash.Hash) chainhash.Hash {
	var buf [64]byte
	copy(buf[:32], left[:])
	copy(buf[32:], right[:])
	return chainhash.DoubleHashH(buf[:])
}

// BuildRoot computes the merkle root of the given leaves. If a level has an
// odd number of nodes the last node is paired with itself, matching the
// bitcoin block merkle rule. A single leaf is its own root.
func BuildRoot(leaves []chainhash.Hash) chainhash.Hash {
	if len(leaves) == 0 {
		return EmptyRoot
	}

	level := append([]chainhash.Hash(nil), leaves...)
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]chainhash.Hash, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, Combine(level[i], level[i+1]))
		}
		level = next
	}
	return level[0]
}

// BuildProof builds the inclusion proof for leaves[index]. At every level the
// partner of the current node is appended to the proof; the last node of an
// odd-length level is its own partner.
func BuildProof(index int, leaves []chainhash.Hash) (*Proof, error) {
	if len(leaves) == 0 {
		return nil, errors.New("merkle: no leaves")
	}
	if index < 0 || index >= len(leaves) {
		return nil, fmt.Errorf("merkle: leaf index %d out of range [0, %d)", index, len(leaves))
	}

	levels := make([][]chainhash.Hash, 0)
	levels = append(levels, append([]chainhash.Hash(nil), leaves...))
	for len(levels[len(levels)-1]) > 1 {
		cur := levels[len(levels)-1]
		next := make([]chainhash.Hash, 0, (len(cur)+1)/2)
		for i := 0; i < len(cur); i += 2 {
			left := cur[i]
			right := left
			if i+1 < len(cur) {
				right = cur[i+1]
			}
			next = append(next, Combine(left, right))
		}
		levels = append(levels, next)
	}

	depth := len(levels) - 1
	siblings := make([]chainhash.Hash, 0, depth)
	pos := index
	for _, level := range levels[:depth] {
		sib := pos ^ 1
		if sib >= len(level) {
			sib = pos
		}
		siblings = append(siblings, level[sib])
		pos /= 2
	}

	if len(siblings) != depth {
		return nil, ErrProofLengthMismatch
	}

	return &Proof{
		Siblings: siblings,
		Depth:    depth,
		Index:    index,
	}, nil
}

// VerifyProof folds leaf with each proof element and compares the result to
// root. Bit i of the leaf index decides whether the current hash is the right
// or the left operand at level i.
func VerifyProof(leaf chainhash.Hash, proof *Proof, root chainhash.Hash) bool {
	if proof == nil || len(proof.Siblings) != proof.Depth {
		return false
	}
	cur := leaf
	for i, sib := range proof.Siblings {
		if (proof.Index>>uint(i))&1 == 1 {
			cur = Combine(sib, cur)
		} else {
			cur = Combine(cur, sib)
		}
	}
	return cur == root
}
