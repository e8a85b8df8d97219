// Package accumulator binds an ordered sequence of byte strings into a single
// 32-byte commitment and verifies single-index membership proofs against it.
//
// The structure is an index-addressed binary Merkle tree over Keccak-256:
//
//	leaf(i, v) = keccak256(0x00 || be64(i) || v)
//	node(l, r) = keccak256(0x01 || l || r)
//
// The leaf level is padded with zero hashes up to the next power of two. The
// tree is stored as a flat array addressed by generalized index: tree[1] is
// the root and the children of node i are 2i and 2i+1.
package accumulator

import (
	"encoding/binary"
	"errors"
	"math/bits"

	errorsmod "cosmossdk.io/errors"

	"github.com/optiswap/optiswap/core/types"
	"github.com/optiswap/optiswap/crypto"
)

// Domain separation prefixes.
const (
	leafPrefix byte = 0x00
	nodePrefix byte = 0x01
)

// MaxDepth bounds proof length so that 1<<depth never overflows.
const MaxDepth = 63

var (
	ErrEmpty      = errors.New("accumulator: empty sequence")
	ErrIndexRange = errors.New("accumulator: index out of range")
)

// Proof is the list of sibling hashes from the leaf level up to, but not
// including, the root.
type Proof []types.Hash

// LeafHash returns the domain-separated hash of value at index.
func LeafHash(index uint64, value []byte) types.Hash {
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], index)
	return crypto.Keccak256Hash([]byte{leafPrefix}, idx[:], value)
}

// NodeHash returns the hash of an internal node.
func NodeHash(left, right types.Hash) types.Hash {
	return crypto.Keccak256Hash([]byte{nodePrefix}, left[:], right[:])
}

// Tree is a fully materialized accumulator tree.
type Tree struct {
	depth uint
	size  uint64
	nodes []types.Hash
}

// Build constructs the tree over values.
func Build(values [][]byte) (*Tree, error) {
	if len(values) == 0 {
		return nil, ErrEmpty
	}
	size := uint64(len(values))
	depth := uint(bits.Len64(size - 1))
	width := uint64(1) << depth

	nodes := make([]types.Hash, 2*width)
	for i, v := range values {
		nodes[width+uint64(i)] = LeafHash(uint64(i), v)
	}
	for gi := width - 1; gi >= 1; gi-- {
		nodes[gi] = NodeHash(nodes[2*gi], nodes[2*gi+1])
	}
	return &Tree{depth: depth, size: size, nodes: nodes}, nil
}

// Root returns the commitment.
func (t *Tree) Root() types.Hash { return t.nodes[1] }

// Len returns the number of committed values.
func (t *Tree) Len() uint64 { return t.size }

// Depth returns the number of levels below the root.
func (t *Tree) Depth() uint { return t.depth }

// Prove returns the membership proof for index.
func (t *Tree) Prove(index uint64) (Proof, error) {
	if index >= t.size {
		return nil, ErrIndexRange
	}
	proof := make(Proof, 0, t.depth)
	for gi := (uint64(1) << t.depth) + index; gi > 1; gi /= 2 {
		proof = append(proof, t.nodes[gi^1])
	}
	return proof, nil
}

// Root recomputes the commitment implied by (index, value, proof).
func (p Proof) Root(index uint64, value []byte) (types.Hash, error) {
	if len(p) > MaxDepth {
		return types.Hash{}, errorsmod.Wrapf(types.ErrProofInvalid, "proof depth %d exceeds %d", len(p), MaxDepth)
	}
	if index>>uint(len(p)) != 0 {
		return types.Hash{}, errorsmod.Wrapf(types.ErrProofInvalid, "index %d outside a depth-%d tree", index, len(p))
	}
	h := LeafHash(index, value)
	pos := index
	for _, sib := range p {
		if pos&1 == 0 {
			h = NodeHash(h, sib)
		} else {
			h = NodeHash(sib, h)
		}
		pos >>= 1
	}
	return h, nil
}

// VerifyProof checks membership of value at index under commitment and
// returns a wrapped ErrProofInvalid on failure.
func VerifyProof(commitment types.Hash, index uint64, value []byte, proof Proof) error {
	root, err := proof.Root(index, value)
	if err != nil {
		return err
	}
	if root != commitment {
		return errorsmod.Wrapf(types.ErrProofInvalid, "root mismatch at index %d", index)
	}
	return nil
}

// Verify reports whether value sits at index under commitment.
func Verify(commitment types.Hash, index uint64, value []byte, proof Proof) bool {
	return VerifyProof(commitment, index, value, proof) == nil
}

// Commit is a convenience wrapper returning Build(values).Root().
func Commit(values [][]byte) (types.Hash, error) {
	t, err := Build(values)
	if err != nil {
		return types.Hash{}, err
	}
	return t.Root(), nil
}
