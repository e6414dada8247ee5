// Package merkle provides a merkle tree used to commit a block header to the
// ordered list of transactions it carries.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"hash"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrNotFound is returned when the value is not a leaf of the tree.
var ErrNotFound = errors.New("value not found in tree")

// Hashable represents the behavior concrete data must exhibit to be used in
// the merkle tree.
type Hashable[T any] interface {
	Hash() ([]byte, error)
	Equals(other T) bool
}

// =============================================================================

// Tree represents a merkle tree over values of type T. The tree is stored
// level by level: levels[0] holds the leaf hashes and the last level holds
// the root. A level with an odd number of nodes duplicates its last node.
type Tree[T Hashable[T]] struct {
	values       []T
	levels       [][][]byte
	hashStrategy func() hash.Hash
}

// WithHashStrategy is used to change the default hash strategy of using
// sha256 when constructing a new tree.
func WithHashStrategy[T Hashable[T]](hashStrategy func() hash.Hash) func(t *Tree[T]) {
	return func(t *Tree[T]) {
		t.hashStrategy = hashStrategy
	}
}

// NewTree constructs a new merkle tree from the specified values.
func NewTree[T Hashable[T]](values []T, options ...func(t *Tree[T])) (*Tree[T], error) {
	if len(values) == 0 {
		return nil, errors.New("cannot construct tree with no content")
	}

	t := Tree[T]{
		hashStrategy: sha256.New,
	}

	for _, option := range options {
		option(&t)
	}

	leafs := make([][]byte, 0, len(values)+1)
	for _, value := range values {
		h, err := value.Hash()
		if err != nil {
			return nil, err
		}
		leafs = append(leafs, h)
	}

	levels, err := t.build(leafs)
	if err != nil {
		return nil, err
	}

	t.values = append([]T(nil), values...)
	t.levels = levels

	return &t, nil
}

// Values returns a copy of the values stored in the tree.
func (t *Tree[T]) Values() []T {
	return append([]T(nil), t.values...)
}

// MerkleRoot returns the root hash of the tree.
func (t *Tree[T]) MerkleRoot() []byte {
	root := t.levels[len(t.levels)-1][0]
	return append([]byte(nil), root...)
}

// RootHex converts the merkle root byte hash to a hex encoded string.
func (t *Tree[T]) RootHex() string {
	return hexutil.Encode(t.levels[len(t.levels)-1][0])
}

// Proof returns the sibling hashes from the value's leaf up to the root and
// the order to concatenate them in. An order of 0 means the proof hash comes
// first, 1 means it comes second.
func (t *Tree[T]) Proof(value T) ([][]byte, []int64, error) {
	idx := t.index(value)
	if idx < 0 {
		return nil, nil, ErrNotFound
	}

	var proof [][]byte
	var order []int64

	for _, level := range t.levels[:len(t.levels)-1] {
		level = pad(level)
		if idx%2 == 0 {
			proof = append(proof, level[idx+1])
			order = append(order, 1)
		} else {
			proof = append(proof, level[idx-1])
			order = append(order, 0)
		}
		idx /= 2
	}

	return proof, order, nil
}

// Verify recomputes every level from the stored values and checks the
// result matches the root.
func (t *Tree[T]) Verify() error {
	leafs := make([][]byte, 0, len(t.values))
	for _, value := range t.values {
		h, err := value.Hash()
		if err != nil {
			return err
		}
		leafs = append(leafs, h)
	}

	levels, err := t.build(leafs)
	if err != nil {
		return err
	}

	if !bytes.Equal(levels[len(levels)-1][0], t.levels[len(t.levels)-1][0]) {
		return errors.New("root hash invalid")
	}

	return nil
}

// VerifyData checks the value is in the tree and that hashing it along its
// proof path reproduces the root.
func (t *Tree[T]) VerifyData(value T) error {
	proof, order, err := t.Proof(value)
	if err != nil {
		return err
	}

	current, err := value.Hash()
	if err != nil {
		return err
	}

	for i, sibling := range proof {
		h := t.hashStrategy()
		switch order[i] {
		case 0:
			h.Write(sibling)
			h.Write(current)
		default:
			h.Write(current)
			h.Write(sibling)
		}
		current = h.Sum(nil)
	}

	if !bytes.Equal(current, t.levels[len(t.levels)-1][0]) {
		return errors.New("merkle root is not equivalent to the root calculated on the critical path")
	}

	return nil
}

// =============================================================================

// index returns the leaf position of the value or -1.
func (t *Tree[T]) index(value T) int {
	for i, v := range t.values {
		if v.Equals(value) {
			return i
		}
	}
	return -1
}

// build hashes pairs of nodes level by level until one node remains.
func (t *Tree[T]) build(leafs [][]byte) ([][][]byte, error) {
	levels := [][][]byte{leafs}

	for level := leafs; len(level) > 1 || len(levels) == 1; {
		level = pad(level)

		next := make([][]byte, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			h := t.hashStrategy()
			if _, err := h.Write(append(append([]byte(nil), level[i]...), level[i+1]...)); err != nil {
				return nil, err
			}
			next = append(next, h.Sum(nil))
		}

		levels = append(levels, next)
		level = next
	}

	return levels, nil
}

// pad duplicates the last node of a level with an odd number of nodes.
func pad(level [][]byte) [][]byte {
	if len(level)%2 == 1 {
		return append(level[:len(level):len(level)], level[len(level)-1])
	}
	return level
}
