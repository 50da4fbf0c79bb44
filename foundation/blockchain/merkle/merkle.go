// Package merkle provides a binary merkle tree used to summarize the
// transactions in a block with a single root hash. The tree is generic over
// any value that can produce its own hash.
//
// Leaves are the hashes of the values in insertion order. When a level holds
// an odd number of nodes the last node is promoted to the next level unchanged,
// it is never paired with a copy of itself. This keeps the root unique to the
// exact list of values: [a b c] and [a b c c] produce different roots. An
// empty set of values is legal and produces the hash of empty input as the
// root.
package merkle

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"hash"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ErrNotFound is returned when the requested value is not a leaf of the tree.
var ErrNotFound = errors.New("value not found in tree")

// Hashable represents the behavior concrete data must exhibit to be used in
// the merkle tree.
type Hashable[T any] interface {
	Hash() ([]byte, error)
	Equals(other T) bool
}

// Set of values identifying where a proof hash is concatenated.
const (
	ProofLeft  int64 = 0 // proof hash comes first.
	ProofRight int64 = 1 // proof hash comes second.
)

// =============================================================================

// Tree represents a merkle tree that uses data of some type T that exhibits the
// behavior defined by the Hashable constraint.
type Tree[T Hashable[T]] struct {
	Root         *Node[T]
	Leafs        []*Node[T]
	MerkleRoot   []byte
	hashStrategy func() hash.Hash
}

// WithHashStrategy is used to change the default hash strategy of using sha256
// when constructing a new tree.
func WithHashStrategy[T Hashable[T]](hashStrategy func() hash.Hash) func(t *Tree[T]) {
	return func(t *Tree[T]) {
		t.hashStrategy = hashStrategy
	}
}

// NewTree constructs a new merkle tree that uses data of some type T that
// exhibits the behavior defined by the Hashable interface.
func NewTree[T Hashable[T]](values []T, options ...func(t *Tree[T])) (*Tree[T], error) {
	t := Tree[T]{
		hashStrategy: sha256.New,
	}

	for _, option := range options {
		option(&t)
	}

	if err := t.Generate(values); err != nil {
		return nil, err
	}

	return &t, nil
}

// Generate constructs the leafs and nodes of the tree from the specified
// values. Any previous content of the tree is discarded.
func (t *Tree[T]) Generate(values []T) error {
	t.Root = nil
	t.Leafs = nil

	if len(values) == 0 {
		t.MerkleRoot = t.hashStrategy().Sum(nil)
		return nil
	}

	leafs := make([]*Node[T], 0, len(values))
	for i, value := range values {
		h, err := value.Hash()
		if err != nil {
			return fmt.Errorf("hashing value[%d]: %w", i, err)
		}

		leafs = append(leafs, &Node[T]{
			Tree:  t,
			Hash:  h,
			Value: value,
			leaf:  true,
		})
	}

	level := leafs
	for len(level) > 1 {
		next := make([]*Node[T], 0, (len(level)+1)/2)

		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}

			left, right := level[i], level[i+1]
			n := Node[T]{
				Tree:  t,
				Left:  left,
				Right: right,
				Hash:  t.combine(left.Hash, right.Hash),
			}

			left.Parent = &n
			right.Parent = &n
			next = append(next, &n)
		}

		level = next
	}

	t.Root = level[0]
	t.Leafs = leafs
	t.MerkleRoot = t.Root.Hash

	return nil
}

// Rebuild regenerates the tree from the values currently held in the leafs.
func (t *Tree[T]) Rebuild() error {
	return t.Generate(t.Values())
}

// Proof returns the set of hashes and the order of concatenating those
// hashes for proving a value is in the tree. Starting with the hash of the
// value, each proof hash is concatenated in front (ProofLeft) or behind
// (ProofRight) the running hash and hashed again. The final result must
// match the merkle root.
func (t *Tree[T]) Proof(data T) ([][]byte, []int64, error) {
	for _, node := range t.Leafs {
		if !node.Value.Equals(data) {
			continue
		}

		var proof [][]byte
		var order []int64

		for current := node; current.Parent != nil; current = current.Parent {
			parent := current.Parent
			if parent.Left == current {
				proof = append(proof, parent.Right.Hash)
				order = append(order, ProofRight)
				continue
			}

			proof = append(proof, parent.Left.Hash)
			order = append(order, ProofLeft)
		}

		return proof, order, nil
	}

	return nil, nil, ErrNotFound
}

// Verify recalculates every node from the leaf values and checks the result
// against the stored merkle root.
func (t *Tree[T]) Verify() error {
	if t.Root == nil {
		if !bytes.Equal(t.MerkleRoot, t.hashStrategy().Sum(nil)) {
			return errors.New("merkle root of empty tree is invalid")
		}
		return nil
	}

	calculated, err := t.Root.verify()
	if err != nil {
		return err
	}

	if !bytes.Equal(t.MerkleRoot, calculated) {
		return errors.New("merkle root is invalid")
	}

	return nil
}

// VerifyData checks the stored hashes along the path from the leaf holding
// the value up to the root.
func (t *Tree[T]) VerifyData(data T) error {
	for _, node := range t.Leafs {
		if !node.Value.Equals(data) {
			continue
		}

		h, err := node.Value.Hash()
		if err != nil {
			return err
		}

		if !bytes.Equal(h, node.Hash) {
			return errors.New("leaf hash does not match the value")
		}

		for parent := node.Parent; parent != nil; parent = parent.Parent {
			if !bytes.Equal(t.combine(parent.Left.Hash, parent.Right.Hash), parent.Hash) {
				return errors.New("merkle path does not match the stored hashes")
			}
		}

		return nil
	}

	return ErrNotFound
}

// Values returns the values stored in the tree in insertion order.
func (t *Tree[T]) Values() []T {
	values := make([]T, 0, len(t.Leafs))
	for _, node := range t.Leafs {
		values = append(values, node.Value)
	}

	return values
}

// RootHex converts the merkle root byte hash to a hex encoded string.
func (t *Tree[T]) RootHex() string {
	return hexutil.Encode(t.MerkleRoot)
}

// String returns a string representation of the tree. Only leaf nodes are
// included in the output.
func (t *Tree[T]) String() string {
	var b strings.Builder
	for _, l := range t.Leafs {
		b.WriteString(l.String())
		b.WriteString("\n")
	}

	return b.String()
}

// MarshalText implements the TextMarshaler interface. The tree itself is
// never serialized, use Values to get a slice that can be marshaled.
func (t *Tree[T]) MarshalText() ([]byte, error) {
	return nil, errors.New("merkle tree can't be marshaled, use Values")
}

// combine hashes the concatenation of two node hashes.
func (t *Tree[T]) combine(left []byte, right []byte) []byte {
	h := t.hashStrategy()
	h.Write(left)
	h.Write(right)

	return h.Sum(nil)
}

// =============================================================================

// VerifyProof walks a proof produced by Tree.Proof starting from the hash of
// a value and reports whether it arrives at the specified root.
func VerifyProof(hashStrategy func() hash.Hash, valueHash []byte, proof [][]byte, order []int64, root []byte) bool {
	if len(proof) != len(order) {
		return false
	}

	current := valueHash
	for i, p := range proof {
		h := hashStrategy()
		switch order[i] {
		case ProofLeft:
			h.Write(p)
			h.Write(current)
		case ProofRight:
			h.Write(current)
			h.Write(p)
		default:
			return false
		}
		current = h.Sum(nil)
	}

	return bytes.Equal(current, root)
}

// =============================================================================

// Node represents a node, root, or leaf in the tree. It stores pointers to its
// immediate relationships, a hash, the data if it is a leaf, and other metadata.
type Node[T Hashable[T]] struct {
	Tree   *Tree[T]
	Parent *Node[T]
	Left   *Node[T]
	Right  *Node[T]
	Hash   []byte
	Value  T
	leaf   bool
}

// verify walks down the tree until hitting a leaf, calculating the hash at
// each level and returning the resulting hash of the node.
func (n *Node[T]) verify() ([]byte, error) {
	if n.leaf {
		return n.Value.Hash()
	}

	left, err := n.Left.verify()
	if err != nil {
		return nil, err
	}

	right, err := n.Right.verify()
	if err != nil {
		return nil, err
	}

	return n.Tree.combine(left, right), nil
}

// String returns a string representation of the node.
func (n *Node[T]) String() string {
	return fmt.Sprintf("%t %s %v", n.leaf, hexutil.Encode(n.Hash), n.Value)
}
