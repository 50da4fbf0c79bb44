package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/ardanlabs/ledger/foundation/blockchain/digest"
	"github.com/ardanlabs/ledger/foundation/blockchain/merkle"
)

// Tx is the transactional information between two parties. Field order
// matters, it is the canonical order used when the transaction is hashed.
type Tx struct {
	From   string `json:"from" validate:"required,utf8,max=128"`
	To     string `json:"to" validate:"required,utf8,max=128,nefield=From"`
	Amount int64  `json:"amount" validate:"gte=0"`
}

// NewTx constructs a new transaction.
func NewTx(from string, to string, amount int64) Tx {
	return Tx{
		From:   from,
		To:     to,
		Amount: amount,
	}
}

// Validate performs the minimal structural checks on a transaction. This is
// the validator used when the chain is not configured with one.
func (tx Tx) Validate() error {
	if tx.From == "" {
		return errors.New("from account is missing")
	}

	if tx.To == "" {
		return errors.New("to account is missing")
	}

	if tx.Amount < 0 {
		return fmt.Errorf("amount %d is negative", tx.Amount)
	}

	return tx.checkEncoding()
}

// Hash returns the digest of the transaction.
func (tx Tx) Hash(strategy digest.Strategy) (string, error) {
	data, err := tx.encode()
	if err != nil {
		return "", err
	}

	return digest.Hash(strategy, data), nil
}

// checkEncoding verifies the account names are valid utf-8. JSON encoding
// replaces invalid bytes with U+FFFD, so two different names could otherwise
// share a digest.
func (tx Tx) checkEncoding() error {
	if !utf8.ValidString(tx.From) {
		return fmt.Errorf("%w: from account %q", ErrInvalidEncoding, tx.From)
	}

	if !utf8.ValidString(tx.To) {
		return fmt.Errorf("%w: to account %q", ErrInvalidEncoding, tx.To)
	}

	return nil
}

// encode returns the canonical bytes that are hashed for the transaction.
func (tx Tx) encode() ([]byte, error) {
	if err := tx.checkEncoding(); err != nil {
		return nil, err
	}

	return json.Marshal(tx)
}

// String implements the fmt.Stringer interface for logging.
func (tx Tx) String() string {
	return fmt.Sprintf("%s->%s:%d", tx.From, tx.To, tx.Amount)
}

// =============================================================================

// MerkleRoot returns the root hash of the merkle tree built from the
// transactions. An empty set of transactions produces the hash of empty input.
func MerkleRoot(strategy digest.Strategy, trans []Tx) (string, error) {
	tree, err := merkleTree(strategy, trans)
	if err != nil {
		return "", err
	}

	return tree.RootHex(), nil
}

// merkleTree constructs the tree for the transactions using the strategy
// for both the leaf and the node hashes.
func merkleTree(strategy digest.Strategy, trans []Tx) (*merkle.Tree[leaf], error) {
	if strategy == nil {
		strategy = digest.SHA256
	}

	leafs := make([]leaf, len(trans))
	for i, tx := range trans {
		leafs[i] = leaf{tx: tx, strategy: strategy}
	}

	return merkle.NewTree(leafs, merkle.WithHashStrategy[leaf](strategy))
}

// leaf binds a transaction to the hash strategy of the chain so it can be
// stored in a merkle tree.
type leaf struct {
	tx       Tx
	strategy digest.Strategy
}

// Hash implements the merkle Hashable interface.
func (l leaf) Hash() ([]byte, error) {
	data, err := l.tx.encode()
	if err != nil {
		return nil, err
	}

	return digest.Sum(l.strategy, data), nil
}

// Equals implements the merkle Hashable interface.
func (l leaf) Equals(other leaf) bool {
	return l.tx == other.tx
}

// String implements the fmt.Stringer interface for logging.
func (l leaf) String() string {
	return l.tx.String()
}
