package database

import (
	"errors"
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/pow"
)

// Set of errors returned by the database.
var (
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrNoTransactions     = errors.New("no transactions in batch")
	ErrBatchTooLarge      = errors.New("too many transactions in batch")
	ErrInvalidBlock       = errors.New("invalid block")
	ErrChainCompromised   = errors.New("chain failed validation, appends are disabled")
	ErrNotFound           = errors.New("block not found")
	ErrInvalidEncoding    = errors.New("account name is not valid utf-8")
)

// ErrPOWTimeout is returned when the proof of work search exceeds the max
// attempts in the genesis file. The operation can be retried since a new
// timestamp produces a new set of hashes.
var ErrPOWTimeout = pow.ErrTimeout

// =============================================================================

// Reason identifies the invariant a block failed during validation.
type Reason int

// Set of reasons a chain fails validation.
const (
	BrokenLink   Reason = iota + 1 // The previous hash doesn't match the previous block.
	IndexGap                       // The block number doesn't match its position.
	HashMismatch                   // The recomputed hash doesn't match the stored hash.
)

// String implements the fmt.Stringer interface.
func (r Reason) String() string {
	switch r {
	case BrokenLink:
		return "BrokenLink"
	case IndexGap:
		return "IndexGap"
	case HashMismatch:
		return "HashMismatch"
	}

	return fmt.Sprintf("Reason(%d)", int(r))
}

// MarshalText implements the encoding.TextMarshaler interface.
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// IntegrityError is returned by Validate when a block in the chain breaks one
// of the chain invariants.
type IntegrityError struct {
	BlockIndex uint64
	Reason     Reason
	Detail     string
}

// Error implements the error interface.
func (ie *IntegrityError) Error() string {
	return fmt.Sprintf("chain integrity violation: block[%d]: %s: %s", ie.BlockIndex, ie.Reason, ie.Detail)
}

// IsIntegrityError checks if an error of type IntegrityError exists.
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

// GetIntegrityError returns a copy of the IntegrityError pointer.
func GetIntegrityError(err error) *IntegrityError {
	var ie *IntegrityError
	if !errors.As(err, &ie) {
		return nil
	}
	return ie
}
