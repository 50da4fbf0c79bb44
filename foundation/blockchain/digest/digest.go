// Package digest provides the content hashing used to seal blocks and
// transactions. Every digest is represented as a 0x-prefixed hex string of
// 64 characters so hashes can be stored, compared and checked for leading
// zeros without any decoding.
package digest

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"hash"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ZeroHash represents a hash code of zeros. It is used as the previous hash
// of the genesis block.
const ZeroHash string = "0x0000000000000000000000000000000000000000000000000000000000000000"

// Size is the number of bytes in a digest.
const Size = 32

// Set of supported strategy names.
const (
	NameSHA256    = "sha256"
	NameKeccak256 = "keccak256"
)

// =============================================================================

// Strategy constructs the hash function used to produce a digest. Any
// implementation must produce Size byte sums.
type Strategy func() hash.Hash

// SHA256 is the default strategy.
func SHA256() hash.Hash {
	return sha256.New()
}

// Keccak256 is the Ethereum flavor of SHA3.
func Keccak256() hash.Hash {
	return crypto.NewKeccakState()
}

// StrategyFor returns the strategy registered under the specified name. An
// empty name selects SHA256.
func StrategyFor(name string) (Strategy, error) {
	switch strings.ToLower(name) {
	case "", NameSHA256:
		return SHA256, nil
	case NameKeccak256:
		return Keccak256, nil
	}

	return nil, fmt.Errorf("unknown hash strategy %q", name)
}

// =============================================================================

// Sum hashes the concatenation of the specified byte slices.
func Sum(strategy Strategy, data ...[]byte) []byte {
	if strategy == nil {
		strategy = SHA256
	}

	h := strategy()
	for _, d := range data {
		h.Write(d)
	}

	return h.Sum(nil)
}

// Hash returns the canonical string form of the digest for the data.
func Hash(strategy Strategy, data ...[]byte) string {
	return Encode(Sum(strategy, data...))
}

// Value returns the digest of the JSON encoding of the value. Struct fields
// are encoded in declaration order which makes the result deterministic.
func Value(strategy Strategy, value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}

	return Hash(strategy, data), nil
}

// EmptyHash returns the digest of empty input for the strategy.
func EmptyHash(strategy Strategy) string {
	return Hash(strategy)
}

// =============================================================================

// Encode converts the raw digest into its canonical string form.
func Encode(sum []byte) string {
	return hexutil.Encode(sum)
}

// Decode converts the canonical string form back to the raw digest.
func Decode(s string) ([]byte, error) {
	if !IsHash(s) {
		return nil, fmt.Errorf("invalid hash %q", s)
	}

	return hexutil.Decode(s)
}

// IsHash verifies the string is a 0x-prefixed, 64 character hex digest.
func IsHash(s string) bool {
	if len(s) != 2+2*Size || !strings.HasPrefix(s, "0x") {
		return false
	}

	for _, c := range []byte(s[2:]) {
		if !isHexCharacter(c) {
			return false
		}
	}

	return true
}

// isHexCharacter returns bool of c being a valid hexadecimal.
func isHexCharacter(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
