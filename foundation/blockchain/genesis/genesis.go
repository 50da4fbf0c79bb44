// Package genesis maintains access to the genesis file which holds the
// parameters every block in the chain is produced and validated with.
package genesis

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/digest"
	"github.com/ardanlabs/ledger/foundation/blockchain/pow"
)

// Genesis represents the genesis file.
type Genesis struct {
	Date              time.Time `json:"date"`
	ChainID           uint16    `json:"chain_id"`           // The chain id represents an unique id for this running instance.
	TransPerBlock     uint16    `json:"trans_per_block"`    // The maximum number of transactions that can be in a block, 0 for no limit.
	Difficulty        uint16    `json:"difficulty"`         // How difficult it needs to be to solve the work problem.
	GenesisDifficulty uint16    `json:"genesis_difficulty"` // Difficulty used to seal the genesis block, 0 disables the work.
	MaxAttempts       uint64    `json:"max_attempts"`       // Ceiling on nonces tried for a single block, 0 for no limit.
	HashStrategy      string    `json:"hash_strategy"`      // Hash function used for every digest in the chain.
}

// Default returns the parameters used when no genesis file is provided.
func Default() Genesis {
	return Genesis{
		Date:          time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC),
		ChainID:       1,
		TransPerBlock: 10,
		Difficulty:    2,
		MaxAttempts:   10_000_000,
		HashStrategy:  digest.NameSHA256,
	}
}

// Load opens and consumes the genesis file.
func Load(path string) (Genesis, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Genesis{}, err
	}

	var genesis Genesis
	if err := json.Unmarshal(content, &genesis); err != nil {
		return Genesis{}, fmt.Errorf("decoding genesis: %w", err)
	}

	if err := genesis.Validate(); err != nil {
		return Genesis{}, err
	}

	return genesis, nil
}

// Validate checks the parameters can be used to produce blocks.
func (g Genesis) Validate() error {
	if g.Difficulty > pow.MaxDifficulty {
		return fmt.Errorf("difficulty %d is larger than %d", g.Difficulty, pow.MaxDifficulty)
	}

	if g.GenesisDifficulty > pow.MaxDifficulty {
		return fmt.Errorf("genesis difficulty %d is larger than %d", g.GenesisDifficulty, pow.MaxDifficulty)
	}

	if _, err := digest.StrategyFor(g.HashStrategy); err != nil {
		return err
	}

	return nil
}

// Strategy returns the hash strategy named in the genesis file.
func (g Genesis) Strategy() digest.Strategy {
	strategy, err := digest.StrategyFor(g.HashStrategy)
	if err != nil {
		return digest.SHA256
	}

	return strategy
}
