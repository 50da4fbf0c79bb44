package genesis_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
)

func Test_Load(t *testing.T) {
	const content = `{
	"date": "2026-01-01T00:00:00Z",
	"chain_id": 7,
	"trans_per_block": 5,
	"difficulty": 3,
	"genesis_difficulty": 1,
	"max_attempts": 1000,
	"hash_strategy": "keccak256"
}`

	path := filepath.Join(t.TempDir(), "genesis.json")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Should be able to write the genesis file: %s", err)
	}

	gen, err := genesis.Load(path)
	if err != nil {
		t.Fatalf("Should be able to load the genesis file: %s", err)
	}

	if gen.ChainID != 7 || gen.TransPerBlock != 5 || gen.Difficulty != 3 || gen.GenesisDifficulty != 1 || gen.MaxAttempts != 1000 {
		t.Fatalf("Should get back the values from the file: %+v", gen)
	}

	if gen.Strategy()().Size() != 32 {
		t.Fatalf("Should get back a 32 byte hash strategy.")
	}
}

func Test_Validate(t *testing.T) {
	tt := map[string]genesis.Genesis{
		"difficulty":         {Difficulty: 65},
		"genesis-difficulty": {GenesisDifficulty: 65},
		"hash-strategy":      {HashStrategy: "md5"},
	}

	for name, gen := range tt {
		t.Run(name, func(t *testing.T) {
			if err := gen.Validate(); err == nil {
				t.Fatalf("Should not be able to validate %+v", gen)
			}
		})
	}

	if err := genesis.Default().Validate(); err != nil {
		t.Fatalf("Should be able to validate the default genesis: %s", err)
	}
}

func Test_LoadMissing(t *testing.T) {
	if _, err := genesis.Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("Should not be able to load a missing file.")
	}
}
