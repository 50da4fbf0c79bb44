package chaingrp

import (
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
)

// NewTx is what we require from clients for each transaction in a batch.
type NewTx struct {
	From   string `json:"from" validate:"required,utf8,max=128"`
	To     string `json:"to" validate:"required,utf8,max=128"`
	Amount int64  `json:"amount" validate:"gte=0"`
}

// NewBatch is the set of transactions to record in a single block.
type NewBatch struct {
	Trans []NewTx `json:"trans" validate:"required,min=1,dive"`
}

func toDBTrans(nb NewBatch) []database.Tx {
	trans := make([]database.Tx, len(nb.Trans))
	for i, tx := range nb.Trans {
		trans[i] = database.NewTx(tx.From, tx.To, tx.Amount)
	}

	return trans
}

// Genesis is the set of chain parameters returned to clients.
type Genesis struct {
	Date              string `json:"date"`
	ChainID           uint16 `json:"chain_id"`
	TransPerBlock     uint16 `json:"trans_per_block"`
	Difficulty        uint16 `json:"difficulty"`
	GenesisDifficulty uint16 `json:"genesis_difficulty"`
	MaxAttempts       uint64 `json:"max_attempts"`
	HashStrategy      string `json:"hash_strategy"`
}

func toGenesis(gen genesis.Genesis) Genesis {
	return Genesis{
		Date:              gen.Date.Format(time.RFC3339),
		ChainID:           gen.ChainID,
		TransPerBlock:     gen.TransPerBlock,
		Difficulty:        gen.Difficulty,
		GenesisDifficulty: gen.GenesisDifficulty,
		MaxAttempts:       gen.MaxAttempts,
		HashStrategy:      gen.HashStrategy,
	}
}

// Violation describes the first block that broke the chain invariants.
type Violation struct {
	BlockIndex uint64          `json:"block_index"`
	Reason     database.Reason `json:"reason"`
	Detail     string          `json:"detail"`
}

// Validation is the result of validating the chain.
type Validation struct {
	Valid     bool       `json:"valid"`
	Height    int        `json:"height"`
	Violation *Violation `json:"violation,omitempty"`
}
