// Package database maintains the blockchain: an append-only, hash-linked
// sequence of blocks where every block is sealed by proof of work and can be
// re-verified from its raw data alone.
package database

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ardanlabs/ledger/foundation/blockchain/digest"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
)

// Storage interface represents the behavior required to be implemented by any
// package providing support for storing and reading the blockchain.
type Storage interface {
	Write(blockData BlockData) error
	GetBlock(num uint64) (BlockData, error)
	ForEach() Iterator
	Close() error
}

// Iterator interface represents the behavior required to be implemented by any
// package providing support to iterate over the blocks.
type Iterator interface {
	Next() (BlockData, error)
	Done() bool
}

// EventHandler defines a function that is called when events occur in the
// processing of blocks.
type EventHandler func(v string, args ...any)

// =============================================================================

// Config represents the configuration required to open a database.
type Config struct {
	Genesis   genesis.Genesis  // Parameters for producing and validating blocks.
	Storage   Storage          // Optional persistence of the blocks.
	Validator func(tx Tx) error // Optional transaction validator, defaults to Tx.Validate.
	Clock     Clock            // Optional clock, defaults to the system clock in UTC.
	Workers   int              // Number of G's used to search for a nonce.
	EvHandler EventHandler     // Optional handler for processing events.
}

// Database manages the blocks of the blockchain. There is a single writer at
// any given time, readers work on a snapshot of the chain.
type Database struct {
	mu      sync.RWMutex
	writeMu sync.Mutex

	genesis   genesis.Genesis
	strategy  digest.Strategy
	blocks    []Block
	storage   Storage
	validator func(tx Tx) error
	clock     Clock
	workers   int
	evHandler EventHandler

	compromised atomic.Bool
}

// New constructs a new database. Blocks found in storage are validated and
// loaded, when storage is empty the genesis block is mined and written.
func New(ctx context.Context, cfg Config) (*Database, error) {
	if err := cfg.Genesis.Validate(); err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}

	// Build a safe event handler function for use.
	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	db := Database{
		genesis:   cfg.Genesis,
		strategy:  cfg.Genesis.Strategy(),
		storage:   cfg.Storage,
		validator: cfg.Validator,
		clock:     cfg.Clock,
		workers:   max(cfg.Workers, 1),
		evHandler: ev,
	}

	if db.validator == nil {
		db.validator = Tx.Validate
	}

	if db.clock == nil {
		db.clock = systemClock{}
	}

	if err := db.load(); err != nil {
		return nil, err
	}

	if len(db.blocks) > 0 {
		ev("database: New: loaded blocks[%d]: latest[%s]", len(db.blocks), db.blocks[len(db.blocks)-1].Hash)
		return &db, nil
	}

	ev("database: New: mining genesis block")

	block, err := POW(ctx, POWArgs{
		Number:        0,
		PrevBlockHash: digest.ZeroHash,
		TimeStamp:     uint64(max(db.clock.Now().Unix(), 0)),
		Difficulty:    uint(db.genesis.GenesisDifficulty),
		MaxAttempts:   db.genesis.MaxAttempts,
		Workers:       db.workers,
		Strategy:      db.strategy,
		EvHandler:     ev,
	})
	if err != nil {
		return nil, fmt.Errorf("mining genesis: %w", err)
	}

	if err := db.append(block); err != nil {
		return nil, fmt.Errorf("writing genesis: %w", err)
	}

	return &db, nil
}

// load reads all the blocks from storage, validating each block against the
// block before it.
func (db *Database) load() error {
	if db.storage == nil {
		return nil
	}

	iter := db.storage.ForEach()
	for blockData, err := iter.Next(); !iter.Done(); blockData, err = iter.Next() {
		if err != nil {
			return fmt.Errorf("reading block[%d]: %w", len(db.blocks), err)
		}

		block := ToBlock(blockData)

		switch len(db.blocks) {
		case 0:
			err = block.validateGenesis(uint(db.genesis.GenesisDifficulty), db.strategy, db.evHandler)
		default:
			err = block.ValidateBlock(db.blocks[len(db.blocks)-1], uint(db.genesis.Difficulty), db.strategy, db.evHandler)
		}

		if err != nil {
			return fmt.Errorf("loading block[%d]: %w", len(db.blocks), err)
		}

		db.blocks = append(db.blocks, block)
	}

	return nil
}

// Close closes the storage for the database.
func (db *Database) Close() error {
	if db.storage == nil {
		return nil
	}

	return db.storage.Close()
}

// =============================================================================

// AddBlock validates the transactions, mines a new block on top of the
// latest block and appends it to the chain. If any transaction fails
// validation the whole batch is rejected and the chain is left unchanged.
func (db *Database) AddBlock(ctx context.Context, trans []Tx) (Block, error) {
	if db.compromised.Load() {
		return Block{}, ErrChainCompromised
	}

	if len(trans) == 0 {
		return Block{}, ErrNoTransactions
	}

	if limit := int(db.genesis.TransPerBlock); limit > 0 && len(trans) > limit {
		return Block{}, fmt.Errorf("%w: got %d, max %d", ErrBatchTooLarge, len(trans), limit)
	}

	// Encoding is checked for every validator since hashing depends on it.
	for i, tx := range trans {
		err := tx.checkEncoding()
		if err == nil {
			err = db.validator(tx)
		}

		if err != nil {
			db.evHandler("database: AddBlock: REJECTED: tx[%d][%s]: %s", i, tx, err)
			return Block{}, fmt.Errorf("%w: tx[%d]: %w", ErrInvalidTransaction, i, err)
		}
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	latest := db.LatestBlock()

	// The chain timestamps can never go backwards even if the clock does.
	timeStamp := uint64(max(db.clock.Now().Unix(), 0))
	if timeStamp < latest.Header.TimeStamp {
		db.evHandler("database: AddBlock: WARNING: clock regressed: clock[%d]: latest[%d]", timeStamp, latest.Header.TimeStamp)
		timeStamp = latest.Header.TimeStamp
	}

	block, err := POW(ctx, POWArgs{
		Number:        latest.Header.Number + 1,
		PrevBlockHash: latest.Hash,
		TimeStamp:     timeStamp,
		Trans:         trans,
		Difficulty:    uint(db.genesis.Difficulty),
		MaxAttempts:   db.genesis.MaxAttempts,
		Workers:       db.workers,
		Strategy:      db.strategy,
		EvHandler:     db.evHandler,
	})
	if err != nil {
		return Block{}, fmt.Errorf("mining block[%d]: %w", latest.Header.Number+1, err)
	}

	if err := db.append(block); err != nil {
		return Block{}, err
	}

	return block.clone(), nil
}

// AppendBlock takes a block constructed outside of this database, validates
// it against the latest block including the proof of work and appends it.
func (db *Database) AppendBlock(block Block) error {
	if db.compromised.Load() {
		return ErrChainCompromised
	}

	db.writeMu.Lock()
	defer db.writeMu.Unlock()

	if err := block.ValidateBlock(db.LatestBlock(), uint(db.genesis.Difficulty), db.strategy, db.evHandler); err != nil {
		return err
	}

	return db.append(block.clone())
}

// append writes the block to storage and then adds it to the chain. The
// caller must hold the write lock.
func (db *Database) append(block Block) error {
	if db.storage != nil {
		if err := db.storage.Write(NewBlockData(block)); err != nil {
			return fmt.Errorf("writing block[%d]: %w", block.Header.Number, err)
		}
	}

	db.mu.Lock()
	db.blocks = append(db.blocks, block)
	db.mu.Unlock()

	db.evHandler("database: append: blk[%d]: hash[%s]: trans[%d]", block.Header.Number, block.Hash, len(block.Trans))

	return nil
}

// =============================================================================

// Validate replays every block in order checking the linkage to the previous
// block, the block number and the block hash. The first violation found is
// returned as an IntegrityError. A database that fails validation no longer
// accepts new blocks.
func (db *Database) Validate() error {
	blocks := db.snapshot()

	for i, block := range blocks {
		prevHash := digest.ZeroHash
		if i > 0 {
			prevHash = blocks[i-1].Hash
		}

		var ie *IntegrityError

		switch {
		case block.Header.PrevBlockHash != prevHash:
			ie = &IntegrityError{
				BlockIndex: uint64(i),
				Reason:     BrokenLink,
				Detail:     fmt.Sprintf("previous hash got %s, exp %s", block.Header.PrevBlockHash, prevHash),
			}

		case block.Header.Number != uint64(i):
			ie = &IntegrityError{
				BlockIndex: uint64(i),
				Reason:     IndexGap,
				Detail:     fmt.Sprintf("block number got %d, exp %d", block.Header.Number, i),
			}

		default:
			if err := block.verifyHash(db.strategy); err != nil {
				ie = &IntegrityError{
					BlockIndex: uint64(i),
					Reason:     HashMismatch,
					Detail:     err.Error(),
				}
			}
		}

		if ie != nil {
			db.compromised.Store(true)
			db.evHandler("database: Validate: FAILED: %s", ie)
			return ie
		}
	}

	db.evHandler("database: Validate: blocks[%d]: ok", len(blocks))

	return nil
}

// Compromised reports whether a previous validation failed.
func (db *Database) Compromised() bool {
	return db.compromised.Load()
}

// =============================================================================

// Genesis returns the genesis information.
func (db *Database) Genesis() genesis.Genesis {
	return db.genesis
}

// Length returns the number of blocks in the chain.
func (db *Database) Length() int {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return len(db.blocks)
}

// LatestBlock returns the latest block.
func (db *Database) LatestBlock() Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.blocks[len(db.blocks)-1].clone()
}

// GetBlock returns the block with the specified number.
func (db *Database) GetBlock(num uint64) (Block, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if num >= uint64(len(db.blocks)) {
		return Block{}, fmt.Errorf("%w: number %d", ErrNotFound, num)
	}

	return db.blocks[num].clone(), nil
}

// Blocks returns a copy of the chain.
func (db *Database) Blocks() []Block {
	blocks := db.snapshot()

	out := make([]Block, len(blocks))
	for i, block := range blocks {
		out[i] = block.clone()
	}

	return out
}

// snapshot returns the chain as of now. Blocks are never changed once
// appended so the slice can be read without holding the lock.
func (db *Database) snapshot() []Block {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return db.blocks[:len(db.blocks):len(db.blocks)]
}
