// Package redis implements the ability to read and write blocks to a redis
// server. Every block is stored as a JSON value under its own key and the
// number of blocks is kept under a height key.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/redis/go-redis/v9"
)

// keyPrefix is the namespace prefix for all keys written by this package.
const keyPrefix = "ledger"

// ErrEndOfChain is returned by the iterator once every block has been read.
var ErrEndOfChain = errors.New("end of chain")

// Config represents the settings to connect to the redis server.
type Config struct {
	Addr     string
	Username string
	Password string
	DB       int
	ChainID  uint16
	Timeout  time.Duration
}

// Redis represents the serialization implementation for reading and storing
// blocks in redis. This implements the database.Storage interface.
type Redis struct {
	conn    *redis.Client
	chainID uint16
	timeout time.Duration
}

// New constructs a Redis value for use and checks the server can be reached.
func New(ctx context.Context, cfg Config) (*Redis, error) {
	conn := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := conn.Ping(ctx).Err(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	r := Redis{
		conn:    conn,
		chainID: cfg.ChainID,
		timeout: timeout,
	}

	return &r, nil
}

// Close closes the connection to the server.
func (r *Redis) Close() error {
	return r.conn.Close()
}

// Write stores the block and moves the height forward in a single
// transaction. The block must be the next block after the current height.
func (r *Redis) Write(blockData database.BlockData) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	data, err := json.Marshal(blockData)
	if err != nil {
		return err
	}

	heightKey := r.heightKey()

	// Watch the height so a concurrent writer fails the transaction.
	txf := func(tx *redis.Tx) error {
		height, err := tx.Get(ctx, heightKey).Uint64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		if blockData.Header.Number != height {
			return fmt.Errorf("block is out of order, got %d, exp %d", blockData.Header.Number, height)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.blockKey(blockData.Header.Number), data, 0)
			pipe.Set(ctx, heightKey, height+1, 0)
			return nil
		})

		return err
	}

	return r.conn.Watch(ctx, txf, heightKey)
}

// GetBlock retrieves the block with the specified number.
func (r *Redis) GetBlock(num uint64) (database.BlockData, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	data, err := r.conn.Get(ctx, r.blockKey(num)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return database.BlockData{}, fmt.Errorf("%w: number %d", database.ErrNotFound, num)
		}
		return database.BlockData{}, err
	}

	var blockData database.BlockData
	if err := json.Unmarshal(data, &blockData); err != nil {
		return database.BlockData{}, fmt.Errorf("decoding block %d: %w", num, err)
	}

	return blockData, nil
}

// ForEach returns an iterator to walk through all the blocks
// starting with the genesis block.
func (r *Redis) ForEach() database.Iterator {
	return &redisIterator{storage: r}
}

// Height returns the number of blocks stored.
func (r *Redis) Height(ctx context.Context) (uint64, error) {
	height, err := r.conn.Get(ctx, r.heightKey()).Uint64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}

	return height, err
}

// blockKey constructs the key for a block:
//
//	"ledger:<chain>:block:<number>"
func (r *Redis) blockKey(num uint64) string {
	return fmt.Sprintf("%s:%d:block:%d", keyPrefix, r.chainID, num)
}

// heightKey constructs the key holding the number of blocks:
//
//	"ledger:<chain>:height"
func (r *Redis) heightKey() string {
	return fmt.Sprintf("%s:%d:height", keyPrefix, r.chainID)
}

// =============================================================================

// redisIterator walks the blocks stored in redis. This implements the
// database Iterator interface.
type redisIterator struct {
	storage *Redis
	current uint64
	eoc     bool
}

// Next retrieves the next block from redis.
func (ri *redisIterator) Next() (database.BlockData, error) {
	if ri.eoc {
		return database.BlockData{}, ErrEndOfChain
	}

	blockData, err := ri.storage.GetBlock(ri.current)
	if errors.Is(err, database.ErrNotFound) {
		ri.eoc = true
		return database.BlockData{}, ErrEndOfChain
	}

	ri.current++

	return blockData, err
}

// Done returns the end of chain value.
func (ri *redisIterator) Done() bool {
	return ri.eoc
}

// Compile-time assertion the storage satisfies the database interface.
var _ database.Storage = (*Redis)(nil)
