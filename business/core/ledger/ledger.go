// Package ledger provides the business access to the blockchain. It applies
// the request validation rules, retries mining when the proof of work search
// runs out of attempts and records the outcome in the logs and metrics.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ardanlabs/ledger/business/sys/metrics"
	"github.com/ardanlabs/ledger/business/sys/validate"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/avast/retry-go/v4"
	"go.uber.org/zap"
)

// Config represents the systems and settings required by the core.
type Config struct {
	Log        *zap.SugaredLogger
	DB         *database.Database
	Metrics    *metrics.Metrics
	Attempts   uint          // Number of times a block is mined before giving up.
	RetryDelay time.Duration // Delay before mining a block again.
}

// Core manages the set of APIs for ledger access.
type Core struct {
	log      *zap.SugaredLogger
	db       *database.Database
	metrics  *metrics.Metrics
	attempts uint
	delay    time.Duration
}

// NewCore constructs a core for ledger api access.
func NewCore(cfg Config) *Core {
	attempts := cfg.Attempts
	if attempts == 0 {
		attempts = 1
	}

	return &Core{
		log:      cfg.Log,
		db:       cfg.DB,
		metrics:  cfg.Metrics,
		attempts: attempts,
		delay:    cfg.RetryDelay,
	}
}

// ValidateTx applies the business rules for a transaction. It is used as
// the validator of the database.
func ValidateTx(tx database.Tx) error {
	return validate.Check(tx)
}

// =============================================================================

// Submit records the batch of transactions in a new block. When the proof of
// work search runs out of attempts the block is mined again with a new
// timestamp.
func (c *Core) Submit(ctx context.Context, trans []database.Tx) (database.Block, error) {
	mine := func() (database.Block, error) {
		start := time.Now()
		defer func() {
			c.metrics.MiningDuration.Observe(time.Since(start).Seconds())
		}()

		block, err := c.db.AddBlock(ctx, trans)
		if errors.Is(err, database.ErrPOWTimeout) {
			c.metrics.POWTimeouts.Inc()
		}

		return block, err
	}

	retryIf := func(err error) bool {
		return errors.Is(err, database.ErrPOWTimeout)
	}

	onRetry := func(n uint, err error) {
		c.log.Infow("submit", "status", "proof of work timeout", "attempt", n+1, "ERROR", err)
	}

	block, err := retry.DoWithData(mine,
		retry.Attempts(c.attempts),
		retry.Delay(c.delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryIf),
		retry.OnRetry(onRetry),
		retry.Context(ctx),
	)
	if err != nil {
		c.recordRejection(err)
		return database.Block{}, fmt.Errorf("submit: %w", err)
	}

	c.metrics.BlocksAppended.Inc()
	c.metrics.TransAppended.Add(float64(len(block.Trans)))

	c.log.Infow("submit", "status", "block appended", "number", block.Header.Number, "hash", block.Hash, "trans", len(block.Trans), "nonce", block.Header.Nonce)

	return block, nil
}

// Append admits a block mined outside of this process.
func (c *Core) Append(block database.Block) error {
	if err := c.db.AppendBlock(block); err != nil {
		c.recordRejection(err)
		return fmt.Errorf("append: %w", err)
	}

	c.metrics.BlocksAppended.Inc()
	c.metrics.TransAppended.Add(float64(len(block.Trans)))

	c.log.Infow("append", "status", "block appended", "number", block.Header.Number, "hash", block.Hash)

	return nil
}

// Validate checks the integrity of the entire chain.
func (c *Core) Validate() error {
	if err := c.db.Validate(); err != nil {
		reason := "unknown"
		if ie := database.GetIntegrityError(err); ie != nil {
			reason = ie.Reason.String()
		}

		c.metrics.ValidationFailures.WithLabelValues(reason).Inc()
		c.log.Errorw("validate", "status", "chain integrity violation", "reason", reason, "ERROR", err)

		return err
	}

	return nil
}

// recordRejection counts the reason a block was not appended.
func (c *Core) recordRejection(err error) {
	var reason string

	switch {
	case errors.Is(err, database.ErrPOWTimeout):
		reason = "pow_timeout"
	case errors.Is(err, database.ErrInvalidTransaction):
		reason = "invalid_transaction"
	case errors.Is(err, database.ErrNoTransactions):
		reason = "no_transactions"
	case errors.Is(err, database.ErrBatchTooLarge):
		reason = "batch_too_large"
	case errors.Is(err, database.ErrInvalidBlock):
		reason = "invalid_block"
	case errors.Is(err, database.ErrChainCompromised):
		reason = "chain_compromised"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		reason = "canceled"
	default:
		reason = "other"
	}

	c.metrics.RejectedBatches.WithLabelValues(reason).Inc()
	c.log.Infow("rejected", "reason", reason, "ERROR", err)
}

// =============================================================================

// Genesis returns the parameters of the chain.
func (c *Core) Genesis() genesis.Genesis {
	return c.db.Genesis()
}

// Blocks returns a copy of every block in the chain.
func (c *Core) Blocks() []database.Block {
	return c.db.Blocks()
}

// QueryByNumber returns the block with the specified number.
func (c *Core) QueryByNumber(num uint64) (database.Block, error) {
	return c.db.GetBlock(num)
}

// LatestBlock returns the block at the tail of the chain.
func (c *Core) LatestBlock() database.Block {
	return c.db.LatestBlock()
}

// Height returns the number of blocks in the chain.
func (c *Core) Height() int {
	return c.db.Length()
}

// Compromised reports whether the chain failed validation.
func (c *Core) Compromised() bool {
	return c.db.Compromised()
}
