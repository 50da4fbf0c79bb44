// Package pow implements the proof of work search that gates the admission
// of a block into the chain. A hash solves the puzzle when its hex form
// starts with a difficulty number of 0's.
package pow

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// MaxDifficulty is the number of hex characters in a hash.
const MaxDifficulty = 64

// reportEvery is the number of attempts between progress events.
const reportEvery = 1_000_000

// Set of errors returned by the search.
var (
	ErrTimeout           = errors.New("proof of work exceeded max attempts")
	ErrInvalidDifficulty = errors.New("difficulty is larger than the hash")
)

// =============================================================================

// HashFunc returns the hash of the candidate block for the trial nonce. It
// will be called concurrently when more than one worker is configured. An
// error stops the search.
type HashFunc func(nonce uint64) (string, error)

// Config represents the parameters of a search.
type Config struct {
	Difficulty  uint                        // Number of leading 0's required.
	MaxAttempts uint64                      // Ceiling on trial nonces, 0 means none.
	Workers     int                         // Number of G's partitioning the nonce space.
	EvHandler   func(v string, args ...any) // Optional progress events.
}

// Result represents the solution found by the search.
type Result struct {
	Nonce    uint64
	Hash     string
	Attempts uint64
}

// Search iterates nonce values from 0 upward until the hash produced for the
// nonce satisfies the difficulty. With more than one worker, worker w tries
// the nonces w, w+workers, w+2*workers... and the first solution found wins.
// Any nonce that satisfies the difficulty is equally valid.
func Search(ctx context.Context, cfg Config, hashFn HashFunc) (Result, error) {
	if cfg.Difficulty > MaxDifficulty {
		return Result{}, ErrInvalidDifficulty
	}

	ev := func(v string, args ...any) {
		if cfg.EvHandler != nil {
			cfg.EvHandler(v, args...)
		}
	}

	s := searcher{
		cfg:     cfg,
		hashFn:  hashFn,
		ev:      ev,
		workers: uint64(max(cfg.Workers, 1)),
	}

	ev("pow: Search: started: difficulty[%d]: workers[%d]", cfg.Difficulty, s.workers)
	defer func() {
		ev("pow: Search: completed: attempts[%d]", s.attempts.Load())
	}()

	// Every hash satisfies a difficulty of 0 and a single worker keeps the
	// result deterministic.
	if cfg.Difficulty == 0 || s.workers == 1 {
		return s.scan(ctx, 0)
	}

	return s.parallel(ctx)
}

// IsSolved checks the hash to make sure it complies with the POW rules. We
// need to match a difficulty number of 0's after the 0x prefix.
func IsSolved(difficulty uint, hash string) bool {
	hash = strings.TrimPrefix(hash, "0x")

	if len(hash) != MaxDifficulty || difficulty > MaxDifficulty {
		return false
	}

	for _, c := range []byte(hash[:difficulty]) {
		if c != '0' {
			return false
		}
	}

	return true
}

// =============================================================================

type searcher struct {
	cfg      Config
	hashFn   HashFunc
	ev       func(v string, args ...any)
	workers  uint64
	attempts atomic.Uint64
}

// parallel runs the workers and waits for the first solution.
func (s *searcher) parallel(ctx context.Context) (Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	var won atomic.Bool
	var result Result

	for w := range s.workers {
		g.Go(func() error {
			r, err := s.scan(gctx, w)
			switch {
			case err == nil:
				if won.CompareAndSwap(false, true) {
					result = r
					cancel()
				}
				return nil

			case won.Load() && errors.Is(err, context.Canceled):
				return nil
			}

			return err
		})
	}

	err := g.Wait()
	if won.Load() {
		return result, nil
	}

	return Result{}, err
}

// scan tries the nonces in the partition starting at start.
func (s *searcher) scan(ctx context.Context, start uint64) (Result, error) {
	for nonce := start; ; nonce += s.workers {
		if err := ctx.Err(); err != nil {
			s.ev("pow: scan: CANCELLED: start[%d]", start)
			return Result{}, err
		}

		attempts := s.attempts.Add(1)
		if s.cfg.MaxAttempts > 0 && attempts > s.cfg.MaxAttempts {
			s.ev("pow: scan: TIMEOUT: attempts[%d]", s.cfg.MaxAttempts)
			return Result{}, ErrTimeout
		}

		if attempts%reportEvery == 0 {
			s.ev("pow: scan: attempts[%d]", attempts)
		}

		hash, err := s.hashFn(nonce)
		if err != nil {
			s.ev("pow: scan: ERROR: nonce[%d]: %s", nonce, err)
			return Result{}, err
		}

		if !IsSolved(s.cfg.Difficulty, hash) {
			continue
		}

		s.ev("pow: scan: SOLVED: nonce[%d]: hash[%s]", nonce, hash)

		return Result{
			Nonce:    nonce,
			Hash:     hash,
			Attempts: attempts,
		}, nil
	}
}
