// Package cmd contains the ledger admin commands.
package cmd

import (
	"context"
	"fmt"

	"github.com/ardanlabs/ledger/business/core/ledger"
	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/ardanlabs/ledger/foundation/blockchain/storage/disk"
	"github.com/ardanlabs/ledger/foundation/logger"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// options holds the flags shared by every command.
type options struct {
	genesisPath string
	dbPath      string
	workers     int
	verbose     bool
}

// Execute runs the command line with the arguments of the process.
func Execute(build string) error {
	return newRootCmd(build).Execute()
}

func newRootCmd(build string) *cobra.Command {
	var opts options

	rootCmd := &cobra.Command{
		Use:          "ledger",
		Short:        "Administer a proof of work ledger stored on disk",
		Version:      build,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.genesisPath, "genesis", "g", "zblock/genesis.json", "Path to the genesis file.")
	rootCmd.PersistentFlags().StringVarP(&opts.dbPath, "db-path", "d", "zblock/blocks", "Path to the directory holding the blocks.")
	rootCmd.PersistentFlags().IntVarP(&opts.workers, "workers", "w", 1, "Number of goroutines searching for a nonce.")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log the chain events.")

	rootCmd.AddCommand(
		newAddCmd(&opts),
		newValidateCmd(&opts),
		newPrintCmd(&opts),
		newGenesisCmd(&opts),
	)

	return rootCmd
}

// openDB loads the genesis file and opens the chain stored on disk. A chain
// that doesn't exist yet is started with a new genesis block.
func openDB(ctx context.Context, opts *options) (*database.Database, error) {
	gen, err := genesis.Load(opts.genesisPath)
	if err != nil {
		return nil, fmt.Errorf("loading genesis: %w", err)
	}

	storage, err := disk.New(opts.dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	var ev database.EventHandler
	if opts.verbose {
		log, err := logger.New("LEDGER-CLI", "stderr")
		if err != nil {
			return nil, err
		}

		traceID := uuid.NewString()
		ev = func(v string, args ...any) {
			log.Infow(fmt.Sprintf(v, args...), "traceid", traceID)
		}
	}

	db, err := database.New(ctx, database.Config{
		Genesis:   gen,
		Storage:   storage,
		Validator: ledger.ValidateTx,
		Workers:   opts.workers,
		EvHandler: ev,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	return db, nil
}
