package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/spf13/cobra"
)

func newAddCmd(opts *options) *cobra.Command {
	var (
		trans []string
		file  string
	)

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Mine a new block holding a batch of transactions",
		Example: `  ledger add --tx Alice:Bob:50 --tx Bob:Charlie:25
  ledger add --file batch.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			batch, err := readBatch(trans, file)
			if err != nil {
				return err
			}

			db, err := openDB(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer db.Close()

			block, err := db.AddBlock(cmd.Context(), batch)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "block %d mined: hash %s nonce %d\n", block.Header.Number, block.Hash, block.Header.Nonce)

			return nil
		},
	}

	addCmd.Flags().StringArrayVarP(&trans, "tx", "t", nil, "Transaction in the form from:to:amount, can be repeated.")
	addCmd.Flags().StringVarP(&file, "file", "f", "", "Path to a JSON file holding an array of transactions.")
	addCmd.MarkFlagsMutuallyExclusive("tx", "file")
	addCmd.MarkFlagsOneRequired("tx", "file")

	return addCmd
}

// readBatch builds the batch of transactions from the flags or the file.
func readBatch(trans []string, file string) ([]database.Tx, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}

		var batch []database.Tx
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", file, err)
		}

		return batch, nil
	}

	batch := make([]database.Tx, len(trans))
	for i, s := range trans {
		tx, err := parseTx(s)
		if err != nil {
			return nil, fmt.Errorf("tx[%d]: %w", i, err)
		}
		batch[i] = tx
	}

	return batch, nil
}

// parseTx converts a from:to:amount string into a transaction.
func parseTx(s string) (database.Tx, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return database.Tx{}, errors.New("expected from:to:amount")
	}

	amount, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return database.Tx{}, fmt.Errorf("invalid amount %q", parts[2])
	}

	return database.NewTx(parts[0], parts[1], amount), nil
}
