package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/spf13/cobra"
)

func newPrintCmd(opts *options) *cobra.Command {
	var asJSON bool

	printCmd := &cobra.Command{
		Use:   "print",
		Short: "Print every block in the chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer db.Close()

			blocks := db.Blocks()

			if asJSON {
				blockData := make([]database.BlockData, len(blocks))
				for i, block := range blocks {
					blockData[i] = database.NewBlockData(block)
				}

				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(blockData)
			}

			for _, block := range blocks {
				printBlock(cmd.OutOrStdout(), block)
			}

			return nil
		},
	}

	printCmd.Flags().BoolVar(&asJSON, "json", false, "Print the blocks as JSON.")

	return printCmd
}

func printBlock(w io.Writer, block database.Block) {
	fmt.Fprintf(w, "Block #%d\n", block.Header.Number)
	fmt.Fprintf(w, "  Timestamp: %s\n", time.Unix(int64(block.Header.TimeStamp), 0).UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "  Prev:      %s\n", block.Header.PrevBlockHash)
	fmt.Fprintf(w, "  Root:      %s\n", block.Header.TransRoot)
	fmt.Fprintf(w, "  Nonce:     %d\n", block.Header.Nonce)
	fmt.Fprintf(w, "  Hash:      %s\n", block.Hash)
	for _, tx := range block.Trans {
		fmt.Fprintf(w, "    %s\n", tx)
	}
}
