package cmd

import (
	"encoding/json"

	"github.com/ardanlabs/ledger/foundation/blockchain/genesis"
	"github.com/spf13/cobra"
)

func newGenesisCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "genesis",
		Short: "Show the parameters in the genesis file",
		RunE: func(cmd *cobra.Command, args []string) error {
			gen, err := genesis.Load(opts.genesisPath)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(gen)
		},
	}
}
