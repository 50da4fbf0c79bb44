package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Verify the linkage, numbering and hashes of every block",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Validate(); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "chain is valid: %d blocks\n", db.Length())

			return nil
		},
	}
}
