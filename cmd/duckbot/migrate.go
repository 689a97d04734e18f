package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tbourn/duckbot/internal/repo"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long: `Creates the conversations table or upgrades one written by an older
deployment, adding the columns and indexes the current code expects. Already
applied steps are skipped, so running it twice is harmless.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, closeFn, err := a.open()
			if err != nil {
				return err
			}
			defer closeFn()

			ran, err := repo.Migrate(cmd.Context(), db)
			out := cmd.OutOrStdout()
			for _, id := range ran {
				fmt.Fprintf(out, "applied %s\n", id)
			}
			if err != nil {
				return err
			}
			if len(ran) == 0 {
				fmt.Fprintln(out, "schema up to date")
			}
			return nil
		},
	}
}
