package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quantfolio/fundfacts/internal/guardrail"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return err
		}

		fmt.Printf("schema up to date (driver=%s, guardrail rules v%d)\n",
			cfg.Store.Driver, guardrail.RulesVersion())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
