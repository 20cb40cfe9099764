package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, store, err := setup()
		if err != nil {
			return err
		}
		if err := store.Migrate(); err != nil {
			return err
		}
		fmt.Printf("Schema migrated (%s, %s)\n", cfg.Database.Driver, cfg.Database.DSN)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
