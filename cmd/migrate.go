package cmd

import (
	"errors"
	"fmt"

	"github.com/ledgerpulse/go-forecaster/version"
	"github.com/spf13/cobra"
)

var errMigrateMemory = errors.New("the memory backend has no schema to migrate")

// migrateCmd runs database migrations for the version store.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run version store schema migrations (upgrades/downgrades)",
	Long: `Manage the schema version of the SQL version store.

Stores are migrated to the latest schema when opened, so this is only needed to prepare a
database ahead of time or to roll back. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  forecaster migrate --backend postgres --dsn "host=localhost dbname=forecaster"

  # Migrate to specific version
  forecaster migrate --target-version 1

  # Rollback to initial state
  forecaster migrate --target-version 0`,
	Args:    cobra.NoArgs,
	PreRunE: sharedSetupWrapper,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.InMemory {
			return errMigrateMemory
		}
		if err := version.Migrate(rootCtx, cfg.Backend, cfg.DSN, cfg.TargetVersion); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
		cmd.Printf("Migrated %s version store\n", cfg.Backend)
		return nil
	},
}
