package cmd

import (
	"fmt"

	"stocklink/core/config"
	"stocklink/core/database"
	"stocklink/core/logger"

	"stocklink/feature/audit"
	"stocklink/feature/inventory"
	"stocklink/feature/store"
	syncfeature "stocklink/feature/sync"

	"github.com/spf13/cobra"
)

// migrateCmd creates or updates the database schema.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations",
	Long:  `Creates or updates all stocklink tables via gorm auto-migration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(".")
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		l, err := logger.New(&cfg.Log)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer l.Sync()

		db, err := database.Connect(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}

		l.Info("Running migrations")
		err = db.AutoMigrate(
			&store.Store{},
			&store.SyncState{},
			&inventory.Item{},
			&inventory.ExternalID{},
			&audit.Log{},
			&syncfeature.Run{},
			&syncfeature.PlanItem{},
		)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		l.Info("Migrations complete")
		return nil
	},
}

func init() {
	RootCmd.AddCommand(migrateCmd)
}
