package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Veraticus/tariff/internal/config"
	"github.com/Veraticus/tariff/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

With database.driver set to postgres the commodity code table is created
in PostgreSQL as well.`,
		RunE: runMigrate,
	}

	cmd.Flags().Bool("status", false, "Show current schema version without applying changes")
	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	status, _ := cmd.Flags().GetBool("status")

	cfg, err := loadConfig(false)
	if err != nil {
		return err
	}

	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	if status {
		current, err := store.SchemaVersion(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Database: %s\nSchema version: %d (latest %d)\n",
			store.Path(), current, storage.ExpectedSchemaVersion)
		return nil
	}

	slog.Info("Running database migrations", "database", store.Path())
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if cfg.Database.Driver == config.DriverPostgres {
		_, closeRegistry, err := openRegistry(ctx, cfg, store)
		if err != nil {
			return err
		}
		defer closeRegistry()
		slog.Info("PostgreSQL commodity code schema is up to date")
	}

	slog.Info("Database migrations completed successfully")
	return nil
}
