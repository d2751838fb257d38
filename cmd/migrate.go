package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/frahmantamala/payroll-ledger/db/migrations"
	"github.com/frahmantamala/payroll-ledger/pkg/logger"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"
)

var (
	migrateCmd = &cobra.Command{
		RunE:  runMigration,
		Use:   "migrate",
		Short: "to run db migration files under db/migrations directory",
	}
	migrateRollback bool
	migrateDir      string
)

func init() {
	migrateCmd.Flags().BoolVarP(&migrateRollback, "rollback", "r", false, "to rollback the latest version of sql migration")
	migrateCmd.PersistentFlags().StringVarP(&migrateDir, "dir", "d", "", "sql migrations directory on disk (defaults to the migrations built into the binary)")
}

func runMigration(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	setupLogger(cfg)

	db, err := goose.OpenDBWithDriver("pgx", cfg.Database.Source)
	if err != nil {
		return fmt.Errorf("goose: failed to open DB: %w", err)
	}
	defer db.Close()

	var fsys fs.FS
	if migrateDir != "" {
		fsys = os.DirFS(migrateDir)
	}
	provider, err := migrations.NewProvider(goose.DialectPostgres, db, fsys)
	if err != nil {
		return err
	}

	lg := logger.L()
	if migrateRollback {
		lg.Info("rolling back latest migration", "dir", migrateDir)
		res, err := provider.Down(ctx)
		if err != nil {
			return fmt.Errorf("goose down: %w", err)
		}
		lg.Info("migration rolled back", "version", res.Source.Version, "duration", res.Duration)
		return nil
	}

	lg.Info("applying migrations", "dir", migrateDir)
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	for _, res := range results {
		lg.Info("migration applied", "version", res.Source.Version, "path", res.Source.Path, "duration", res.Duration)
	}
	return nil
}
