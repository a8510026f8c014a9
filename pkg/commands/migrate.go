package commands

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for golang-migrate
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Daylily-Informatics/UltraQC/pkg/config"
	"github.com/Daylily-Informatics/UltraQC/pkg/database"
)

func migrateCommand(opts *options) *cobra.Command {
	var (
		rollback int
		status   bool
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back or inspect database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rollback > 0 && status {
				return fmt.Errorf("--rollback and --status are mutually exclusive")
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			switch {
			case status:
				return withMigrationDB(cfg, func(db *sql.DB) error {
					st, err := database.GetMigrationStatus(db, logger)
					if err != nil {
						return err
					}
					return writeJSON(cmd.OutOrStdout(), st)
				})
			case rollback > 0:
				return withMigrationDB(cfg, func(db *sql.DB) error {
					return database.RollbackMigrations(db, rollback, logger)
				})
			default:
				return migrate(cfg, logger)
			}
		},
	}
	cmd.Flags().IntVar(&rollback, "rollback", 0, "Revert this many applied migrations")
	cmd.Flags().BoolVar(&status, "status", false, "Print the current schema version and exit")
	return cmd
}

// migrate applies pending schema migrations.
func migrate(cfg *config.Config, logger *zap.Logger) error {
	return withMigrationDB(cfg, func(db *sql.DB) error {
		return database.RunMigrations(db, logger)
	})
}

// withMigrationDB opens the database/sql handle golang-migrate needs.
func withMigrationDB(cfg *config.Config, fn func(db *sql.DB) error) error {
	db, err := sql.Open("pgx", cfg.Database.ConnectionString())
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer db.Close()
	return fn(db)
}
