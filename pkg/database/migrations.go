package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/Daylily-Informatics/UltraQC/migrations"
)

// MigrationStatus is the schema version recorded by golang-migrate.
type MigrationStatus struct {
	Version uint `json:"version" yaml:"version"`
	Dirty   bool `json:"dirty" yaml:"dirty"`
	// Initialized is false when no migration has ever been applied.
	Initialized bool `json:"initialized" yaml:"initialized"`
}

// migrator wraps a golang-migrate instance reading the embedded SQL files.
type migrator struct {
	m      *migrate.Migrate
	logger *zap.Logger
}

func newMigrator(db *sql.DB, logger *zap.Logger) (*migrator, error) {
	source, err := iofs.New(migrations.FS, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return &migrator{m: m, logger: logger}, nil
}

func (mg *migrator) close() {
	srcErr, dbErr := mg.m.Close()
	if srcErr != nil {
		mg.logger.Warn("Failed to close migration source", zap.Error(srcErr))
	}
	if dbErr != nil {
		mg.logger.Warn("Failed to close migration database", zap.Error(dbErr))
	}
}

func (mg *migrator) status() (MigrationStatus, error) {
	version, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return MigrationStatus{}, nil
	}
	if err != nil {
		return MigrationStatus{}, fmt.Errorf("failed to read migration version: %w", err)
	}
	return MigrationStatus{Version: version, Dirty: dirty, Initialized: true}, nil
}

// RunMigrations applies every pending migration embedded in the binary.
// Calling it on an up-to-date schema is a no-op.
func RunMigrations(db *sql.DB, logger *zap.Logger) error {
	mg, err := newMigrator(db, logger)
	if err != nil {
		return err
	}
	defer mg.close()

	err = mg.m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("No migrations to apply (database up-to-date)")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	st, err := mg.status()
	if err != nil {
		return err
	}
	logger.Info("Applied migrations successfully", zap.Uint("version", st.Version))
	return nil
}

// RollbackMigrations reverts the last n applied migrations.
func RollbackMigrations(db *sql.DB, n int, logger *zap.Logger) error {
	if n <= 0 {
		return fmt.Errorf("rollback step count must be positive, got %d", n)
	}
	mg, err := newMigrator(db, logger)
	if err != nil {
		return err
	}
	defer mg.close()

	err = mg.m.Steps(-n)
	if errors.Is(err, migrate.ErrNoChange) {
		logger.Info("No migrations to roll back")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to roll back migrations: %w", err)
	}

	st, err := mg.status()
	if err != nil {
		return err
	}
	logger.Info("Rolled back migrations", zap.Int("steps", n), zap.Uint("version", st.Version))
	return nil
}

// GetMigrationStatus reports the current schema version without changing it.
func GetMigrationStatus(db *sql.DB, logger *zap.Logger) (MigrationStatus, error) {
	mg, err := newMigrator(db, logger)
	if err != nil {
		return MigrationStatus{}, err
	}
	defer mg.close()
	return mg.status()
}
