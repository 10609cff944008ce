package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// MigrateUp runs all pending up migrations. Running against an up to date
// schema is not an error.
func MigrateUp(db *sql.DB, logger *zap.Logger) error {
	logger.Info("migrating db up")

	m, err := newMigrator(db, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// MigrateDown rolls back steps migrations, or all of them when all is set.
func MigrateDown(db *sql.DB, steps int, all bool, logger *zap.Logger) error {
	logger.Info("migrating db down", zap.Int("steps", steps), zap.Bool("all", all))

	m, err := newMigrator(db, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	if all {
		err = m.Down()
	} else {
		err = m.Steps(-steps)
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

func newMigrator(db *sql.DB, logger *zap.Logger) (*migrate.Migrate, error) {
	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, err
	}

	sourceDriver, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, err
	}

	migrator, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return nil, err
	}
	migrator.Log = &logAdapter{logger: logger.Named("migrate"), verbose: true}
	return migrator, nil
}

// logAdapter lets golang-migrate write through zap.
type logAdapter struct {
	logger  *zap.Logger
	verbose bool
}

func (l *logAdapter) Printf(format string, v ...interface{}) {
	l.logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *logAdapter) Verbose() bool {
	return l.verbose
}
