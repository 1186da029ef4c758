package database

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	migrationsDir   = "migrations"
	migrationsTable = "schema_migrations"
	lockTimeout     = 30 * time.Second
)

// Migrator applies the embedded schema migrations to a pool.
type Migrator struct {
	pool   *pgxpool.Pool
	source fs.FS
	logger *zap.Logger
}

// NewMigrator creates a Migrator for the embedded migrations.
func NewMigrator(pool *pgxpool.Pool, logger *zap.Logger) *Migrator {
	return &Migrator{
		pool:   pool,
		source: migrationsFS,
		logger: logger.Named("Migrator"),
	}
}

// Up applies all pending migrations.
func (m *Migrator) Up() error {
	migrator, err := m.open()
	if err != nil {
		return err
	}
	defer closeMigrator(migrator, m.logger)

	if err := migrator.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	m.logger.Info("Database migrations applied")
	return nil
}

// Down rolls back every migration.
func (m *Migrator) Down() error {
	migrator, err := m.open()
	if err != nil {
		return err
	}
	defer closeMigrator(migrator, m.logger)

	if err := migrator.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("roll back migrations: %w", err)
	}
	m.logger.Info("Database migrations rolled back")
	return nil
}

// Version returns the applied version; ok is false when nothing was applied yet.
func (m *Migrator) Version() (version uint, dirty bool, ok bool, err error) {
	migrator, err := m.open()
	if err != nil {
		return 0, false, false, err
	}
	defer closeMigrator(migrator, m.logger)

	version, dirty, err = migrator.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, fmt.Errorf("read migration version: %w", err)
	}
	return version, dirty, true, nil
}

func (m *Migrator) open() (*migrate.Migrate, error) {
	db := stdlib.OpenDBFromPool(m.pool)

	driver, err := postgres.WithInstance(db, &postgres.Config{
		MigrationsTable:       migrationsTable,
		MigrationsTableQuoted: true,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create postgres migration driver: %w", err)
	}

	source, err := iofs.New(m.source, migrationsDir)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create migration source: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	migrator.LockTimeout = lockTimeout
	return migrator, nil
}

func closeMigrator(migrator *migrate.Migrate, logger *zap.Logger) {
	srcErr, dbErr := migrator.Close()
	if srcErr != nil {
		logger.Warn("Closing migration source failed", zap.Error(srcErr))
	}
	if dbErr != nil {
		logger.Warn("Closing migration database failed", zap.Error(dbErr))
	}
}
