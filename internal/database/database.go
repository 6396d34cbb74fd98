package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/drfintrack/fintrack-auth/internal/config"
	"github.com/drfintrack/fintrack-auth/pkg/debug"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

/*
 * Connect opens a PostgreSQL connection pool and validates it with a ping.
 *
 * Returns:
 *   - *sql.DB: Database connection pool if successful
 *   - error: Any error encountered during connection
 */
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	debug.Info("Attempting database connection")
	debug.Debug("Database configuration - Host: %s, Port: %d, User: %s, Database: %s",
		cfg.Host, cfg.Port, cfg.User, cfg.Name)

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		debug.Error("Failed to open database connection: %v", err)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		debug.Error("Failed to ping database: %v", err)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	debug.Info("Successfully connected to database")
	return db, nil
}

// newMigrator builds a migrate instance over the embedded SQL files.
func newMigrator(db *sql.DB) (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration instance: %w", err)
	}
	return m, nil
}

/*
 * RunMigrations applies all pending migrations.
 *
 * Returns:
 *   - error: Any error encountered during migration, nil if successful
 *           Returns nil if no migrations are pending (ErrNoChange)
 */
func RunMigrations(db *sql.DB) error {
	debug.Info("Starting database migrations")
	m, err := newMigrator(db)
	if err != nil {
		debug.Error("Failed to create migration instance: %v", err)
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		debug.Error("Migration failed: %v", err)
		return err
	}
	debug.Info("Database migrations completed successfully")
	return nil
}
