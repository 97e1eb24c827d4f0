// Package database wires the pgx connection pool used by every worker and
// scheduler process, plus the goose-compatible *sql.DB handle migrations run
// through.
package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/dukerupert/apcore/internal/migrations"
	"github.com/dukerupert/apcore/internal/repository"
)

// DB bundles the application's pgxpool (used for all query/transaction work,
// including the row-level locking approval-task claim per spec §4.9) and the
// database/sql handle goose needs to run migrations.
type DB struct {
	Pool    *pgxpool.Pool
	sqlDB   *sql.DB
	Queries *repository.Queries
}

// NewDB opens the pool, verifies connectivity, and builds the repository
// Queries instance bound to it.
func NewDB(ctx context.Context, url string) (*DB, error) {
	if url == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable required")
	}

	poolCfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB := stdlib.OpenDB(*poolCfg.ConnConfig)

	return &DB{
		Pool:    pool,
		sqlDB:   sqlDB,
		Queries: repository.New(pool),
	}, nil
}

// Close releases the pool and the migrations handle. Safe to call once.
func (db *DB) Close() {
	if db.sqlDB != nil {
		db.sqlDB.Close()
	}
	if db.Pool != nil {
		db.Pool.Close()
	}
}

func (db *DB) RunMigrations(autoMigrate bool) error {
	return migrations.Run(db.sqlDB, migrations.Config{
		AutoMigrate: autoMigrate,
		Direction:   "up",
	})
}

func (db *DB) MigrationStatus() error {
	return migrations.Run(db.sqlDB, migrations.Config{
		Direction: "status",
	})
}
