package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stwalsh4118/staylens/internal/config"
)

// Database wraps the pgx connection pool used to read listings from PostgreSQL.
type Database struct {
	Pool *pgxpool.Pool
}

// NewPostgresPool creates a connection pool from the DB_* configuration.
func NewPostgresPool(ctx context.Context, cfg config.DatabaseConfig) (*Database, error) {
	return NewPostgresPoolFromDSN(ctx, cfg.DSN(), cfg.PoolMin, cfg.PoolMax)
}

// NewPostgresPoolFromDSN creates a connection pool for dsn, tests the
// connection and returns a Database instance.
// Pool sizes below one fall back to pgx defaults.
func NewPostgresPoolFromDSN(ctx context.Context, dsn string, poolMin, poolMax int) (*Database, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if poolMax > 0 {
		poolConfig.MaxConns = int32(poolMax)
	}
	if poolMin > 0 && poolMin <= poolMax {
		poolConfig.MinConns = int32(poolMin)
	}

	// The dataset is read once at startup, so idle connections are not kept long
	poolConfig.ConnConfig.ConnectTimeout = 5 * time.Second
	poolConfig.MaxConnIdleTime = 30 * time.Second
	poolConfig.MaxConnLifetime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{Pool: pool}, nil
}

// Ping checks if the database connection is alive.
func (db *Database) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Close closes the pool, waiting for acquired connections to be released.
func (db *Database) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Stats returns statistics about the connection pool.
func (db *Database) Stats() *pgxpool.Stat {
	if db.Pool == nil {
		return nil
	}
	return db.Pool.Stat()
}
