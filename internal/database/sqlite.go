package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	// Registers the sqlite3 driver
	_ "github.com/mattn/go-sqlite3"
)

// OpenSQLite opens an existing SQLite database read-only and verifies the
// connection.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	// sqlite would silently create a missing file, which hides typos in DATA_SOURCE
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("failed to stat sqlite database: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	return db, nil
}
