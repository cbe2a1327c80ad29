// Package source reads the raw listings table from wherever it lives: a CSV or
// XLSX file, an HTTP(S) URL, a PostgreSQL table or a SQLite table. Every
// reader yields the same string-typed Table; cleaning happens in the dataset
// package.
package source

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/stwalsh4118/staylens/internal/config"
)

// Errors wrapped by every reader so callers can classify load failures.
var (
	ErrUnreachable = errors.New("data source unreachable")
	ErrMalformed   = errors.New("data source malformed")
)

// DefaultFetchTimeout bounds HTTP downloads when no timeout is configured.
const DefaultFetchTimeout = 30 * time.Second

// Table is a raw, row-oriented tabular resource. Every cell is text; missing
// values keep whatever marker the source used (empty string, "NaN", ...).
type Table struct {
	Columns []string
	Rows    [][]string
}

// newTable normalises header names and pads short rows to the header width.
func newTable(columns []string, rows [][]string) *Table {
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = strings.TrimSpace(strings.TrimPrefix(c, "\ufeff"))
	}
	for i, row := range rows {
		if len(row) < len(cols) {
			padded := make([]string, len(cols))
			copy(padded, row)
			rows[i] = padded
		}
	}
	return &Table{Columns: cols, Rows: rows}
}

// ColumnIndex maps each header name to its position. The first occurrence wins.
func (t *Table) ColumnIndex() map[string]int {
	idx := make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		if _, exists := idx[c]; !exists {
			idx[c] = i
		}
	}
	return idx
}

// Reader produces the raw table from one data source.
type Reader interface {
	// Read loads the whole table. Errors wrap ErrUnreachable or ErrMalformed.
	Read(ctx context.Context) (*Table, error)

	// Describe returns a log-safe description of the source (no credentials).
	Describe() string
}

// Options selects and configures a Reader.
type Options struct {
	// Location is a file path, an http(s) URL, "postgres", a postgres:// DSN
	// or a sqlite:// path.
	Location string
	// Table is the SQL table for database sources.
	Table string
	// Sheet is the XLSX sheet name; empty means the first sheet.
	Sheet string
	// Columns restricts SQL sources to these columns when present. Nil selects all.
	Columns      []string
	FetchTimeout time.Duration
	Database     config.DatabaseConfig
}

// Open returns the Reader matching opts.Location.
func Open(opts Options) (Reader, error) {
	loc := strings.TrimSpace(opts.Location)
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}

	switch {
	case loc == "":
		return nil, fmt.Errorf("%w: no location configured", ErrUnreachable)
	case loc == "postgres":
		return NewPostgresReader(opts.Database.DSN(), opts.Database.PoolMin, opts.Database.PoolMax, opts.Table, opts.Columns), nil
	case strings.HasPrefix(loc, "postgres://"), strings.HasPrefix(loc, "postgresql://"):
		return NewPostgresReader(loc, opts.Database.PoolMin, opts.Database.PoolMax, opts.Table, opts.Columns), nil
	case strings.HasPrefix(loc, "sqlite://"):
		return NewSQLiteReader(strings.TrimPrefix(loc, "sqlite://"), opts.Table, opts.Columns), nil
	case strings.HasPrefix(loc, "http://"), strings.HasPrefix(loc, "https://"):
		return NewHTTPReader(loc, opts.Sheet, timeout), nil
	case strings.EqualFold(filepath.Ext(loc), ".xlsx"):
		return NewXLSXFileReader(loc, opts.Sheet), nil
	default:
		return NewCSVFileReader(loc), nil
	}
}
