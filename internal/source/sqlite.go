package source

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/stwalsh4118/staylens/internal/database"
)

// SQLiteReader reads the listings table from a SQLite database file.
type SQLiteReader struct {
	path    string
	table   string
	columns []string
}

// NewSQLiteReader creates a reader for table in the database at path.
func NewSQLiteReader(path, table string, columns []string) *SQLiteReader {
	return &SQLiteReader{path: path, table: table, columns: columns}
}

// Describe implements Reader.
func (r *SQLiteReader) Describe() string {
	return "sqlite:" + r.path + "/" + r.table
}

// Read implements Reader.
func (r *SQLiteReader) Read(ctx context.Context) (*Table, error) {
	db, err := database.OpenSQLite(ctx, r.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer db.Close()

	table := quoteSQLiteIdent(r.table)

	probe, err := db.QueryContext(ctx, "SELECT * FROM "+table+" LIMIT 0")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to inspect table %s: %v", ErrMalformed, r.table, err)
	}
	available, err := probe.Columns()
	probe.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to inspect table %s: %v", ErrMalformed, r.table, err)
	}

	columns := selectColumns(available, r.columns)
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: table %s has no readable columns", ErrMalformed, r.table)
	}

	exprs := make([]string, len(columns))
	for i, c := range columns {
		exprs[i] = "CAST(" + quoteSQLiteIdent(c) + " AS TEXT)"
	}
	query := "SELECT " + strings.Join(exprs, ", ") + " FROM " + table

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query listings: %v", ErrMalformed, err)
	}
	defer rows.Close()

	var records [][]string
	for rows.Next() {
		values := make([]sql.NullString, len(columns))
		dest := make([]interface{}, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("%w: failed to scan listing row: %v", ErrMalformed, err)
		}
		record := make([]string, len(columns))
		for i, v := range values {
			if v.Valid {
				record[i] = v.String
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating listing rows: %v", ErrMalformed, err)
	}

	return newTable(columns, records), nil
}

func quoteSQLiteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
