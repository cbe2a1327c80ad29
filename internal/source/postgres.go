package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/stwalsh4118/staylens/internal/database"
)

// PostgresReader reads the listings table from PostgreSQL with pgx.
// Every selected column is cast to text so the dataset cleaner sees the same
// shape as a CSV export; NULL becomes an empty cell.
type PostgresReader struct {
	dsn     string
	table   string
	columns []string
	poolMin int
	poolMax int
}

// NewPostgresReader creates a reader for table. A nil columns slice selects
// every column of the table.
func NewPostgresReader(dsn string, poolMin, poolMax int, table string, columns []string) *PostgresReader {
	return &PostgresReader{
		dsn:     dsn,
		table:   table,
		columns: columns,
		poolMin: poolMin,
		poolMax: poolMax,
	}
}

// Describe implements Reader without exposing credentials.
func (r *PostgresReader) Describe() string {
	cfg, err := pgx.ParseConfig(r.dsn)
	if err != nil {
		return "postgres:<invalid dsn>/" + r.table
	}
	return fmt.Sprintf("postgres://%s:%d/%s/%s", cfg.Host, cfg.Port, cfg.Database, r.table)
}

// Read implements Reader.
func (r *PostgresReader) Read(ctx context.Context) (*Table, error) {
	db, err := database.NewPostgresPoolFromDSN(ctx, r.dsn, r.poolMin, r.poolMax)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer db.Close()

	table := pgx.Identifier(strings.Split(r.table, ".")).Sanitize()

	// Discover the table's columns without reading any rows
	probe, err := db.Pool.Query(ctx, "SELECT * FROM "+table+" LIMIT 0")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to inspect table %s: %v", ErrMalformed, r.table, err)
	}
	available := make([]string, 0, len(probe.FieldDescriptions()))
	for _, fd := range probe.FieldDescriptions() {
		available = append(available, fd.Name)
	}
	probe.Close()
	if err := probe.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to inspect table %s: %v", ErrMalformed, r.table, err)
	}

	columns := selectColumns(available, r.columns)
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: table %s has no readable columns", ErrMalformed, r.table)
	}

	exprs := make([]string, len(columns))
	for i, c := range columns {
		exprs[i] = pgx.Identifier{c}.Sanitize() + "::text"
	}
	query := "SELECT " + strings.Join(exprs, ", ") + " FROM " + table

	rows, err := db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query listings: %v", ErrMalformed, err)
	}
	defer rows.Close()

	var records [][]string
	for rows.Next() {
		values := make([]*string, len(columns))
		dest := make([]interface{}, len(columns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("%w: failed to scan listing row: %v", ErrMalformed, err)
		}
		records = append(records, derefAll(values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating listing rows: %v", ErrMalformed, err)
	}

	return newTable(columns, records), nil
}

// selectColumns keeps the wanted columns that exist, in table order.
// A nil wanted slice keeps everything.
func selectColumns(available, wanted []string) []string {
	if wanted == nil {
		return available
	}
	want := make(map[string]struct{}, len(wanted))
	for _, w := range wanted {
		want[w] = struct{}{}
	}
	out := make([]string, 0, len(wanted))
	for _, a := range available {
		if _, ok := want[a]; ok {
			out = append(out, a)
		}
	}
	return out
}

func derefAll(values []*string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		if v != nil {
			out[i] = *v
		}
	}
	return out
}
