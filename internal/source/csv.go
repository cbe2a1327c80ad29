package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// CSVFileReader reads a CSV file from local disk.
type CSVFileReader struct {
	path string
}

// NewCSVFileReader creates a reader for the CSV file at path.
func NewCSVFileReader(path string) *CSVFileReader {
	return &CSVFileReader{path: path}
}

// Describe implements Reader.
func (r *CSVFileReader) Describe() string {
	return "csv:" + r.path
}

// Read implements Reader.
func (r *CSVFileReader) Read(ctx context.Context) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	f, err := os.Open(r.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: file %s does not exist", ErrUnreachable, r.path)
		}
		return nil, fmt.Errorf("%w: failed to open %s: %v", ErrUnreachable, r.path, err)
	}
	defer f.Close()

	return ParseCSV(f)
}

// ParseCSV parses CSV text with a header row. Every column is read as a
// string; type coercion is left to the dataset cleaner so that invalid
// cells become missing values instead of failing the whole column.
func ParseCSV(r io.Reader) (*Table, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
	)
	if df.Err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, df.Err)
	}

	names := df.Names()
	columns := make([][]string, len(names))
	for i, name := range names {
		columns[i] = df.Col(name).Records()
	}

	rows := make([][]string, df.Nrow())
	for i := range rows {
		row := make([]string, len(names))
		for j := range names {
			row[j] = columns[j][i]
		}
		rows[i] = row
	}

	return newTable(names, rows), nil
}
