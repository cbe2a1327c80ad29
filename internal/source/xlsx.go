package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/xuri/excelize/v2"
)

// XLSXFileReader reads one sheet of an Excel workbook from local disk.
type XLSXFileReader struct {
	path  string
	sheet string
}

// NewXLSXFileReader creates a reader for the workbook at path. An empty sheet
// selects the first sheet in the workbook.
func NewXLSXFileReader(path, sheet string) *XLSXFileReader {
	return &XLSXFileReader{path: path, sheet: sheet}
}

// Describe implements Reader.
func (r *XLSXFileReader) Describe() string {
	if r.sheet == "" {
		return "xlsx:" + r.path
	}
	return "xlsx:" + r.path + "#" + r.sheet
}

// Read implements Reader.
func (r *XLSXFileReader) Read(ctx context.Context) (*Table, error) {
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

	return ParseXLSX(f, r.sheet)
}

// ParseXLSX reads a workbook and returns the named sheet (or the first one)
// as a Table. The first row is the header.
func ParseXLSX(r io.Reader, sheet string) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open workbook: %v", ErrMalformed, err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: workbook has no sheets", ErrMalformed)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read sheet %q: %v", ErrMalformed, sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: sheet %q is empty", ErrMalformed, sheet)
	}

	// excelize drops trailing empty cells; newTable pads rows back out.
	return newTable(rows[0], rows[1:]), nil
}
