// Package csvsource reads delimited text into rows keyed by the header line.
// Values are kept as raw strings; casting is left to the rules.
package csvsource

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/liamcoop/csvetl/rules"
)

const bom = "\uFEFF"

// Reader yields one rules.Row per data line.
// Short lines leave their trailing columns out of the row, extra fields are ignored.
type Reader struct {
	r      *csv.Reader
	header []string
	line   int
}

// Option configures a Reader
type Option func(*csv.Reader)

// WithComma sets the field delimiter
func WithComma(c rune) Option {
	return func(r *csv.Reader) {
		r.Comma = c
	}
}

// NewReader reads the header line from r
func NewReader(r io.Reader, opts ...Option) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	for _, opt := range opts {
		opt(cr)
	}

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header line")
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], bom)
	}

	return &Reader{
		r:      cr,
		header: append([]string(nil), header...),
		line:   1,
	}, nil
}

// Header returns the column names
func (r *Reader) Header() []string {
	out := make([]string, len(r.header))
	copy(out, r.header)
	return out
}

// Read returns the next row, or io.EOF when the input is exhausted
func (r *Reader) Read() (rules.Row, error) {
	fields, err := r.r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("line %d: %w", r.line+1, err)
	}
	r.line++

	row := make(rules.Row, len(r.header))
	for i, name := range r.header {
		if i >= len(fields) {
			break
		}
		row[name] = fields[i]
	}
	return row, nil
}

// ReadAll reads every remaining row
func (r *Reader) ReadAll() ([]rules.Row, error) {
	var rows []rules.Row
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
}

// File is a Reader over an opened file
type File struct {
	*Reader
	f *os.File
}

// Open opens path and reads its header line
func Open(path string, opts ...Option) (*File, error) {
	f, err := os.Open(path) //nolint:gosec // path is provided by caller
	if err != nil {
		return nil, err
	}

	r, err := NewReader(f, opts...)
	if err != nil {
		f.Close() //nolint:errcheck
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &File{Reader: r, f: f}, nil
}

// Close closes the underlying file
func (f *File) Close() error {
	return f.f.Close()
}
