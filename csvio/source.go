// Package csvio reads court case-count CSV exports as engine partitions and
// writes the consolidated and summary outputs.
package csvio

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/zalepa/metas/metas"
)

// Default column names of the CNJ exports.
const (
	DefaultCourtColumn  = "sigla_tribunal"
	DefaultBranchColumn = "ramo_justica"
)

// Options controls how input files are read.
type Options struct {
	CourtColumn  string
	BranchColumn string
	// Comma is the field separator; zero means ','.
	Comma rune
}

func (o Options) withDefaults() Options {
	if o.CourtColumn == "" {
		o.CourtColumn = DefaultCourtColumn
	}
	if o.BranchColumn == "" {
		o.BranchColumn = DefaultBranchColumn
	}
	if o.Comma == 0 {
		o.Comma = ','
	}
	return o
}

// FilePartition is one CSV file read as a single batch.
type FilePartition struct {
	Path string
	Opts Options
}

func (p FilePartition) Name() string { return filepath.Base(p.Path) }

// Rows reads the whole file. Only columns present in the header appear in
// each row's Fields; short rows are padded with empty cells.
func (p FilePartition) Rows(ctx context.Context) ([]metas.RawRow, error) {
	f, err := os.Open(p.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadRows(ctx, f, p.Opts)
}

// ErrMissingColumn is returned when a file lacks the court or branch column.
var ErrMissingColumn = errors.New("missing required column")

// ReadRows parses CSV from r into raw rows.
func ReadRows(ctx context.Context, r io.Reader, opts Options) ([]metas.RawRow, error) {
	opts = opts.withDefaults()
	cr := newReader(r, opts.Comma)

	header, err := readHeader(cr)
	if err != nil {
		return nil, err
	}
	courtIdx, branchIdx := -1, -1
	for i, h := range header {
		switch h {
		case opts.CourtColumn:
			courtIdx = i
		case opts.BranchColumn:
			branchIdx = i
		}
	}
	if courtIdx < 0 {
		return nil, fmt.Errorf("%w %q", ErrMissingColumn, opts.CourtColumn)
	}
	if branchIdx < 0 {
		return nil, fmt.Errorf("%w %q", ErrMissingColumn, opts.BranchColumn)
	}

	var rows []metas.RawRow
	for n := 1; ; n++ {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) == 1 && strings.TrimSpace(rec[0]) == "" {
			continue
		}
		row := metas.RawRow{Fields: make(map[string]string, len(header))}
		for i, h := range header {
			var cell string
			if i < len(rec) {
				cell = rec[i]
			}
			switch i {
			case courtIdx:
				row.Court = cell
			case branchIdx:
				row.Branch = cell
			default:
				row.Fields[h] = cell
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func newReader(r io.Reader, comma rune) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr
}

// readHeader reads the header row, dropping a UTF-8 BOM and surrounding
// whitespace from each name.
func readHeader(cr *csv.Reader) ([]string, error) {
	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("empty file")
	}
	if err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		out[i] = strings.TrimSpace(h)
	}
	return out, nil
}

// Discover returns the files matching pattern inside dir, sorted by name.
// If dir is a regular file it is returned alone.
func Discover(dir, pattern string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{dir}, nil
	}
	if pattern == "" {
		pattern = "*.csv"
	}
	paths, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("globbing %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Partitions wraps each path as a FilePartition.
func Partitions(paths []string, opts Options) []metas.Partition {
	parts := make([]metas.Partition, len(paths))
	for i, p := range paths {
		parts[i] = FilePartition{Path: p, Opts: opts}
	}
	return parts
}
