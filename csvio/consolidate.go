package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Consolidate concatenates the input files into one CSV written to w with
// separator out. The header is the union of all input headers in first-seen
// order; cells a file lacks are left empty. Files are streamed twice (once
// for headers, once for rows) so memory stays flat.
func Consolidate(w io.Writer, paths []string, in, out rune) (int, error) {
	var header []string
	index := make(map[string]int)
	for _, p := range paths {
		h, err := fileHeader(p, in)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		for _, name := range h {
			if _, ok := index[name]; !ok {
				index[name] = len(header)
				header = append(header, name)
			}
		}
	}

	cw := csv.NewWriter(w)
	cw.Comma = out
	if err := cw.Write(header); err != nil {
		return 0, err
	}

	written := 0
	for _, p := range paths {
		n, err := appendFile(cw, p, in, index, len(header))
		written += n
		if err != nil {
			return written, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
	}
	cw.Flush()
	return written, cw.Error()
}

func fileHeader(path string, comma rune) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readHeader(newReader(f, comma))
}

func appendFile(cw *csv.Writer, path string, comma rune, index map[string]int, width int) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	cr := newReader(f, comma)
	header, err := readHeader(cr)
	if err != nil {
		return 0, err
	}
	n := 0
	out := make([]string, width)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		for i := range out {
			out[i] = ""
		}
		for i, cell := range rec {
			if i < len(header) {
				out[index[header[i]]] = cell
			}
		}
		if err := cw.Write(out); err != nil {
			return n, err
		}
		n++
	}
}
