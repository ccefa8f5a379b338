package table

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sfomuseum/go-csvdict"
)

// errWriter remembers the first write error so it can be reported after
// the csv writer has been flushed.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) Write(p []byte) (int, error) {
	if ew.err != nil {
		return 0, ew.err
	}
	n, err := ew.w.Write(p)
	if err != nil {
		ew.err = err
	}
	return n, err
}

// Writer writes rows given as maps under a fixed column order.
type Writer struct {
	columns []string
	known   map[string]bool
	out     *errWriter
	csv     *csvdict.Writer
}

// NewWriter writes the header immediately.
func NewWriter(w io.Writer, columns []string) (*Writer, error) {
	if len(columns) == 0 {
		return nil, errors.New("no columns to write")
	}
	ew := &errWriter{w: w}
	cw, err := csvdict.NewWriter(ew, columns)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create csv writer")
	}
	known := make(map[string]bool, len(columns))
	for _, c := range columns {
		known[c] = true
	}
	cw.WriteHeader()
	return &Writer{columns: columns, known: known, out: ew, csv: cw}, nil
}

// WriteMap writes one row. Keys that are not columns are ignored and
// missing columns are written empty.
func (w *Writer) WriteMap(m map[string]string) error {
	row := make(map[string]string, len(w.columns))
	for _, c := range w.columns {
		row[c] = ""
	}
	for k, v := range m {
		if w.known[k] {
			row[k] = v
		}
	}
	w.csv.WriteRow(row)
	return w.out.err
}

// Flush flushes buffered rows and returns the first write error.
func (w *Writer) Flush() error {
	w.csv.Flush()
	return w.out.err
}

// Write writes the whole table to w.
func (t *Table) Write(w io.Writer) error {
	cw, err := NewWriter(w, uniqueNames(t.Columns()))
	if err != nil {
		return err
	}
	for _, r := range t.Rows {
		if err := cw.WriteMap(r.Map()); err != nil {
			return errors.Wrap(err, "failed to write csv row")
		}
	}
	return cw.Flush()
}

// WriteFile writes the table to path, creating parent directories.
func (t *Table) WriteFile(path string) error {
	return WriteMapsFile(path, uniqueNames(t.Columns()), func(emit func(map[string]string) error) error {
		for _, r := range t.Rows {
			if err := emit(r.Map()); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteMapsFile creates path and streams the rows produced by fill.
func WriteMapsFile(path string, columns []string, fill func(emit func(map[string]string) error) error) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer f.Close()

	cw, err := NewWriter(f, columns)
	if err != nil {
		return err
	}
	if err := fill(cw.WriteMap); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	if err := cw.Flush(); err != nil {
		return errors.Wrapf(err, "failed to flush %s", path)
	}
	return f.Close()
}

func uniqueNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
