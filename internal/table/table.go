// Package table holds the loosely-typed CSV tables every source is read
// into. A Row keeps both the header order and the values so parsers can
// address a column by name or, for registries whose headers are not
// stable, by position.
package table

import (
	"bufio"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const utf8BOM = "\ufeff"

// Header is the ordered list of column names shared by the rows of a table.
type Header struct {
	names []string
	index map[string]int
}

// NewHeader indexes names. On duplicate names the first column wins.
func NewHeader(names []string) *Header {
	h := &Header{names: append([]string(nil), names...), index: make(map[string]int, len(names))}
	for i, n := range h.names {
		if _, ok := h.index[n]; !ok {
			h.index[n] = i
		}
	}
	return h
}

// Names returns the column names in order.
func (h *Header) Names() []string {
	return append([]string(nil), h.names...)
}

// Index returns the position of the column, or -1.
func (h *Header) Index(name string) int {
	if i, ok := h.index[name]; ok {
		return i
	}
	return -1
}

// Row is one record of a table.
type Row struct {
	header *Header
	values []string
}

// NewRow builds a row over header. Missing trailing values read as empty.
func NewRow(header *Header, values []string) Row {
	return Row{header: header, values: values}
}

// Header returns the row's header.
func (r Row) Header() *Header {
	return r.header
}

// At returns the value at position i, or "" when the row is short.
func (r Row) At(i int) string {
	if i < 0 || i >= len(r.values) {
		return ""
	}
	return r.values[i]
}

// Get returns the value of the named column, or "".
func (r Row) Get(name string) string {
	if r.header == nil {
		return ""
	}
	return r.At(r.header.Index(name))
}

// Has reports whether the named column exists and is not blank.
func (r Row) Has(name string) bool {
	return strings.TrimSpace(r.Get(name)) != ""
}

// Lookup returns the first non-blank value among names.
func (r Row) Lookup(names ...string) (string, bool) {
	for _, n := range names {
		if v := strings.TrimSpace(r.Get(n)); v != "" {
			return v, true
		}
	}
	return "", false
}

// Map returns the row as column name to value.
func (r Row) Map() map[string]string {
	m := make(map[string]string, len(r.values))
	if r.header == nil {
		return m
	}
	for i, n := range r.header.names {
		if _, ok := m[n]; ok {
			continue
		}
		m[n] = r.At(i)
	}
	return m
}

// Table is a header plus rows.
type Table struct {
	Header *Header
	Rows   []Row
}

// Columns returns the header names.
func (t *Table) Columns() []string {
	return t.Header.Names()
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Read parses CSV from r. The first record is the header. Rows may be
// ragged and quotes are read leniently: registry dumps are not always
// well-formed.
func Read(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && string(b) == utf8BOM {
		_, _ = br.Discard(len(utf8BOM))
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = false

	names, err := cr.Read()
	if err == io.EOF {
		return nil, errors.New("empty csv: no header")
	} else if err != nil {
		return nil, errors.Wrap(err, "failed to read csv header")
	}

	t := &Table{Header: NewHeader(names)}
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read csv row %d", len(t.Rows)+2)
		}
		t.Rows = append(t.Rows, NewRow(t.Header, record))
	}
	return t, nil
}

// ReadFile reads a CSV file into a table.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	t, err := Read(f)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	return t, nil
}

// Prefix derives the column prefix used when several sources are combined:
// "data/us/faa/nasr/APT_BASE.csv" becomes "us_faa_nasr_APT_BASE_".
func Prefix(path string) string {
	p := filepath.ToSlash(path)
	p = strings.TrimPrefix(p, "data/")
	p = strings.TrimSuffix(p, ".csv")
	p = strings.NewReplacer("/", "_", ".", "_").Replace(p)
	return p + "_"
}
