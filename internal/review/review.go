// Package review narrows a missing-airport report to a region and walks a
// reviewer through it, remembering the airports that cannot be seen in
// imagery.
package review

import (
	"os"
	"path/filepath"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"

	"unidrome/internal/geo"
	"unidrome/internal/table"
)

// Columns of the missing-airport report.
const (
	LonColumn        = "longitude_deg"
	LatColumn        = "latitude_deg"
	IDColumn         = "id"
	EditorLinkColumn = "osm_editor_link"
)

// ErrMissingColumns is returned when the report has no coordinate columns.
var ErrMissingColumns = errors.Errorf("csv file does not contain '%s' and '%s' columns", LonColumn, LatColumn)

// ErrEmptyReport is returned when the report has no rows.
var ErrEmptyReport = errors.New("missing airports csv file is empty")

// MissingPath is the default report written by the missing command.
func MissingPath(dataDir string) string {
	return filepath.Join(dataDir, "world", "osm", "overpass", "missing_from_ourairports.csv")
}

// ReviewedPath is the list of airports that could not be seen.
func ReviewedPath(dataDir string) string {
	return filepath.Join(dataDir, "world", "ourairports", "unable-to-be-seen-in-osm-imagery.csv")
}

// Candidate is one row of the report with its parsed position.
type Candidate struct {
	Point orb.Point
	Row   table.Row
}

// ID returns the report id of the candidate.
func (c Candidate) ID() string {
	return c.Row.Get(IDColumn)
}

// EditorLink returns the report's link, or builds one from the position.
func (c Candidate) EditorLink() string {
	if link, ok := c.Row.Lookup(EditorLinkColumn); ok {
		return link
	}
	return geo.EditorLink(c.Point)
}

// LoadReport reads the missing-airport report. Rows with unreadable
// coordinates are dropped.
func LoadReport(path string) (*table.Table, []Candidate, error) {
	t, err := table.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	if t.Header.Index(LonColumn) < 0 || t.Header.Index(LatColumn) < 0 {
		return nil, nil, ErrMissingColumns
	}
	out := make([]Candidate, 0, t.Len())
	for _, row := range t.Rows {
		p, err := geo.ParsePoint(row.Get(LonColumn), row.Get(LatColumn))
		if err != nil {
			continue
		}
		out = append(out, Candidate{Point: p, Row: row})
	}
	return t, out, nil
}

// InRegion keeps the candidates inside the region.
func InRegion(candidates []Candidate, region *geo.Region) []Candidate {
	var out []Candidate
	for _, c := range candidates {
		if region.Contains(c.Point) {
			out = append(out, c)
		}
	}
	return out
}

// Reviewed is the table of airports already marked as not visible.
type Reviewed struct {
	Path    string
	Columns []string
	Rows    []map[string]string
	ids     map[string]bool
}

// LoadReviewed reads the reviewed list. A missing file is an empty list;
// a file without an id column is an error.
func LoadReviewed(path string) (*Reviewed, error) {
	r := &Reviewed{Path: path, ids: make(map[string]bool)}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return r, nil
	}
	t, err := table.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if t.Header.Index(IDColumn) < 0 {
		return nil, errors.Errorf("'%s' does not contain '%s' column", path, IDColumn)
	}
	r.Columns = t.Columns()
	for _, row := range t.Rows {
		r.Rows = append(r.Rows, row.Map())
		r.ids[row.Get(IDColumn)] = true
	}
	return r, nil
}

// Len returns the number of reviewed airports.
func (r *Reviewed) Len() int {
	return len(r.Rows)
}

// Contains reports whether id was already reviewed.
func (r *Reviewed) Contains(id string) bool {
	return r.ids[id]
}

// Exclude drops the candidates that were already reviewed.
func (r *Reviewed) Exclude(candidates []Candidate) []Candidate {
	if r.Len() == 0 {
		return candidates
	}
	var out []Candidate
	for _, c := range candidates {
		if !r.Contains(c.ID()) {
			out = append(out, c)
		}
	}
	return out
}

// Add appends a candidate and rewrites the file. New columns of the
// candidate are appended to the existing ones.
func (r *Reviewed) Add(c Candidate) error {
	known := make(map[string]bool, len(r.Columns))
	for _, name := range r.Columns {
		known[name] = true
	}
	for _, name := range c.Row.Header().Names() {
		if !known[name] {
			known[name] = true
			r.Columns = append(r.Columns, name)
		}
	}
	r.Rows = append(r.Rows, c.Row.Map())
	r.ids[c.ID()] = true

	return table.WriteMapsFile(r.Path, r.Columns, func(emit func(map[string]string) error) error {
		for _, row := range r.Rows {
			if err := emit(row); err != nil {
				return err
			}
		}
		return nil
	})
}

// Features renders candidates as points carrying every report column.
func Features(candidates []Candidate) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, c := range candidates {
		f := geojson.NewFeature(c.Point)
		for k, v := range c.Row.Map() {
			f.Properties[k] = v
		}
		fc.Append(f)
	}
	return fc
}

// Filter loads the report at path and keeps the airports inside region.
// With reviewed set, airports already on the reviewed list are dropped too.
func Filter(path string, region *geo.Region, reviewed *Reviewed) ([]Candidate, error) {
	_, candidates, err := LoadReport(path)
	if err != nil {
		return nil, err
	}
	candidates = InRegion(candidates, region)
	if reviewed != nil {
		candidates = reviewed.Exclude(candidates)
	}
	return candidates, nil
}
