// Package aerodrome turns rows of the various registries into Records: a
// point plus the airport/heliport/active tri-state, with the original row
// kept alongside.
package aerodrome

import (
	"fmt"

	"github.com/paulmach/orb"

	"unidrome/internal/table"
)

// Record is one aerodrome as seen by one source.
type Record struct {
	// Source is the registry key of the file the record came from, e.g.
	// "us/faa/nasr/APT_BASE.csv".
	Source string

	ID    string
	Name  string
	Point orb.Point

	Airport  bool
	Heliport bool
	Active   bool

	Row table.Row
}

func (r Record) String() string {
	return fmt.Sprintf("Record<SOURCE=[%s] ID=[%s] NAME=[%s] LON=(%.6f) LAT=(%.6f)>", r.Source, r.ID, r.Name, r.Point.Lon(), r.Point.Lat())
}

// Prefix returns the column prefix of the record's source.
func (r Record) Prefix() string {
	return table.Prefix(r.Source)
}

// PrefixedFields returns the original columns renamed with the source
// prefix so that records of different sources can share one table.
func (r Record) PrefixedFields() map[string]string {
	prefix := r.Prefix()
	m := r.Row.Map()
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[prefix+k] = v
	}
	return out
}

// FilterActiveAirports keeps airports that are still active.
func FilterActiveAirports(records []Record) []Record {
	var out []Record
	for _, r := range records {
		if r.Airport && r.Active {
			out = append(out, r)
		}
	}
	return out
}

// FilterReviewable keeps active records that are not heliports. This is
// the reference set of the missing-airport reports.
func FilterReviewable(records []Record) []Record {
	var out []Record
	for _, r := range records {
		if r.Active && !r.Heliport {
			out = append(out, r)
		}
	}
	return out
}
