package aerodrome

import (
	"io"

	"github.com/pkg/errors"

	"unidrome/internal/table"
)

// FromTable converts the rows of t. Rows without a usable point are
// dropped; their count is returned as skipped.
func FromTable(key string, t *table.Table, p Parser) (records []Record, skipped int) {
	records = make([]Record, 0, t.Len())
	for _, row := range t.Rows {
		pt, ok := p.Geometry(row)
		if !ok {
			skipped++
			continue
		}
		records = append(records, Record{
			Source:   key,
			ID:       p.ID(row),
			Name:     p.Label(row),
			Point:    pt,
			Airport:  p.IsAirport(row),
			Heliport: p.IsHeliport(row),
			Active:   p.IsActive(row),
			Row:      row,
		})
	}
	return records, skipped
}

// Parse reads CSV from r and converts it with p.
func Parse(key string, r io.Reader, p Parser) ([]Record, int, error) {
	t, err := table.Read(r)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "read [%s]", key)
	}
	records, skipped := FromTable(key, t, p)
	return records, skipped, nil
}

// Load reads the CSV of one registry entry.
func Load(src Source) ([]Record, int, error) {
	t, err := table.ReadFile(src.Path)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "load [%s]", src.Key)
	}
	records, skipped := FromTable(src.Key, t, src.Parser)
	return records, skipped, nil
}

// LoadAll loads every registry entry, keyed by registry key.
func LoadAll(r Registry) (map[string][]Record, error) {
	out := make(map[string][]Record, len(r))
	for _, src := range r {
		records, _, err := Load(src)
		if err != nil {
			return nil, err
		}
		out[src.Key] = records
	}
	return out, nil
}

// Flatten concatenates the records of LoadAll in registry order.
func Flatten(r Registry, loaded map[string][]Record) []Record {
	var out []Record
	for _, src := range r {
		out = append(out, loaded[src.Key]...)
	}
	return out
}
