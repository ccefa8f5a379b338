// Package hexagg counts aerodromes per H3 cell.
package hexagg

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
	h3 "github.com/uber/h3-go/v3"

	"unidrome/internal/aerodrome"
)

// DefaultResolution is the resolution of the aggregate layer.
const DefaultResolution = 7

// Cell is one H3 cell with the number of records in it, in total and per
// source prefix.
type Cell struct {
	Index      string
	Resolution int
	Count      int
	Sources    map[string]int
}

// Aggregate buckets records into cells at resolution. Cells are sorted by
// index.
func Aggregate(records []aerodrome.Record, resolution int) []Cell {
	cells := make(map[string]*Cell)
	for _, r := range records {
		idx := h3.ToString(h3.FromGeo(h3.GeoCoord{Latitude: r.Point.Lat(), Longitude: r.Point.Lon()}, resolution))
		c, ok := cells[idx]
		if !ok {
			c = &Cell{Index: idx, Resolution: resolution, Sources: make(map[string]int)}
			cells[idx] = c
		}
		c.Count++
		c.Sources[r.Prefix()]++
	}
	return sorted(cells)
}

// Parents rolls cells up to a coarser resolution, summing counts.
func Parents(cells []Cell, resolution int) ([]Cell, error) {
	parents := make(map[string]*Cell)
	for _, c := range cells {
		if resolution > c.Resolution {
			return nil, errors.Errorf("cannot roll cell %s of resolution %d up to %d", c.Index, c.Resolution, resolution)
		}
		idx := h3.ToString(h3.ToParent(h3.FromString(c.Index), resolution))
		p, ok := parents[idx]
		if !ok {
			p = &Cell{Index: idx, Resolution: resolution, Sources: make(map[string]int)}
			parents[idx] = p
		}
		p.Count += c.Count
		for k, v := range c.Sources {
			p.Sources[k] += v
		}
	}
	return sorted(parents), nil
}

func sorted(cells map[string]*Cell) []Cell {
	out := make([]Cell, 0, len(cells))
	for _, c := range cells {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// Boundary returns the closed polygon of a cell.
func Boundary(index string) (orb.Polygon, error) {
	h := h3.FromString(index)
	if !h3.IsValid(h) {
		return nil, errors.Errorf("invalid h3 index [%s]", index)
	}
	boundary := h3.ToGeoBoundary(h)
	ring := make(orb.Ring, 0, len(boundary)+1)
	for _, c := range boundary {
		ring = append(ring, orb.Point{c.Longitude, c.Latitude})
	}
	ring = append(ring, ring[0])
	return orb.Polygon{ring}, nil
}

// Properties of the cell features.
const (
	IndexProperty      = "h3cell"
	ResolutionProperty = "resolution"
	CountProperty      = "count"
)

// Features renders cells as polygons. Per-source counts are stored as
// "<prefix>count".
func Features(cells []Cell) (*geojson.FeatureCollection, error) {
	fc := geojson.NewFeatureCollection()
	for _, c := range cells {
		poly, err := Boundary(c.Index)
		if err != nil {
			return nil, err
		}
		f := geojson.NewFeature(poly)
		f.Properties[IndexProperty] = c.Index
		f.Properties[ResolutionProperty] = c.Resolution
		f.Properties[CountProperty] = c.Count
		for prefix, n := range c.Sources {
			f.Properties[prefix+CountProperty] = n
		}
		fc.Append(f)
	}
	return fc, nil
}
