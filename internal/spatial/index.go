// Package spatial matches aerodromes across sources: buffer joins and
// anti-joins over an R-tree, and DBSCAN clustering.
package spatial

import (
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"

	"unidrome/internal/aerodrome"
	"unidrome/internal/geo"
)

// pointTolerance is the half-size of the rectangle stored for a point.
const pointTolerance = 1e-9

type entry struct {
	idx   int
	point orb.Point
}

func (e *entry) Bounds() rtreego.Rect {
	return rtreego.Point{e.point.Lon(), e.point.Lat()}.ToRect(pointTolerance)
}

// Index is an R-tree over the points of a set of records.
type Index struct {
	tree    *rtreego.Rtree
	records []aerodrome.Record
}

// NewIndex indexes records. The slice is not copied.
func NewIndex(records []aerodrome.Record) *Index {
	objs := make([]rtreego.Spatial, len(records))
	for i, r := range records {
		objs[i] = &entry{idx: i, point: r.Point}
	}
	return &Index{tree: rtreego.NewTree(2, 25, 50, objs...), records: records}
}

// Len returns the number of indexed records.
func (ix *Index) Len() int {
	return len(ix.records)
}

// near returns the entries whose point may lie within meters of p.
func (ix *Index) near(p orb.Point, meters float64) []*entry {
	var out []*entry
	seen := make(map[int]bool)
	for _, b := range geo.BoundsAround(p, meters) {
		rect, err := rtreego.NewRectFromPoints(
			rtreego.Point{b.Min.Lon(), b.Min.Lat()},
			rtreego.Point{b.Max.Lon(), b.Max.Lat()},
		)
		if err != nil {
			continue
		}
		for _, h := range ix.tree.SearchIntersect(rect) {
			e := h.(*entry)
			if !seen[e.idx] {
				seen[e.idx] = true
				out = append(out, e)
			}
		}
	}
	return out
}

// Match is a record found near a point.
type Match struct {
	Record   aerodrome.Record
	Distance float64
}

// Within returns the records whose haversine distance to p is at most
// meters, nearest first.
func (ix *Index) Within(p orb.Point, meters float64) []Match {
	var out []Match
	for _, e := range ix.near(p, meters) {
		d := geo.Distance(p, e.point)
		if d <= meters {
			out = append(out, Match{Record: ix.records[e.idx], Distance: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out
}

// Any reports whether some record lies within meters of p.
func (ix *Index) Any(p orb.Point, meters float64) bool {
	for _, e := range ix.near(p, meters) {
		if geo.Distance(p, e.point) <= meters {
			return true
		}
	}
	return false
}
