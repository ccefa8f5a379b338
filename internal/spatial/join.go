package spatial

import (
	"github.com/paulmach/orb"

	"unidrome/internal/aerodrome"
)

// Default buffers in meters.
const (
	MissingBuffer = 1000
	MergeBuffer   = 500
)

// Missing returns the reference records that have no candidate within
// meters.
func Missing(reference, candidates []aerodrome.Record, meters float64) []aerodrome.Record {
	ix := NewIndex(candidates)
	var out []aerodrome.Record
	for _, r := range reference {
		if !ix.Any(r.Point, meters) {
			out = append(out, r)
		}
	}
	return out
}

// Pair is one row of an inner join.
type Pair struct {
	Left     aerodrome.Record
	Right    aerodrome.Record
	Distance float64
}

// Join pairs every left record with every right record within meters.
// Left order is kept; the matches of one left record are nearest first.
func Join(left, right []aerodrome.Record, meters float64) []Pair {
	ix := NewIndex(right)
	var out []Pair
	for _, l := range left {
		for _, m := range ix.Within(l.Point, meters) {
			out = append(out, Pair{Left: l, Right: m.Record, Distance: m.Distance})
		}
	}
	return out
}

// Merged is a chain of records from successive sets joined on proximity.
// Point is the geometry of the first record.
type Merged struct {
	Point   orb.Point
	Members []aerodrome.Record
}

// Fields returns the prefixed columns of every member. On a name clash the
// first non-empty value wins.
func (m Merged) Fields() map[string]string {
	out := make(map[string]string)
	for _, r := range m.Members {
		for k, v := range r.PrefixedFields() {
			if cur, ok := out[k]; !ok || cur == "" {
				out[k] = v
			}
		}
	}
	return out
}

// MergeAll inner-joins the sets in order: a chain survives only when every
// set has a record within meters of its geometry. Each chain keeps the
// nearest match of each set, and chains sharing a geometry collapse to the
// first one.
func MergeAll(sets [][]aerodrome.Record, meters float64) []Merged {
	if len(sets) == 0 {
		return nil
	}
	chains := make([]Merged, 0, len(sets[0]))
	for _, r := range sets[0] {
		chains = append(chains, Merged{Point: r.Point, Members: []aerodrome.Record{r}})
	}
	for _, set := range sets[1:] {
		ix := NewIndex(set)
		next := chains[:0]
		for _, c := range chains {
			matches := ix.Within(c.Point, meters)
			if len(matches) == 0 {
				continue
			}
			c.Members = append(c.Members, matches[0].Record)
			next = append(next, c)
		}
		chains = next
	}

	seen := make(map[orb.Point]bool, len(chains))
	out := make([]Merged, 0, len(chains))
	for _, c := range chains {
		if seen[c.Point] {
			continue
		}
		seen[c.Point] = true
		out = append(out, c)
	}
	return out
}
