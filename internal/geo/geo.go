// Package geo holds the small amount of geometry the workflows need on top
// of orb: parsing coordinates out of registry rows, geodesic distances for
// buffer matching, and OSM editor links for reviewers.
package geo

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/pkg/errors"
)

// ParsePoint builds a lon/lat point from decimal strings. It fails on blank
// or out-of-range values.
func ParsePoint(lon, lat string) (orb.Point, error) {
	x, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return orb.Point{}, errors.Wrapf(err, "bad longitude %q", lon)
	}
	y, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return orb.Point{}, errors.Wrapf(err, "bad latitude %q", lat)
	}
	p := orb.Point{x, y}
	if !Valid(p) {
		return orb.Point{}, errors.Errorf("point out of range: %v", p)
	}
	return p, nil
}

// Valid reports whether p is a finite WGS84 coordinate.
func Valid(p orb.Point) bool {
	if math.IsNaN(p[0]) || math.IsNaN(p[1]) || math.IsInf(p[0], 0) || math.IsInf(p[1], 0) {
		return false
	}
	return p[0] >= -180 && p[0] <= 180 && p[1] >= -90 && p[1] <= 90
}

// DMS converts degrees, minutes and seconds to decimal degrees.
func DMS(deg, min, sec float64) float64 {
	return deg + min/60 + sec/3600
}

// Distance is the haversine distance between a and b in meters.
func Distance(a, b orb.Point) float64 {
	return geo.DistanceHaversine(a, b)
}

// BoundAround returns the bound covering every point within meters of p.
// Its longitudes may fall outside [-180, 180]; see BoundsAround.
func BoundAround(p orb.Point, meters float64) orb.Bound {
	return geo.NewBoundAroundPoint(p, meters)
}

// BoundsAround is BoundAround split at the antimeridian: one bound, or two
// when the area crosses ±180°. Every returned bound has Min.Lon <= Max.Lon
// within [-180, 180].
func BoundsAround(p orb.Point, meters float64) []orb.Bound {
	b := BoundAround(p, meters)
	minLon, maxLon := b.Min.Lon(), b.Max.Lon()
	minLat, maxLat := math.Max(b.Min.Lat(), -90), math.Min(b.Max.Lat(), 90)
	bound := func(west, east float64) orb.Bound {
		return orb.Bound{Min: orb.Point{west, minLat}, Max: orb.Point{east, maxLat}}
	}

	// normalize to a west edge and an eastward extent
	if minLon > maxLon {
		maxLon += 360
	}
	if maxLon-minLon >= 360 {
		return []orb.Bound{bound(-180, 180)}
	}
	if minLon < -180 {
		minLon += 360
		maxLon += 360
	}
	if maxLon > 180 {
		return []orb.Bound{bound(minLon, 180), bound(-180, maxLon-360)}
	}
	return []orb.Bound{bound(minLon, maxLon)}
}

// EditorLink opens the iD editor zoomed on p.
func EditorLink(p orb.Point) string {
	return fmt.Sprintf("https://www.openstreetmap.org/edit?editor=id#map=18/%.6f/%.6f", p.Lat(), p.Lon())
}

// FormatCoord renders a coordinate the way the CSV outputs carry them.
func FormatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
