package geo

import (
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
	"github.com/pkg/errors"
)

// ErrEmptyRegion is returned when a region file holds no polygon.
var ErrEmptyRegion = errors.New("bounding region has no polygons")

// Region is the union of every polygon of a bounding GeoJSON file.
type Region struct {
	polygons orb.MultiPolygon
	bound    orb.Bound
}

// NewRegion wraps polygons.
func NewRegion(polygons orb.MultiPolygon) (*Region, error) {
	if len(polygons) == 0 {
		return nil, ErrEmptyRegion
	}
	return &Region{polygons: polygons, bound: polygons.Bound()}, nil
}

// LoadRegion reads a FeatureCollection, Feature or bare geometry. GeoJSON
// is always WGS84 so no reprojection is needed.
func LoadRegion(path string) (*Region, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read bounding region %s", path)
	}
	return ParseRegion(b)
}

// ParseRegion parses GeoJSON bytes into a Region.
func ParseRegion(b []byte) (*Region, error) {
	var geoms []orb.Geometry

	if fc, err := geojson.UnmarshalFeatureCollection(b); err == nil && len(fc.Features) > 0 {
		for _, f := range fc.Features {
			geoms = append(geoms, f.Geometry)
		}
	} else if f, err := geojson.UnmarshalFeature(b); err == nil && f.Geometry != nil {
		geoms = append(geoms, f.Geometry)
	} else if g, err := geojson.UnmarshalGeometry(b); err == nil && g.Coordinates != nil {
		geoms = append(geoms, g.Coordinates)
	} else {
		return nil, errors.New("bounding region is not a GeoJSON feature collection, feature or geometry")
	}

	var mp orb.MultiPolygon
	for _, g := range geoms {
		mp = appendPolygons(mp, g)
	}
	return NewRegion(mp)
}

func appendPolygons(mp orb.MultiPolygon, g orb.Geometry) orb.MultiPolygon {
	switch v := g.(type) {
	case orb.Polygon:
		return append(mp, v)
	case orb.MultiPolygon:
		return append(mp, v...)
	case orb.Collection:
		for _, c := range v {
			mp = appendPolygons(mp, c)
		}
	}
	return mp
}

// Contains reports whether p lies inside any polygon of the region.
func (r *Region) Contains(p orb.Point) bool {
	if !r.bound.Contains(p) {
		return false
	}
	return planar.MultiPolygonContains(r.polygons, p)
}

// Bound is the envelope of the region.
func (r *Region) Bound() orb.Bound {
	return r.bound
}
