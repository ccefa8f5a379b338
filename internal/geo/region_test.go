package geo

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const oregonish = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"name": "box"},
     "geometry": {"type": "Polygon", "coordinates": [[[-124, 42], [-117, 42], [-117, 46], [-124, 46], [-124, 42]]]}},
    {"type": "Feature", "properties": {"name": "islands"},
     "geometry": {"type": "MultiPolygon", "coordinates": [[[[-160, 18], [-154, 18], [-154, 23], [-160, 23], [-160, 18]]]]}}
  ]
}`

func TestParseRegionFeatureCollection(t *testing.T) {
	r, err := ParseRegion([]byte(oregonish))
	require.NoError(t, err)

	assert.True(t, r.Contains(orb.Point{-122.6, 45.5}))
	assert.True(t, r.Contains(orb.Point{-157.8, 21.3}))
	assert.False(t, r.Contains(orb.Point{-100, 40}))
}

func TestParseRegionBareGeometry(t *testing.T) {
	r, err := ParseRegion([]byte(`{"type": "Polygon", "coordinates": [[[0, 0], [1, 0], [1, 1], [0, 1], [0, 0]]]}`))
	require.NoError(t, err)
	assert.True(t, r.Contains(orb.Point{0.5, 0.5}))
}

func TestParseRegionWithoutPolygons(t *testing.T) {
	_, err := ParseRegion([]byte(`{"type": "FeatureCollection", "features": [{"type": "Feature", "properties": {}, "geometry": {"type": "Point", "coordinates": [1, 2]}}]}`))
	assert.True(t, errors.Is(err, ErrEmptyRegion))

	_, err = ParseRegion([]byte(`not json`))
	assert.Error(t, err)
}
