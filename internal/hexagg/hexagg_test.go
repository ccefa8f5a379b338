package hexagg

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unidrome/internal/aerodrome"
)

func records() []aerodrome.Record {
	return []aerodrome.Record{
		{Source: "us/faa/nasr/APT_BASE.csv", Point: orb.Point{-122.3088, 47.4502}},
		{Source: "world/ourairports/airports.csv", Point: orb.Point{-122.3088, 47.4502}},
		{Source: "us/faa/nasr/APT_BASE.csv", Point: orb.Point{-122.3088, 47.4502}},
		{Source: "us/faa/nasr/APT_BASE.csv", Point: orb.Point{-73.7781, 40.6413}},
	}
}

func TestAggregate(t *testing.T) {
	cells := Aggregate(records(), DefaultResolution)
	require.Len(t, cells, 2)

	total := 0
	for _, c := range cells {
		assert.Equal(t, DefaultResolution, c.Resolution)
		total += c.Count
	}
	assert.Equal(t, 4, total)

	var seattle Cell
	for _, c := range cells {
		if c.Count == 3 {
			seattle = c
		}
	}
	assert.Equal(t, 2, seattle.Sources["us_faa_nasr_APT_BASE_"])
	assert.Equal(t, 1, seattle.Sources["world_ourairports_airports_"])
}

func TestParents(t *testing.T) {
	cells := Aggregate(records(), DefaultResolution)
	parents, err := Parents(cells, 2)
	require.NoError(t, err)
	require.Len(t, parents, 2)
	sum := 0
	for _, p := range parents {
		assert.Equal(t, 2, p.Resolution)
		sum += p.Count
	}
	assert.Equal(t, 4, sum)

	world, err := Parents(cells, 0)
	require.NoError(t, err)
	for _, p := range world {
		assert.Equal(t, 0, p.Resolution)
	}

	_, err = Parents(cells, 9)
	assert.Error(t, err)
}

func TestBoundary(t *testing.T) {
	cells := Aggregate(records()[:1], DefaultResolution)
	poly, err := Boundary(cells[0].Index)
	require.NoError(t, err)
	require.Len(t, poly, 1)
	ring := poly[0]
	assert.Len(t, ring, 7)
	assert.Equal(t, ring[0], ring[len(ring)-1])
	assert.True(t, ring.Bound().Contains(orb.Point{-122.3088, 47.4502}))

	_, err = Boundary("not-a-cell")
	assert.Error(t, err)
}

func TestFeatures(t *testing.T) {
	fc, err := Features(Aggregate(records(), DefaultResolution))
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)
	for _, f := range fc.Features {
		assert.Equal(t, "Polygon", f.Geometry.GeoJSONType())
		assert.NotEmpty(t, f.Properties[IndexProperty])
		assert.Contains(t, f.Properties, "us_faa_nasr_APT_BASE_count")
	}
}
