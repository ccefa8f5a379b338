package faa

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unidrome/internal/table"
)

func readTable(t *testing.T, csv string) *table.Table {
	tbl, err := table.Read(strings.NewReader(csv))
	require.NoError(t, err)
	return tbl
}

func TestGasGrass(t *testing.T) {
	airports := readTable(t, `SITE_NO,ARPT_ID,STATE_CODE,FUEL_TYPES,LAT_DECIMAL,LONG_DECIMAL
1,AAA,OR,"100LL,A",45.1,-122.1
2,BBB,OR,A,45.2,-122.2
3,CCC,WA,100LL,47.3,-122.3
`)
	runways := readTable(t, `SITE_NO,STATE_CODE,RWY_ID,SURFACE_TYPE_CODE
1,OR,09/27,TURF
1,OR,18/36,ASPH
2,OR,01/19,DIRT
3,WA,02/20,GRVL-TURF
9,WA,05/23,TURF
`)

	out := GasGrass(airports, runways)
	require.Len(t, out, 2)

	assert.Equal(t, "09/27", out[0].Fields["RWY_ID"])
	assert.Equal(t, "AAA", out[0].Fields["ARPT_ID"])
	assert.Equal(t, "OR", out[0].Fields["STATE_CODE_x"])
	assert.Equal(t, "OR", out[0].Fields["STATE_CODE_y"])
	assert.Equal(t, "1", out[0].Fields["SITE_NO"])
	assert.InDelta(t, -122.1, out[0].Point.Lon(), 1e-9)

	assert.Equal(t, "CCC", out[1].Fields["ARPT_ID"])

	fc := GasGrassFeatures(out)
	assert.Len(t, fc.Features, 2)
	assert.Equal(t, "TURF", fc.Features[0].Properties["SURFACE_TYPE_CODE"])
}
