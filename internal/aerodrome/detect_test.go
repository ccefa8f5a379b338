package aerodrome

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unidrome/internal/table"
)

func detect(t *testing.T, csv string) (Detection, error) {
	t.Helper()
	tbl, err := table.Read(strings.NewReader(csv))
	require.NoError(t, err)
	return DetectTable(tbl)
}

func TestDetectPrefersDecimalColumns(t *testing.T) {
	d, err := detect(t, "LONG_DEG,LAT_DEG,LONG_DECIMAL,LAT_DECIMAL\n122,47,-122.3,47.4\n")
	require.NoError(t, err)
	assert.Equal(t, Detection{Lon: "LONG_DECIMAL", Lat: "LAT_DECIMAL"}, d)
}

func TestDetectCaseInsensitive(t *testing.T) {
	d, err := detect(t, "airport,LAT,LON\nQ1,10,20\n")
	require.NoError(t, err)
	assert.Equal(t, Detection{Lon: "LON", Lat: "LAT"}, d)
}

func TestDetectRejectsOutOfRange(t *testing.T) {
	d, err := detect(t, "longitude,latitude,lon,lat\n500000,4000000,-100,40\n")
	require.NoError(t, err)
	assert.Equal(t, Detection{Lon: "lon", Lat: "lat"}, d)
}

func TestDetectNoCoordinates(t *testing.T) {
	_, err := detect(t, "id,name\n1,x\n")
	assert.ErrorIs(t, err, ErrNoCoordinates)

	_, err = detect(t, "lon,lat\nabc,def\n")
	assert.ErrorIs(t, err, ErrNoCoordinates)
}

func TestColumnParser(t *testing.T) {
	tbl, err := table.Read(strings.NewReader("x_lng,y_lat\n5,6\n,\n"))
	require.NoError(t, err)
	d, err := DetectTable(tbl)
	require.NoError(t, err)

	records, skipped := FromTable("k.csv", tbl, ColumnParser{Detection: d})
	require.Len(t, records, 1)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 5.0, records[0].Point.Lon())
	assert.True(t, records[0].Airport)
}
