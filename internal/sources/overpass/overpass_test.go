package overpass

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"unidrome/internal/aerodrome"
	"unidrome/internal/cache"
	"unidrome/internal/fetch"
	"unidrome/internal/sources/taginfo"
	"unidrome/internal/table"
)

const response = `{
  "version": 0.6,
  "generator": "Overpass API",
  "osm3s": {"timestamp_osm_base": "2024-05-01T00:00:00Z", "copyright": "ODbL"},
  "elements": [
    {"type": "way", "id": 20, "center": {"lat": 47.5, "lon": 8.5}, "tags": {"aeroway": "aerodrome", "name": "Field", "icao": "LSZX"}},
    {"type": "node", "id": 10, "lat": 46.25, "lon": 7.75, "tags": {"disused:aeroway": "aerodrome", "name": "Old", "website": "x"}},
    {"type": "way", "id": 30, "tags": {"aeroway": "aerodrome"}}
  ]
}`

func TestQueries(t *testing.T) {
	q := AerowayQuery("runway")
	assert.Contains(t, q, `nw["aeroway"="runway"];`)
	assert.Contains(t, q, `nw["disused:aeroway"="runway"];`)
	assert.Contains(t, q, `nw["abandoned:aeroway"="runway"];`)
	assert.True(t, strings.HasSuffix(q, "out center;"))

	assert.Contains(t, UnpavedRunwaysQuery(), `["surface"~"unpaved|gravel|dirt|grass|compacted|sand|fine_gravel|earth|dirt/sand"]`)
}

func TestColumns(t *testing.T) {
	assert.Equal(t, []string{"id", "latitude", "longitude", "name", "icao", "aeroway", "disused:aeroway", "abandoned:aeroway"},
		Columns([]string{"name", "id", "icao", "name"}))
	assert.Equal(t, []string{"id", "latitude", "longitude", "disused:aeroway", "surface", "aeroway", "abandoned:aeroway"},
		Columns([]string{"disused:aeroway", "surface"}))
}

func TestWriteCSVKeepsLifecycleTags(t *testing.T) {
	resp := &Response{Elements: []Element{
		{Type: "node", ID: 1, Lat: 45, Lon: -120, Tags: map[string]string{"disused:aeroway": "aerodrome", "name": "Old Field"}},
		{Type: "node", ID: 2, Lat: 46, Lon: -121, Tags: map[string]string{"abandoned:aeroway": "aerodrome", "name": "Gone Strip"}},
		{Type: "node", ID: 3, Lat: 47, Lon: -122, Tags: map[string]string{"aeroway": "aerodrome", "name": "Open Field"}},
	}}
	path := filepath.Join(t.TempDir(), "aerodrome.csv")
	n, err := WriteCSV(path, resp, []string{"name", "icao", "ele"})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	tbl, err := table.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "latitude", "longitude", "name", "icao", "ele", "aeroway", "disused:aeroway", "abandoned:aeroway"}, tbl.Columns())
	require.Equal(t, 3, tbl.Len())
	assert.Equal(t, "aerodrome", tbl.Rows[0].Get("disused:aeroway"))
	assert.Equal(t, "aerodrome", tbl.Rows[1].Get("abandoned:aeroway"))
	assert.Equal(t, "aerodrome", tbl.Rows[2].Get("aeroway"))

	records, skipped := aerodrome.FromTable(aerodrome.KeyOverpass, tbl, aerodrome.OverpassParser{})
	require.Zero(t, skipped)
	require.Len(t, records, 3)
	assert.False(t, records[0].Active)
	assert.False(t, records[1].Active)
	assert.True(t, records[2].Active)

	active := aerodrome.FilterActiveAirports(records)
	require.Len(t, active, 1)
	assert.Equal(t, "Open Field", active[0].Name)
}

func newServer(t *testing.T, hits *int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*hits++
		assert.NoError(t, r.ParseForm())
		assert.Contains(t, r.PostForm.Get("data"), "out center;")
		w.Write([]byte(response))
	}))
}

func TestQuery(t *testing.T) {
	hits := 0
	srv := newServer(t, &hits)
	defer srv.Close()

	c := &Client{HTTP: fetch.New(zap.NewNop()), URL: srv.URL, Logger: zap.NewNop()}
	resp, err := c.Query(context.Background(), AerowayQuery("aerodrome"))
	require.NoError(t, err)
	require.Len(t, resp.Elements, 3)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), resp.Osm3S.TimestampOsmBase)
	assert.Len(t, resp.ByType("way"), 2)

	lat, lon, ok := resp.Elements[0].Position()
	require.True(t, ok)
	assert.Equal(t, 47.5, lat)
	assert.Equal(t, 8.5, lon)
	_, _, ok = resp.Elements[2].Position()
	assert.False(t, ok)
}

func TestFetchWritesCSVAndCaches(t *testing.T) {
	hits := 0
	srv := newServer(t, &hits)
	defer srv.Close()

	dir := t.TempDir()
	for _, a := range Aeroways {
		require.NoError(t, taginfo.WriteTopTags(taginfo.TopTagsPath(dir, a), []string{"name", "disused:aeroway", "icao"}))
	}
	f := &Fetcher{
		Client:  &Client{HTTP: fetch.New(zap.NewNop()), URL: srv.URL, Logger: zap.NewNop()},
		Cache:   cache.New(filepath.Join(dir, "cache"), 0),
		DataDir: dir,
	}
	require.NoError(t, f.Fetch(context.Background()))
	assert.Equal(t, 2, hits)

	tbl, err := table.ReadFile(CSVPath(dir, "aerodrome"))
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "latitude", "longitude", "name", "disused:aeroway", "icao", "aeroway", "abandoned:aeroway"}, tbl.Columns())
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, "10", tbl.Rows[0].Get("id"))
	assert.Equal(t, "aerodrome", tbl.Rows[0].Get("disused:aeroway"))
	assert.Equal(t, "", tbl.Rows[0].Get("icao"))
	assert.Equal(t, "20", tbl.Rows[1].Get("id"))
	assert.Equal(t, "8.5", tbl.Rows[1].Get("longitude"))
	assert.Equal(t, "LSZX", tbl.Rows[1].Get("icao"))

	f.UseCache = true
	require.NoError(t, f.Fetch(context.Background()))
	assert.Equal(t, 2, hits)
	_, err = os.Stat(CSVPath(dir, "runway"))
	assert.NoError(t, err)
}

func TestFetchWithoutTopTags(t *testing.T) {
	f := &Fetcher{DataDir: t.TempDir()}
	assert.Error(t, f.Fetch(context.Background()))
}
