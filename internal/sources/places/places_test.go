package places

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"unidrome/internal/aerodrome"
	"unidrome/internal/cache"
	"unidrome/internal/fetch"
	"unidrome/internal/table"
)

const nearby = `{"status": "OK", "results": [
  {"place_id": "p1", "name": "Diner", "business_status": "OPERATIONAL", "types": ["restaurant", "food"],
   "geometry": {"location": {"lat": 45.5, "lng": -122.5}}},
  {"place_id": "p2", "name": "Gone", "business_status": "CLOSED_PERMANENTLY",
   "geometry": {"location": {"lat": 45.6, "lng": -122.6}}},
  {"name": "No id", "business_status": "OPERATIONAL", "geometry": {"location": {"lat": 1, "lng": 2}}}
]}`

func faaRecords(t *testing.T) []aerodrome.Record {
	t.Helper()
	tbl, err := table.Read(strings.NewReader(
		"SITE_NO,STATE_CODE,SITE_TYPE_CODE,LONG_DECIMAL,LAT_DECIMAL\n" +
			"1,OR,A,-122.5,45.5\n" +
			"2,OR,H,-122.4,45.4\n" +
			"3,NY,A,-73.7,40.6\n" +
			"4,WA,A,-122.3,47.4\n"))
	require.NoError(t, err)
	records, _ := aerodrome.FromTable(aerodrome.KeyFAA, tbl, aerodrome.FAAParser{})
	return records
}

func TestSelectAirports(t *testing.T) {
	got := SelectAirports(faaRecords(t))
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].ID)
	assert.Equal(t, "4", got[1].ID)
}

func TestParsePlace(t *testing.T) {
	results := gjson.Get(nearby, "results").Array()

	p, ok := ParsePlace(results[0])
	require.True(t, ok)
	assert.Equal(t, orb.Point{-122.5, 45.5}, p.Point)
	assert.Equal(t, "restaurant, food", p.Fields["types"])
	assert.NotContains(t, p.Fields, "geometry")
	assert.Contains(t, p.Fields["description"], "query=45.5,-122.5&query_place_id=p1")

	_, ok = ParsePlace(results[1])
	assert.False(t, ok)
	_, ok = ParsePlace(results[2])
	assert.False(t, ok)
}

func TestFetch(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "/nearbysearch/json", r.URL.Path)
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		assert.Equal(t, "2000", r.URL.Query().Get("radius"))
		if r.URL.Query().Get("location") == "47.4,-122.3" {
			w.Write([]byte(`{"status": "REQUEST_DENIED", "error_message": "nope"}`))
			return
		}
		w.Write([]byte(nearby))
	}))
	defer srv.Close()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "icons"), 0o755))
	for _, name := range []string{"restaurant_11.png", "lodging_11.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "icons", name), []byte("png"), 0o644))
	}

	airports := SelectAirports(faaRecords(t))
	// Same location twice: the duplicate place is written once.
	airports = append(airports, airports[0])
	f := &Fetcher{
		Client: &Client{
			HTTP:    fetch.New(zap.NewNop()),
			Key:     "secret",
			BaseURL: srv.URL + "/",
			Cache:   cache.New(filepath.Join(dir, "cache"), 0),
			Logger:  zap.NewNop(),
		},
		Logger:    zap.NewNop(),
		Airports:  airports,
		LayerPath: func(name string) string { return filepath.Join(dir, "layers", name) },
		IconRoot:  dir,
	}

	places, err := f.Collect(context.Background(), "restaurant")
	require.NoError(t, err)
	require.Len(t, places, 1)
	assert.Equal(t, 2, hits)

	require.NoError(t, f.Fetch(context.Background()))
	// restaurant responses come from the cache; lodging needs one search
	// per location and the denied location is never cached.
	assert.Equal(t, 5, hits)
	for _, layer := range []string{"Restaurants.kmz", "Lodging.kmz"} {
		_, err := os.Stat(filepath.Join(dir, "layers", layer))
		assert.NoError(t, err)
	}
}
