package raf

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"unidrome/internal/fetch"
	"unidrome/internal/table"
)

func airportJSON(id int, visitType string) string {
	return fmt.Sprintf(`{"id": %d, "title": "Strip %d", "visitType": "%s", "number": "X%d",
		"coordinates": {"lat": {"decimal": 40.%d}, "lng": {"decimal": -110.%d}},
		"notes": {"alert": [{"text": "soft"}, {"text": "elk"}], "default": []}}`, id, id, visitType, id, id, id)
}

func TestParse(t *testing.T) {
	airports, err := ParseAirports([]byte("[" + airportJSON(1, "open") + "]"))
	require.NoError(t, err)
	require.Len(t, airports, 1)

	af, err := Parse(airports[0])
	require.NoError(t, err)
	assert.Equal(t, -110.1, af.Point.Lon())
	assert.Equal(t, 40.1, af.Point.Lat())
	assert.Equal(t, "Strip 1", af.Fields["name"])
	assert.Equal(t, "soft<br/>elk", af.Fields["note_alerts"])
	assert.Equal(t, "", af.Fields["note_default"])
	assert.Equal(t, "icons/raf-open.png", af.Fields["icon_path"])
	assert.Equal(t, "1", af.Fields["id"])
	assert.NotContains(t, af.Fields, "coordinates")
	assert.Contains(t, af.Fields["description"], "<th>number</th><td>X1</td>")
	assert.Contains(t, af.Fields["description"], "soft&lt;br/&gt;elk")

	_, err = Parse(Airport{})
	assert.Error(t, err)

	_, err = ParseAirports([]byte(`{"id": 1}`))
	assert.Error(t, err)
}

func TestColumns(t *testing.T) {
	cols := Columns([]Airfield{{Fields: map[string]string{"zeta": "", "alpha": "", "name": ""}}})
	assert.Equal(t, []string{"id", "name", "latitude", "longitude", "icon_path", "alpha", "zeta"}, cols)
}

func TestSync(t *testing.T) {
	var auth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = append(auth, r.Header.Get("Authorization"))
		switch {
		case r.URL.Path == "/airports":
			offset := r.URL.Query().Get("offset")
			assert.Equal(t, "50", r.URL.Query().Get("limit"))
			if offset == "0" {
				fmt.Fprintf(w, `{"metadata": {"total": 51}, "results": [%s]}`, airportJSON(1, "open"))
			} else {
				fmt.Fprintf(w, `{"metadata": {"total": 51}, "results": [%s]}`, airportJSON(2, "closed"))
			}
		case r.URL.Path == "/airports/1/overview":
			w.Write([]byte(`{"elevation": 5000, "timeZone": "MST"}`))
		case r.URL.Path == "/airports/1/runways":
			w.Write([]byte(`{"runways": [{"name": "09/27"}]}`))
		case strings.HasPrefix(r.URL.Path, "/airports/2/"):
			w.WriteHeader(http.StatusForbidden)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(fetch.New(zap.NewNop()), "abc", zap.NewNop())
	c.BaseURL = srv.URL + "/"
	airports, err := c.Sync(context.Background(), Options{Runways: true})
	require.NoError(t, err)
	require.Len(t, airports, 2)
	assert.Equal(t, "Bearer abc", auth[0])
	assert.Equal(t, int64(5000), airports[0]["elevation"].Int())
	assert.Equal(t, "09/27", airports[0]["runways"].Get("0.name").String())
	assert.Equal(t, "Strip 2", airports[1]["title"].String())
	assert.False(t, airports[1]["elevation"].Exists())
}

func TestFetchFromFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "icons"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "icons", "raf-open.png"), []byte("png"), 0o644))
	dump := filepath.Join(dir, "airports.json")
	require.NoError(t, os.WriteFile(dump, []byte("["+airportJSON(1, "open")+`, {"id": 9}]`), 0o644))

	f := &Fetcher{
		Logger:   zap.NewNop(),
		DataDir:  dir,
		KMZPath:  filepath.Join(dir, "layers", KMZName),
		IconRoot: dir,
		File:     dump,
	}
	require.NoError(t, f.Fetch(context.Background()))

	_, err := os.Stat(f.KMZPath)
	require.NoError(t, err)
	tbl, err := table.ReadFile(CSVPath(dir))
	require.NoError(t, err)
	require.Equal(t, 1, tbl.Len())
	assert.Equal(t, "Strip 1", tbl.Rows[0].Get("name"))
	assert.Equal(t, "-110.1", tbl.Rows[0].Get("longitude"))
	assert.Equal(t, []string{"id", "name", "latitude", "longitude", "icon_path"}, tbl.Columns()[:5])
}
