package taginfo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"unidrome/internal/fetch"
)

const combinations = `{"data":[
	{"other_key":"name","to_count":100},
	{"other_key":"icao","to_count":50},
	{"other_key":"name","to_count":10},
	{"other_key":"","to_count":1}
]}`

func TestParseCombinations(t *testing.T) {
	keys, err := ParseCombinations([]byte(combinations))
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "icao"}, keys)

	_, err = ParseCombinations([]byte("<html>"))
	assert.Error(t, err)
}

func TestCombinationsURL(t *testing.T) {
	assert.Equal(t,
		"https://taginfo.openstreetmap.org/api/4/tag/combinations?filter=all&key=aeroway&sortname=to_count&sortorder=desc&value=runway",
		CombinationsURL(DefaultBaseURL, "runway"))
}

func TestFetch(t *testing.T) {
	var values []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tag/combinations", r.URL.Path)
		values = append(values, r.URL.Query().Get("value"))
		w.Write([]byte(combinations))
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := &Fetcher{Client: fetch.New(zap.NewNop()), Logger: zap.NewNop(), BaseURL: srv.URL + "/", DataDir: dir}
	require.NoError(t, f.Fetch(context.Background()))
	assert.Equal(t, []string{"aerodrome", "runway"}, values)

	b, err := os.ReadFile(filepath.Join(dir, "world", "osm", "top-runway.txt"))
	require.NoError(t, err)
	assert.Equal(t, "name\nicao\n", string(b))

	keys, err := ReadTopTags(TopTagsPath(dir, "aerodrome"))
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "icao"}, keys)
}
