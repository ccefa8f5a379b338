package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreAndLoad(t *testing.T) {
	d := New(filepath.Join(t.TempDir(), "cache"), 0)

	in := map[string]interface{}{"results": []interface{}{"a", "b"}}
	require.NoError(t, d.Store("overpass-osm-runway", in))

	var out map[string]interface{}
	ok, err := d.Load("overpass-osm-runway", &out)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, out["results"], 2)
}

func TestLoadMissing(t *testing.T) {
	d := New(t.TempDir(), 0)
	var out []string
	ok, err := d.Load("nothing", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLoadExpired(t *testing.T) {
	dir := t.TempDir()
	d := New(dir, time.Hour)
	require.NoError(t, d.Store("k", []int{1}))

	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(dir, "k.json"), old, old))

	var out []int
	ok, err := d.Load("k", &out)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKey(t *testing.T) {
	assert.Equal(t, "places_nearby_45.5_-122.25_2000_lodging", Key("places_nearby", 45.5, -122.25, 2000, "lodging"))
	assert.Equal(t, "overpass_a-b", Key("overpass", "a/b"))

	long := Key("x", string(make([]byte, 300)))
	assert.LessOrEqual(t, len(long), 121)
}
