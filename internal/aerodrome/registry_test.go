package aerodrome

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry("data")
	require.Len(t, r, 4)
	assert.Equal(t, KeyMX, r[0].Key)
	assert.Equal(t, filepath.Join("data", "us", "faa", "nasr", "APT_BASE.csv"), r[1].Path)
	assert.Equal(t, "osm-daylight", r[3].Parser.Name())

	src, ok := r.Lookup(KeyOurAirports)
	require.True(t, ok)
	assert.Equal(t, "ourairports", src.Parser.Name())
	_, ok = r.Lookup(KeyRAF)
	assert.False(t, ok)
}

func TestParseRegistry(t *testing.T) {
	r, err := ParseRegistry([]byte(`
sources:
  - path: us/raf/airfields.csv
    parser: raf
  - path: world/wikidata/airports.csv
    parser: wikidata
`), "/tmp/data")
	require.NoError(t, err)
	require.Len(t, r, 2)
	assert.Equal(t, "/tmp/data/us/raf/airfields.csv", r[0].Path)
	assert.Equal(t, "wikidata", r[1].Parser.Name())
}

func TestParseRegistryErrors(t *testing.T) {
	_, err := ParseRegistry([]byte("sources: []"), "data")
	assert.Error(t, err)

	_, err = ParseRegistry([]byte("sources:\n  - path: a.csv\n    parser: nope\n"), "data")
	assert.ErrorContains(t, err, "unknown parser")

	_, err = ParseRegistry([]byte("sources:\n  - parser: raf\n"), "data")
	assert.Error(t, err)
}

func TestLoadAll(t *testing.T) {
	dir := t.TempDir()
	faa := filepath.Join(dir, "us", "faa", "nasr")
	require.NoError(t, os.MkdirAll(faa, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(faa, "APT_BASE.csv"), []byte(
		"SITE_NO,ARPT_NAME,SITE_TYPE_CODE,LONG_DECIMAL,LAT_DECIMAL\n"+
			"1,A,A,-122,47\n"+
			"2,B,H,-121,46\n"+
			"3,C,A,,\n"), 0o644))

	r := Registry{NewSource(dir, KeyFAA, FAAParser{})}
	loaded, err := LoadAll(r)
	require.NoError(t, err)
	records := loaded[KeyFAA]
	require.Len(t, records, 2)
	assert.Equal(t, KeyFAA, records[0].Source)
	assert.Equal(t, "us_faa_nasr_APT_BASE_", records[0].Prefix())
	assert.Equal(t, "A", records[0].PrefixedFields()["us_faa_nasr_APT_BASE_ARPT_NAME"])

	active := FilterActiveAirports(Flatten(r, loaded))
	require.Len(t, active, 1)
	assert.Equal(t, "1", active[0].ID)

	_, err = LoadAll(Registry{NewSource(dir, KeyMX, MXParser{})})
	assert.Error(t, err)
}
