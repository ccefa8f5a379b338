package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"unidrome/internal/aerodrome"
	"unidrome/internal/config"
	"unidrome/internal/export"
	"unidrome/internal/table"
)

func init() {
	logger = zap.NewNop()
}

func TestRouterServesFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "layers"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "layers", "clusters.geojson"), []byte(`{"type":"FeatureCollection","features":[]}`), 0o644))

	srv := httptest.NewServer(newRouter(dir))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/layers/clusters.geojson")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/files")
	require.NoError(t, err)
	defer resp.Body.Close()
	var entries []fileEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	assert.Equal(t, []fileEntry{{Path: "layers/clusters.geojson", Type: "application/geo+json"}}, entries)
}

func TestWriteFeaturesByExtension(t *testing.T) {
	dir := t.TempDir()
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{-122.6, 45.5}))

	require.NoError(t, writeFeatures(filepath.Join(dir, "out.geojson"), "x", fc))
	back, err := export.ReadGeoJSON(filepath.Join(dir, "out.geojson"))
	require.NoError(t, err)
	assert.Len(t, back.Features, 1)

	require.NoError(t, writeFeatures(filepath.Join(dir, "out.gpkg"), "x", fc))
	assert.FileExists(t, filepath.Join(dir, "out.gpkg"))

	assert.Error(t, writeFeatures(filepath.Join(dir, "out.shp"), "x", fc))
}

func TestWriteMissingCSV(t *testing.T) {
	tbl, err := table.Read(strings.NewReader("id,ident,type,latitude_deg,longitude_deg\n1,KAAA,small_airport,45.5,-122.5\n"))
	require.NoError(t, err)
	records, _ := aerodrome.FromTable(aerodrome.KeyOurAirports, tbl, aerodrome.OurAirportsParser{})
	require.Len(t, records, 1)

	path := filepath.Join(t.TempDir(), "missing.csv")
	require.NoError(t, writeMissingCSV(path, records, records))

	out, err := table.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "ident", "type", "latitude_deg", "longitude_deg", "osm_editor_link"}, out.Columns())
	assert.Equal(t, "https://www.openstreetmap.org/edit?editor=id#map=18/45.500000/-122.500000", out.Rows[0].Get("osm_editor_link"))

	fc := missingFeatures(records)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "KAAA", fc.Features[0].Properties["ident"])
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestMissingThenFilterWithWikidataReference(t *testing.T) {
	dir := t.TempDir()
	savedCfg, savedRegistry, savedReference, savedCandidates := cfg, registryPath, referenceKey, candidateKeys
	savedBuffer, savedOut, savedReport, savedExclude := missingBuffer, missingOut, reportPath, excludeUnableSee
	t.Cleanup(func() {
		cfg, registryPath, referenceKey, candidateKeys = savedCfg, savedRegistry, savedReference, savedCandidates
		missingBuffer, missingOut, reportPath, excludeUnableSee = savedBuffer, savedOut, savedReport, savedExclude
	})

	writeFile(t, filepath.Join(dir, aerodrome.KeyWikidata), "airport,minName,LON,LAT\n"+
		"http://www.wikidata.org/entity/Q1,Lonely Field,-120.5,44.25\n"+
		"http://www.wikidata.org/entity/Q2,Mapped Field,-121.5,45.25\n"+
		"http://www.wikidata.org/entity/Q3,Far Field,10.5,50.25\n")
	writeFile(t, filepath.Join(dir, aerodrome.KeyOverpass), "id,latitude,longitude,name\n7,45.2501,-121.5001,Mapped Field\n")
	region := filepath.Join(dir, "region.geojson")
	writeFile(t, region, `{"type":"Polygon","coordinates":[[[-125,40],[-115,40],[-115,48],[-125,48],[-125,40]]]}`)

	cfg = config.Config{DataDir: dir}
	registryPath = ""
	referenceKey = aerodrome.KeyWikidata
	candidateKeys = []string{aerodrome.KeyOverpass}
	missingBuffer = 1000
	missingOut = filepath.Join(dir, "missing.csv")
	require.NoError(t, runMissing(missingCmd, nil))

	report, err := table.ReadFile(missingOut)
	require.NoError(t, err)
	assert.Equal(t, []string{"airport", "minName", "LON", "LAT", "id", "latitude_deg", "longitude_deg", "osm_editor_link"}, report.Columns())
	require.Equal(t, 2, report.Len())
	assert.Equal(t, "http://www.wikidata.org/entity/Q1", report.Rows[0].Get("id"))
	assert.Equal(t, "-120.5", report.Rows[0].Get("longitude_deg"))
	assert.Equal(t, "44.25", report.Rows[0].Get("latitude_deg"))

	reportPath = missingOut
	excludeUnableSee = false
	out := filepath.Join(dir, "filtered.geojson")
	require.NoError(t, filterCmd.RunE(filterCmd, []string{region, out}))

	fc, err := export.ReadGeoJSON(out)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "Lonely Field", fc.Features[0].Properties["minName"])
	assert.Equal(t, orb.Point{-120.5, 44.25}, fc.Features[0].Point())
}
