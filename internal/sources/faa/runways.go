package faa

import (
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"unidrome/internal/geo"
	"unidrome/internal/table"
)

// GrassSurfaces are the SURFACE_TYPE_CODE values of unpaved runways.
var GrassSurfaces = []string{
	"TURF", "TURF-DIRT", "TURF-GRVL", "DIRT", "GRVL-DIRT", "GRAVEL", "GRVL",
	"DIRT-TRTD", "TRTD-DIRT", "DIRT-TURF", "SAND", "DIRT-GRVL", "GRVL-TURF",
	"TURF-SAND", "SOD", "GRASS",
}

// Avgas is the fuel grade the gas-grass report looks for.
const Avgas = "100LL"

func isGrass(surface string) bool {
	for _, s := range GrassSurfaces {
		if surface == s {
			return true
		}
	}
	return false
}

// GasGrassRunway is an unpaved runway at an airport selling avgas.
type GasGrassRunway struct {
	Point  orb.Point
	Fields map[string]string
}

// GasGrass joins the unpaved runways of APT_RWY with the APT_BASE airports
// whose FUEL_TYPES include avgas, on SITE_NO. Runway order is kept. Column
// names present in both tables get "_x" (runway) and "_y" (airport)
// suffixes; SITE_NO is kept once.
func GasGrass(airports, runways *table.Table) []GasGrassRunway {
	gas := make(map[string]table.Row)
	for _, row := range airports.Rows {
		if strings.Contains(row.Get("FUEL_TYPES"), Avgas) {
			if _, ok := gas[row.Get("SITE_NO")]; !ok {
				gas[row.Get("SITE_NO")] = row
			}
		}
	}

	shared := make(map[string]bool)
	for _, name := range runways.Columns() {
		if name != "SITE_NO" && airports.Header.Index(name) >= 0 {
			shared[name] = true
		}
	}

	var out []GasGrassRunway
	for _, rwy := range runways.Rows {
		if !isGrass(rwy.Get("SURFACE_TYPE_CODE")) {
			continue
		}
		apt, ok := gas[rwy.Get("SITE_NO")]
		if !ok {
			continue
		}
		p, err := geo.ParsePoint(apt.Get("LONG_DECIMAL"), apt.Get("LAT_DECIMAL"))
		if err != nil {
			continue
		}
		fields := make(map[string]string)
		for k, v := range rwy.Map() {
			if shared[k] {
				k += "_x"
			}
			fields[k] = v
		}
		for k, v := range apt.Map() {
			if shared[k] {
				k += "_y"
			}
			fields[k] = v
		}
		out = append(out, GasGrassRunway{Point: p, Fields: fields})
	}
	return out
}

// GasGrassFeatures renders the report as points.
func GasGrassFeatures(runways []GasGrassRunway) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range runways {
		f := geojson.NewFeature(r.Point)
		for k, v := range r.Fields {
			f.Properties[k] = v
		}
		fc.Append(f)
	}
	return fc
}
