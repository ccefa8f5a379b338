package aerodrome

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"

	"unidrome/internal/geo"
	"unidrome/internal/table"
)

// Parser extracts a point and the classification flags from a row of one
// particular source.
type Parser interface {
	Name() string
	Geometry(row table.Row) (orb.Point, bool)
	IsAirport(row table.Row) bool
	IsHeliport(row table.Row) bool
	IsActive(row table.Row) bool
	ID(row table.Row) string
	Label(row table.Row) string
}

// base carries the defaults: no geometry, neither airport nor heliport,
// always active.
type base struct{}

func (base) Geometry(table.Row) (orb.Point, bool) { return orb.Point{}, false }
func (base) IsAirport(table.Row) bool              { return false }
func (base) IsHeliport(table.Row) bool             { return false }
func (base) IsActive(table.Row) bool               { return true }

func (base) ID(row table.Row) string {
	v, _ := row.Lookup("id", "ID")
	return v
}

func (base) Label(row table.Row) string {
	v, _ := row.Lookup("name", "NAME")
	return v
}

func pointFromColumns(row table.Row, lon, lat string) (orb.Point, bool) {
	p, err := geo.ParsePoint(row.Get(lon), row.Get(lat))
	if err != nil {
		return orb.Point{}, false
	}
	return p, true
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// MXParser reads the AFAC aerodrome registry. Coordinates are degrees,
// minutes and seconds in columns 11 to 16; longitudes are west.
type MXParser struct{ base }

func (MXParser) Name() string { return "mx-afac" }

func (MXParser) Geometry(row table.Row) (orb.Point, bool) {
	if strings.TrimSpace(row.At(11)) == "" {
		return orb.Point{}, false
	}
	var v [6]float64
	for i := range v {
		f, ok := parseFloat(row.At(11 + i))
		if !ok {
			return orb.Point{}, false
		}
		v[i] = f
	}
	lat := geo.DMS(v[0], v[1], v[2])
	lon := -1 * geo.DMS(v[3], v[4], v[5])
	p := orb.Point{lon, lat}
	return p, geo.Valid(p)
}

func (MXParser) IsAirport(row table.Row) bool {
	return row.Get("TIPO AERÓDROMO") == "AERÓDROMO"
}

func (MXParser) IsHeliport(row table.Row) bool {
	return strings.HasPrefix(row.Get("NO. DE EXPEDIENTE"), "HP") || row.Get("TIPO AERÓDROMO") == "HELIPUERTO"
}

func (MXParser) ID(row table.Row) string {
	return row.Get("NO. DE EXPEDIENTE")
}

func (MXParser) Label(row table.Row) string {
	v, _ := row.Lookup("NOMBRE", "DENOMINACIÓN", "NOMBRE DEL AERÓDROMO")
	return v
}

// FAAParser reads NASR APT_BASE.csv.
type FAAParser struct{ base }

func (FAAParser) Name() string { return "faa-nasr" }

func (FAAParser) Geometry(row table.Row) (orb.Point, bool) {
	return pointFromColumns(row, "LONG_DECIMAL", "LAT_DECIMAL")
}

func (FAAParser) IsAirport(row table.Row) bool  { return row.Get("SITE_TYPE_CODE") != "H" }
func (FAAParser) IsHeliport(row table.Row) bool { return row.Get("SITE_TYPE_CODE") == "H" }
func (FAAParser) ID(row table.Row) string       { return row.Get("SITE_NO") }
func (FAAParser) Label(row table.Row) string    { return row.Get("ARPT_NAME") }

// OurAirportsParser reads OurAirports airports.csv.
type OurAirportsParser struct{ base }

func (OurAirportsParser) Name() string { return "ourairports" }

func (OurAirportsParser) Geometry(row table.Row) (orb.Point, bool) {
	return pointFromColumns(row, "longitude_deg", "latitude_deg")
}

func (OurAirportsParser) IsAirport(row table.Row) bool {
	return strings.Contains(row.Get("type"), "airport")
}

func (OurAirportsParser) IsHeliport(row table.Row) bool { return row.Get("type") == "heliport" }
func (OurAirportsParser) IsActive(row table.Row) bool   { return row.Get("type") != "closed" }

// osmParser carries what the Daylight and Overpass exports share. An
// unnamed aerodrome counts as both airport and heliport because nothing
// tells them apart.
type osmParser struct{ base }

func (osmParser) Geometry(row table.Row) (orb.Point, bool) {
	lon, ok := row.Lookup("longitude", "lon")
	if !ok {
		return orb.Point{}, false
	}
	lat, ok := row.Lookup("latitude", "lat")
	if !ok {
		return orb.Point{}, false
	}
	p, err := geo.ParsePoint(lon, lat)
	return p, err == nil
}

func (osmParser) IsAirport(row table.Row) bool {
	name := strings.TrimSpace(row.Get("name"))
	return name == "" || !strings.Contains(strings.ToLower(name), "heliport")
}

func (osmParser) IsHeliport(row table.Row) bool {
	name := strings.TrimSpace(row.Get("name"))
	return name == "" || strings.Contains(strings.ToLower(name), "heliport")
}

// DaylightParser reads the aerodrome export of the Daylight distribution.
type DaylightParser struct{ osmParser }

func (DaylightParser) Name() string { return "osm-daylight" }

// OverpassParser reads the aerodrome export of the Overpass API. Lifecycle
// prefixed tags mark the aerodrome as no longer active.
type OverpassParser struct{ osmParser }

func (OverpassParser) Name() string { return "osm-overpass" }

func (OverpassParser) IsActive(row table.Row) bool {
	return !row.Has("disused:aeroway") && !row.Has("abandoned:aeroway")
}

// WikidataParser reads the SPARQL export.
type WikidataParser struct{ base }

func (WikidataParser) Name() string { return "wikidata" }

func (WikidataParser) Geometry(row table.Row) (orb.Point, bool) {
	return pointFromColumns(row, "LON", "LAT")
}

func (WikidataParser) IsAirport(table.Row) bool   { return true }
func (WikidataParser) ID(row table.Row) string    { return row.Get("airport") }
func (WikidataParser) Label(row table.Row) string { return row.Get("minName") }

// RAFParser reads the airfield guide export.
type RAFParser struct{ base }

func (RAFParser) Name() string { return "raf" }

func (RAFParser) Geometry(row table.Row) (orb.Point, bool) {
	return pointFromColumns(row, "longitude", "latitude")
}

func (RAFParser) IsAirport(table.Row) bool { return true }

// ColumnParser reads any CSV whose coordinate columns were found by Detect.
type ColumnParser struct {
	base
	Detection Detection
}

func (ColumnParser) Name() string { return "columns" }

func (p ColumnParser) Geometry(row table.Row) (orb.Point, bool) {
	return pointFromColumns(row, p.Detection.Lon, p.Detection.Lat)
}

func (ColumnParser) IsAirport(table.Row) bool { return true }
