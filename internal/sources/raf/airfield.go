package raf

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"unidrome/internal/export"
	"unidrome/internal/geo"
	"unidrome/internal/table"
)

// KMZName is the file name of the content pack layer.
const KMZName = "RAF Airfield Guide.kmz"

// DescriptionColumns are shown in the placemark description, in order.
var DescriptionColumns = []string{
	"name",
	"number",
	"visitType",
	"elevation",
	"longestRunway",
	"lastSurveyedDate",
	"communicationFrequency",
	"timeZone",
	"note_alerts",
	"note_default",
}

// leadColumns open the CSV export; the remaining fields follow sorted.
var leadColumns = []string{"id", "name", "latitude", "longitude", "icon_path"}

// Airfield is an airport flattened for export.
type Airfield struct {
	Point  orb.Point
	Fields map[string]string
}

func joinNotes(r gjson.Result) string {
	var texts []string
	for _, n := range r.Array() {
		texts = append(texts, n.Get("text").String())
	}
	return strings.Join(texts, "<br/>")
}

func flatten(v gjson.Result) string {
	if v.IsObject() || v.IsArray() {
		return v.Raw
	}
	return v.String()
}

// Parse flattens an airport: the point from coordinates.lng/lat.decimal,
// the title as name, notes joined per kind, the visit type icon and an
// HTML description.
func Parse(a Airport) (Airfield, error) {
	coords := a["coordinates"]
	lon, lat := coords.Get("lng.decimal"), coords.Get("lat.decimal")
	if !lon.Exists() || !lat.Exists() {
		return Airfield{}, errors.Errorf("airport %s has no coordinates", a.ID())
	}
	p := orb.Point{lon.Float(), lat.Float()}
	if !geo.Valid(p) {
		return Airfield{}, errors.Errorf("airport %s has invalid coordinates %v", a.ID(), p)
	}

	fields := map[string]string{}
	for k, v := range a {
		if k == "coordinates" || k == "notes" {
			continue
		}
		fields[k] = flatten(v)
	}
	notes := a["notes"]
	fields["note_alerts"] = joinNotes(notes.Get("alert"))
	fields["note_default"] = joinNotes(notes.Get("default"))
	fields["name"] = a["title"].String()
	fields["icon_path"] = "icons/raf-" + a["visitType"].String() + ".png"
	fields["latitude"] = geo.FormatCoord(p.Lat())
	fields["longitude"] = geo.FormatCoord(p.Lon())

	desc, err := export.HTMLTable(DescriptionColumns, fields)
	if err != nil {
		return Airfield{}, err
	}
	fields["description"] = desc
	return Airfield{Point: p, Fields: fields}, nil
}

// Columns returns leadColumns followed by every other field name, sorted.
func Columns(airfields []Airfield) []string {
	lead := make(map[string]bool, len(leadColumns))
	for _, c := range leadColumns {
		lead[c] = true
	}
	seen := map[string]bool{}
	var rest []string
	for _, a := range airfields {
		for k := range a.Fields {
			if !lead[k] && !seen[k] {
				seen[k] = true
				rest = append(rest, k)
			}
		}
	}
	sort.Strings(rest)
	return append(append([]string(nil), leadColumns...), rest...)
}

// Features converts airfields for the KMZ writer.
func Features(airfields []Airfield) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, a := range airfields {
		f := geojson.NewFeature(a.Point)
		for k, v := range a.Fields {
			f.Properties[k] = v
		}
		fc.Append(f)
	}
	return fc
}

// CSVPath is where the airfield table is written.
func CSVPath(dataDir string) string {
	return filepath.Join(dataDir, "us", "raf", "airfields.csv")
}

// Fetcher syncs the guide and writes both outputs.
type Fetcher struct {
	Client   *Client
	Logger   *zap.Logger
	Options  Options
	DataDir  string
	KMZPath  string
	IconRoot string
	// File, when set, is a JSON dump read instead of calling the API.
	File string
}

// Fetch loads the airports, parses them and writes the KMZ and CSV.
// Airports that cannot be parsed are logged and skipped.
func (f *Fetcher) Fetch(ctx context.Context) error {
	var airports []Airport
	if f.File != "" {
		b, err := os.ReadFile(f.File)
		if err != nil {
			return errors.Wrapf(err, "failed to read %s", f.File)
		}
		if airports, err = ParseAirports(b); err != nil {
			return errors.Wrapf(err, "failed to parse %s", f.File)
		}
	} else {
		var err error
		if airports, err = f.Client.Sync(ctx, f.Options); err != nil {
			return err
		}
	}

	airfields := make([]Airfield, 0, len(airports))
	for _, a := range airports {
		af, err := Parse(a)
		if err != nil {
			f.Logger.Warn("Skipping airport", zap.Error(err))
			continue
		}
		airfields = append(airfields, af)
	}
	f.Logger.Info("Parsed airfields", zap.Int("airfields", len(airfields)), zap.Int("airports", len(airports)))

	if err := export.WriteKMZ(f.KMZPath, f.IconRoot, Features(airfields)); err != nil {
		return err
	}
	return table.WriteMapsFile(CSVPath(f.DataDir), Columns(airfields), func(emit func(map[string]string) error) error {
		for _, a := range airfields {
			if err := emit(a.Fields); err != nil {
				return err
			}
		}
		return nil
	})
}
