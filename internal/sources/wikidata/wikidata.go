// Package wikidata exports airports from the Wikidata SPARQL endpoint.
package wikidata

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"unidrome/internal/fetch"
	"unidrome/internal/geo"
	"unidrome/internal/table"
)

// DefaultEndpoint is the public SPARQL endpoint.
const DefaultEndpoint = "https://query.wikidata.org/sparql"

const coordVar = "minCoord"

// Query selects every instance of airport (Q1248784) with an English label
// and a point coordinate, one row per airport.
const Query = `
SELECT ?airport (MIN(?name) AS ?minName) (MIN(?ele) AS ?minEle) (MIN(?runway) AS ?minRunway) (MIN(?icao) AS ?minICAO) (MIN(?iata) AS ?minIATA) (MIN(?website) AS ?minWebsite) (MIN(?coord) AS ?minCoord) (MIN(?osm) AS ?minOSM)
WHERE {
  ?airport wdt:P31 wd:Q1248784;
           rdfs:label ?name.
  OPTIONAL { ?airport wdt:P2044 ?ele. }
  OPTIONAL { ?airport wdt:P529 ?runway. }
  OPTIONAL { ?airport wdt:P239 ?icao. }
  OPTIONAL { ?airport wdt:P238 ?iata. }
  OPTIONAL { ?airport wdt:P856 ?website. }
  ?airport wdt:P625 ?coord.
  OPTIONAL { ?airport wdt:P11693 ?osm. }
  FILTER (LANG(?name) = "en")
  BIND(STR(?coord) AS ?wkt_string)
  FILTER(STRSTARTS(?wkt_string, "Point("))
}
GROUP BY ?airport
`

// CSVPath is where the export is written.
func CSVPath(dataDir string) string {
	return filepath.Join(dataDir, "world", "wikidata", "airports.csv")
}

// ParsePoint reads a WKT literal such as "Point(-0.123 51.456)".
func ParsePoint(literal string) (orb.Point, error) {
	p, err := wkt.UnmarshalPoint(strings.ToUpper(strings.TrimSpace(literal)))
	if err != nil {
		return orb.Point{}, errors.Wrapf(err, "bad point literal %q", literal)
	}
	if !geo.Valid(p) {
		return orb.Point{}, errors.Errorf("point out of range: %q", literal)
	}
	return p, nil
}

// Result is a decoded SPARQL response flattened to CSV rows.
type Result struct {
	Columns []string
	Rows    []map[string]string
	// Skipped counts bindings whose coordinate could not be read. They are
	// kept with blank LAT/LON.
	Skipped int
}

// Parse flattens a SPARQL JSON response. The coordinate variable is
// replaced by LAT and LON columns.
func Parse(body []byte) (*Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid SPARQL response")
	}
	doc := gjson.ParseBytes(body)
	vars := doc.Get("head.vars")
	if !vars.Exists() {
		return nil, errors.New("SPARQL response has no head.vars")
	}

	res := &Result{}
	for _, v := range vars.Array() {
		if v.String() != coordVar {
			res.Columns = append(res.Columns, v.String())
		}
	}
	res.Columns = append(res.Columns, "LAT", "LON")

	for _, b := range doc.Get("results.bindings").Array() {
		row := make(map[string]string, len(res.Columns))
		for _, c := range res.Columns {
			row[c] = b.Get(c + ".value").String()
		}
		p, err := ParsePoint(b.Get(coordVar + ".value").String())
		if err != nil {
			res.Skipped++
			row["LAT"], row["LON"] = "", ""
		} else {
			row["LAT"], row["LON"] = geo.FormatCoord(p.Lat()), geo.FormatCoord(p.Lon())
		}
		res.Rows = append(res.Rows, row)
	}
	return res, nil
}

// Fetcher runs Query and writes the CSV export.
type Fetcher struct {
	Client   *fetch.Client
	Logger   *zap.Logger
	Endpoint string
	DataDir  string
}

// Fetch downloads the airports and writes CSVPath.
func (f *Fetcher) Fetch(ctx context.Context) error {
	endpoint := f.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	q := url.Values{}
	q.Set("query", Query)
	q.Set("format", "json")

	client := f.Client.
		WithHeader("User-Agent", "Mozilla/5.0").
		WithHeader("Accept", "application/sparql-results+json")
	body, err := client.GetBytes(ctx, endpoint+"?"+q.Encode())
	if err != nil {
		return errors.Wrap(err, "error fetching data")
	}
	res, err := Parse(body)
	if err != nil {
		return err
	}
	if res.Skipped > 0 {
		f.Logger.Warn("Airports without a readable coordinate", zap.Int("count", res.Skipped))
	}

	path := CSVPath(f.DataDir)
	err = table.WriteMapsFile(path, res.Columns, func(emit func(map[string]string) error) error {
		for _, row := range res.Rows {
			if err := emit(row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	f.Logger.Info("Data successfully saved", zap.String("path", path), zap.Int("rows", len(res.Rows)))
	return nil
}
