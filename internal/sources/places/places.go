// Package places builds restaurant and lodging layers from Google Places
// nearby searches around western US airports.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"unidrome/internal/aerodrome"
	"unidrome/internal/cache"
	"unidrome/internal/export"
	"unidrome/internal/fetch"
)

// DefaultBaseURL is the Places API root.
const DefaultBaseURL = "https://maps.googleapis.com/maps/api/place/"

// DefaultRadius is the search radius around each airport, in meters.
const DefaultRadius = 2000

// States are the FAA state codes searched.
var States = []string{"OR", "NV", "NM", "ID", "AZ", "CA", "UT", "WA", "TX", "CO", "WY", "MT"}

// Types maps a place type to the name of its layer.
var Types = []struct {
	Type  string
	Layer string
}{
	{"restaurant", "Restaurants"},
	{"lodging", "Lodging"},
}

// SelectAirports keeps public-use land airports (site type A) in States.
func SelectAirports(records []aerodrome.Record) []aerodrome.Record {
	states := make(map[string]bool, len(States))
	for _, s := range States {
		states[s] = true
	}
	var out []aerodrome.Record
	for _, r := range records {
		if states[r.Row.Get("STATE_CODE")] && r.Row.Get("SITE_TYPE_CODE") == "A" {
			out = append(out, r)
		}
	}
	return out
}

// Client runs nearby searches, caching every response on disk.
type Client struct {
	HTTP    *fetch.Client
	Key     string
	BaseURL string
	Cache   *cache.Dir
	Logger  *zap.Logger
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Nearby returns the results of one nearby search around p.
func (c *Client) Nearby(ctx context.Context, p orb.Point, radius int, placeType string) ([]gjson.Result, error) {
	key := cache.Key("places_nearby", p.Lat(), p.Lon(), radius, placeType)
	var body json.RawMessage
	ok, err := c.Cache.Load(key, &body)
	if err != nil {
		return nil, err
	}
	if !ok {
		base := c.BaseURL
		if base == "" {
			base = DefaultBaseURL
		}
		q := url.Values{}
		q.Set("location", coord(p.Lat())+","+coord(p.Lon()))
		q.Set("radius", strconv.Itoa(radius))
		q.Set("type", placeType)
		q.Set("key", c.Key)
		b, err := c.HTTP.GetBytes(ctx, base+"nearbysearch/json?"+q.Encode())
		if err != nil {
			return nil, err
		}
		if !gjson.ValidBytes(b) {
			return nil, errors.New("invalid places response")
		}
		body = b
		if status := gjson.GetBytes(body, "status").String(); status != "OK" && status != "ZERO_RESULTS" {
			return nil, errors.Errorf("places search failed: %s %s", status, gjson.GetBytes(body, "error_message").String())
		}
		if err := c.Cache.Store(key, body); err != nil {
			return nil, err
		}
	}
	return gjson.GetBytes(body, "results").Array(), nil
}

// Place is one search result flattened for export.
type Place struct {
	ID     string
	Point  orb.Point
	Fields map[string]string
}

func flatten(v gjson.Result) string {
	if v.IsArray() {
		var parts []string
		for _, e := range v.Array() {
			parts = append(parts, flatten(e))
		}
		return strings.Join(parts, ", ")
	}
	if v.IsObject() {
		return v.Raw
	}
	return v.String()
}

// MapsLink opens the place in Google Maps.
func MapsLink(p Place) string {
	return fmt.Sprintf("https://www.google.com/maps/search/?api=1&query=%s,%s&query_place_id=%s",
		coord(p.Point.Lat()), coord(p.Point.Lon()), url.QueryEscape(p.ID))
}

// ParsePlace flattens an operational result with a place_id and a location.
func ParsePlace(r gjson.Result) (Place, bool) {
	id := r.Get("place_id").String()
	loc := r.Get("geometry.location")
	if id == "" || !loc.Get("lat").Exists() || !loc.Get("lng").Exists() {
		return Place{}, false
	}
	if r.Get("business_status").String() != "OPERATIONAL" {
		return Place{}, false
	}
	p := Place{ID: id, Point: orb.Point{loc.Get("lng").Float(), loc.Get("lat").Float()}, Fields: map[string]string{}}
	r.ForEach(func(k, v gjson.Result) bool {
		if k.String() != "geometry" {
			p.Fields[k.String()] = flatten(v)
		}
		return true
	})
	p.Fields[export.DescriptionProperty] = fmt.Sprintf(`<h1><p><a href="%s" target="_blank">View on Google Maps</a></p></h1>`, MapsLink(p))
	return p, true
}

// Fetcher writes one KMZ layer per entry of Types.
type Fetcher struct {
	Client   *Client
	Logger   *zap.Logger
	Airports []aerodrome.Record
	Radius   int
	// LayerPath maps a layer name to its KMZ path.
	LayerPath func(layer string) string
	IconRoot  string
}

// Collect searches around every airport and returns the distinct places.
// Failed searches are logged and skipped.
func (f *Fetcher) Collect(ctx context.Context, placeType string) ([]Place, error) {
	radius := f.Radius
	if radius <= 0 {
		radius = DefaultRadius
	}
	seen := map[string]bool{}
	var out []Place
	for i, a := range f.Airports {
		f.Logger.Debug(fmt.Sprintf("Fetching %s near %s (progress: %d/%d)", placeType, a.ID, i+1, len(f.Airports)))
		results, err := f.Client.Nearby(ctx, a.Point, radius, placeType)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			f.Logger.Warn("Nearby search failed", zap.String("airport", a.ID), zap.Error(err))
			continue
		}
		for _, r := range results {
			p, ok := ParsePlace(r)
			if !ok || seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			out = append(out, p)
		}
	}
	return out, nil
}

// Features converts places with the icon of their type.
func Features(places []Place, placeType string) *geojson.FeatureCollection {
	icon := "icons/" + placeType + "_11.png"
	fc := geojson.NewFeatureCollection()
	for _, p := range places {
		f := geojson.NewFeature(p.Point)
		for k, v := range p.Fields {
			f.Properties[k] = v
		}
		f.Properties[export.IconProperty] = icon
		fc.Append(f)
	}
	return fc
}

// Fetch writes every layer.
func (f *Fetcher) Fetch(ctx context.Context) error {
	for _, t := range Types {
		places, err := f.Collect(ctx, t.Type)
		if err != nil {
			return err
		}
		path := f.LayerPath(t.Layer + ".kmz")
		if err := export.WriteKMZ(path, f.IconRoot, Features(places, t.Type)); err != nil {
			return err
		}
		f.Logger.Info("Wrote layer", zap.String("type", t.Type), zap.Int("places", len(places)), zap.String("path", path))
	}
	return nil
}
