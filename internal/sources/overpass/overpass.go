// Package overpass queries an Overpass API instance for aeroway features
// and exports them as CSV.
package overpass

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"unidrome/internal/cache"
	"unidrome/internal/fetch"
	"unidrome/internal/sources/taginfo"
	"unidrome/internal/table"
)

// Aeroways are the values exported by Fetch, in order.
var Aeroways = []string{"runway", "aerodrome"}

// UnpavedSurfaces are the OSM surface values counted as unpaved.
var UnpavedSurfaces = []string{"unpaved", "gravel", "dirt", "grass", "compacted", "sand", "fine_gravel", "earth", "dirt/sand"}

// Element is a node or way of an Overpass JSON response. Ways carry their
// centre when the query ends in "out center".
type Element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    float64           `json:"lat"`
	Lon    float64           `json:"lon"`
	Center *Center           `json:"center,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
}

// Center of a way.
type Center struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Position returns the node coordinates or the way centre.
func (e Element) Position() (lat, lon float64, ok bool) {
	switch e.Type {
	case "node":
		return e.Lat, e.Lon, true
	case "way":
		if e.Center != nil {
			return e.Center.Lat, e.Center.Lon, true
		}
	}
	return 0, 0, false
}

// Response is an Overpass JSON response.
type Response struct {
	Version   float64 `json:"version"`
	Generator string  `json:"generator"`
	Osm3S     struct {
		TimestampOsmBase time.Time `json:"timestamp_osm_base"`
		Copyright        string    `json:"copyright"`
	} `json:"osm3s"`
	Elements []Element `json:"elements"`
}

// ByType returns the elements of one type in response order.
func (r *Response) ByType(typ string) []Element {
	var out []Element
	for _, e := range r.Elements {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// AerowayQuery selects current, disused and abandoned features of one
// aeroway value worldwide.
func AerowayQuery(aeroway string) string {
	return fmt.Sprintf(`[out:json][timeout:900];
(
  nw["aeroway"="%[1]s"];
  nw["disused:aeroway"="%[1]s"];
  nw["abandoned:aeroway"="%[1]s"];
);
out center;`, aeroway)
}

// UnpavedRunwaysQuery selects US runways with an unpaved surface.
func UnpavedRunwaysQuery() string {
	return fmt.Sprintf(`[out:json][timeout:900];
area["ISO3166-1"="US"]->.searchArea;
way["aeroway"="runway"]["surface"~"%s"](area.searchArea);
out center;`, strings.Join(UnpavedSurfaces, "|"))
}

// Client runs queries against one Overpass instance.
type Client struct {
	HTTP   *fetch.Client
	URL    string
	Logger *zap.Logger
}

// Query posts q and decodes the response.
func (c *Client) Query(ctx context.Context, q string) (*Response, error) {
	form := url.Values{}
	form.Set("data", q)
	body, err := c.HTTP.Post(ctx, c.URL, "application/x-www-form-urlencoded", []byte(form.Encode()))
	if err != nil {
		return nil, errors.Wrap(err, "overpass query failed")
	}
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "failed to decode overpass response")
	}
	return &resp, nil
}

// CachedQuery returns the cached response under key when useCache is set
// and an entry exists; otherwise it runs q and caches the result.
func (c *Client) CachedQuery(ctx context.Context, dir *cache.Dir, key, q string, useCache bool) (*Response, error) {
	if useCache {
		var resp Response
		ok, err := dir.Load(key, &resp)
		if err != nil {
			return nil, err
		}
		if ok {
			c.Logger.Info("Using cached overpass response", zap.String("key", key))
			return &resp, nil
		}
	}
	resp, err := c.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	if err := dir.Store(key, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// LifecycleTags are always exported so that disused and abandoned
// features can be told apart from active ones.
var LifecycleTags = []string{"aeroway", "disused:aeroway", "abandoned:aeroway"}

// Columns returns the CSV header: id, latitude, longitude, then the tag
// keys not already present, then any missing LifecycleTags.
func Columns(tags []string) []string {
	cols := []string{"id", "latitude", "longitude"}
	seen := map[string]bool{"id": true, "latitude": true, "longitude": true}
	for _, t := range append(append([]string{}, tags...), LifecycleTags...) {
		if !seen[t] {
			seen[t] = true
			cols = append(cols, t)
		}
	}
	return cols
}

// Row flattens an element under columns. Tags outside columns are dropped.
func Row(e Element, columns []string) (map[string]string, bool) {
	lat, lon, ok := e.Position()
	if !ok {
		return nil, false
	}
	row := map[string]string{
		"id":        strconv.FormatInt(e.ID, 10),
		"latitude":  strconv.FormatFloat(lat, 'f', -1, 64),
		"longitude": strconv.FormatFloat(lon, 'f', -1, 64),
	}
	for _, c := range columns {
		if _, set := row[c]; set {
			continue
		}
		if v, ok := e.Tags[c]; ok {
			row[c] = v
		}
	}
	return row, true
}

// WriteCSV writes nodes first, then ways.
func WriteCSV(path string, resp *Response, tags []string) (int, error) {
	columns := Columns(tags)
	n := 0
	err := table.WriteMapsFile(path, columns, func(emit func(map[string]string) error) error {
		for _, typ := range []string{"node", "way"} {
			for _, e := range resp.ByType(typ) {
				row, ok := Row(e, columns)
				if !ok {
					continue
				}
				if err := emit(row); err != nil {
					return err
				}
				n++
			}
		}
		return nil
	})
	return n, err
}

// CSVPath is the export of one aeroway value.
func CSVPath(dataDir, aeroway string) string {
	return filepath.Join(dataDir, "world", "osm", "overpass", aeroway+".csv")
}

// Fetcher exports every value of Aeroways.
type Fetcher struct {
	Client   *Client
	Cache    *cache.Dir
	DataDir  string
	UseCache bool
}

// Fetch queries each aeroway value and writes its CSV with the top tag
// columns listed by taginfo.
func (f *Fetcher) Fetch(ctx context.Context) error {
	for _, aeroway := range Aeroways {
		tags, err := taginfo.ReadTopTags(taginfo.TopTagsPath(f.DataDir, aeroway))
		if err != nil {
			return errors.Wrap(err, "top tags missing, run fetch taginfo first")
		}
		resp, err := f.Client.CachedQuery(ctx, f.Cache, cache.Key("overpass-osm", aeroway), AerowayQuery(aeroway), f.UseCache)
		if err != nil {
			return errors.Wrapf(err, "aeroway=%s", aeroway)
		}
		path := CSVPath(f.DataDir, aeroway)
		n, err := WriteCSV(path, resp, tags)
		if err != nil {
			return err
		}
		f.Client.Logger.Info("Wrote overpass export", zap.String("aeroway", aeroway), zap.Int("rows", n), zap.String("path", path))
	}
	return nil
}
