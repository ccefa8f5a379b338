// Package raf syncs the Recreational Aviation Foundation airfield guide
// into a CSV export and a KMZ content pack.
package raf

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"unidrome/internal/fetch"
)

// DefaultBaseURL is the guide API root.
const DefaultBaseURL = "https://api.guide.theraf.org/api/v1.0/"

const (
	pageLimit      = 50
	mediaPageLimit = 20
)

// Airport is one airport as returned by the API, keyed by top-level field.
type Airport map[string]gjson.Result

// ID returns the airport id.
func (a Airport) ID() string {
	return a["id"].String()
}

func toAirport(r gjson.Result) Airport {
	a := Airport{}
	r.ForEach(func(k, v gjson.Result) bool {
		a[k.String()] = v
		return true
	})
	return a
}

// ParseAirports reads a JSON array of airports, e.g. a pre-downloaded dump.
func ParseAirports(b []byte) ([]Airport, error) {
	if !gjson.ValidBytes(b) {
		return nil, errors.New("invalid airports JSON")
	}
	doc := gjson.ParseBytes(b)
	if !doc.IsArray() {
		return nil, errors.New("airports JSON is not an array")
	}
	var out []Airport
	for _, r := range doc.Array() {
		out = append(out, toAirport(r))
	}
	return out, nil
}

// Options selects the per-airport details fetched on top of the overview.
type Options struct {
	Runways   bool
	Amenities bool
	Comments  bool
	Media     bool
}

// Client talks to the guide API with a bearer token.
type Client struct {
	HTTP    *fetch.Client
	BaseURL string
	Logger  *zap.Logger
}

// NewClient authenticates http with token. A token without the "Bearer "
// scheme gets it prepended.
func NewClient(http *fetch.Client, token string, logger *zap.Logger) *Client {
	if token != "" && !strings.HasPrefix(token, "Bearer ") {
		token = "Bearer " + token
	}
	return &Client{HTTP: http.WithHeader("Authorization", token), BaseURL: DefaultBaseURL, Logger: logger}
}

func (c *Client) get(ctx context.Context, path string) (gjson.Result, error) {
	body, err := c.HTTP.GetBytes(ctx, c.BaseURL+path)
	if err != nil {
		return gjson.Result{}, err
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, errors.Errorf("invalid JSON from %s", path)
	}
	return gjson.ParseBytes(body), nil
}

// paginate collects results of a list endpoint until metadata.total is
// reached.
func (c *Client) paginate(ctx context.Context, path string, limit int) ([]gjson.Result, error) {
	var all []gjson.Result
	total := 1
	for offset := 0; offset < total; offset += limit {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		page, err := c.get(ctx, fmt.Sprintf("%s%slimit=%d&offset=%d", path, sep, limit, offset))
		if err != nil {
			return nil, errors.Wrap(err, "failed to retrieve data")
		}
		total = int(page.Get("metadata.total").Int())
		results := page.Get("results").Array()
		all = append(all, results...)
		if len(results) == 0 {
			break
		}
	}
	return all, nil
}

// Airports lists every airport of the guide.
func (c *Client) Airports(ctx context.Context) ([]Airport, error) {
	results, err := c.paginate(ctx, "airports", pageLimit)
	if err != nil {
		return nil, err
	}
	out := make([]Airport, 0, len(results))
	for _, r := range results {
		out = append(out, toAirport(r))
	}
	return out, nil
}

// Overview fetches the detail record of one airport.
func (c *Client) Overview(ctx context.Context, id string) (Airport, error) {
	r, err := c.get(ctx, "airports/"+id+"/overview")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to retrieve overview for airport %s", id)
	}
	return toAirport(r), nil
}

// Details fetches the optional per-airport lists selected by opts, keyed
// by the field they are stored under.
func (c *Client) Details(ctx context.Context, id string, opts Options) (map[string]gjson.Result, error) {
	out := map[string]gjson.Result{}
	if opts.Runways {
		r, err := c.get(ctx, "airports/"+id+"/runways")
		if err != nil {
			return nil, errors.Wrapf(err, "failed to retrieve runways for airport %s", id)
		}
		out["runways"] = r.Get("runways")
	}
	if opts.Amenities {
		r, err := c.get(ctx, "airports/"+id+"/amenities")
		if err != nil {
			return nil, errors.Wrapf(err, "failed to retrieve amenities for airport %s", id)
		}
		out["amenities"] = r.Get("amenities")
	}
	if opts.Comments {
		r, err := c.get(ctx, "airports/"+id+"/comments/directional-runways")
		if err != nil {
			return nil, errors.Wrapf(err, "failed to retrieve comments for airport %s", id)
		}
		out["comments"] = r
	}
	if opts.Media {
		media, err := c.paginate(ctx, "airports/"+id+"/media/all", mediaPageLimit)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to retrieve media for airport %s", id)
		}
		raw := make([]string, len(media))
		for i, m := range media {
			raw[i] = m.Raw
		}
		out["media"] = gjson.Parse("[" + strings.Join(raw, ",") + "]")
	}
	return out, nil
}

// Sync lists the airports and merges the overview and selected details
// into each. A failed detail request is logged and the airport is kept
// with what was retrieved.
func (c *Client) Sync(ctx context.Context, opts Options) ([]Airport, error) {
	airports, err := c.Airports(ctx)
	if err != nil {
		return nil, err
	}
	for i, a := range airports {
		id := a.ID()
		c.Logger.Debug(fmt.Sprintf("Fetching airport %s (progress: %d/%d)", id, i+1, len(airports)))

		overview, err := c.Overview(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.Logger.Warn("Skipping overview", zap.String("airport", id), zap.Error(err))
		}
		for k, v := range overview {
			a[k] = v
		}

		details, err := c.Details(ctx, id, opts)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			c.Logger.Warn("Skipping details", zap.String("airport", id), zap.Error(err))
		}
		for k, v := range details {
			a[k] = v
		}
	}
	return airports, nil
}
