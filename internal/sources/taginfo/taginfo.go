// Package taginfo lists the keys most often combined with an aeroway value
// on OpenStreetMap. The lists decide which tag columns the OSM exports
// carry.
package taginfo

import (
	"bufio"
	"context"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"unidrome/internal/fetch"
)

// DefaultBaseURL is the taginfo API root.
const DefaultBaseURL = "https://taginfo.openstreetmap.org/api/4/"

// Aeroways are the values whose combinations are listed.
var Aeroways = []string{"aerodrome", "runway"}

// TopTagsPath is where the key list of an aeroway value is stored.
func TopTagsPath(dataDir, aeroway string) string {
	return filepath.Join(dataDir, "world", "osm", "top-"+aeroway+".txt")
}

// CombinationsURL returns the tag/combinations query for aeroway=value.
func CombinationsURL(base, value string) string {
	q := url.Values{}
	q.Set("key", "aeroway")
	q.Set("value", value)
	q.Set("filter", "all")
	q.Set("sortname", "to_count")
	q.Set("sortorder", "desc")
	return base + "tag/combinations?" + q.Encode()
}

// ParseCombinations returns the distinct other_key values of a
// tag/combinations response in response order.
func ParseCombinations(body []byte) ([]string, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid taginfo response")
	}
	var keys []string
	seen := make(map[string]bool)
	gjson.GetBytes(body, "data.#.other_key").ForEach(func(_, v gjson.Result) bool {
		k := v.String()
		if k != "" && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
		return true
	})
	return keys, nil
}

// Fetcher writes the top tag lists.
type Fetcher struct {
	Client  *fetch.Client
	Logger  *zap.Logger
	BaseURL string
	DataDir string
}

// Fetch stores the key list of every value in Aeroways.
func (f *Fetcher) Fetch(ctx context.Context) error {
	base := f.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	for _, aeroway := range Aeroways {
		body, err := f.Client.GetBytes(ctx, CombinationsURL(base, aeroway))
		if err != nil {
			return errors.Wrapf(err, "failed to fetch combinations of aeroway=%s", aeroway)
		}
		keys, err := ParseCombinations(body)
		if err != nil {
			return errors.Wrapf(err, "aeroway=%s", aeroway)
		}
		path := TopTagsPath(f.DataDir, aeroway)
		if err := WriteTopTags(path, keys); err != nil {
			return err
		}
		f.Logger.Info("Wrote top tags", zap.String("aeroway", aeroway), zap.Int("keys", len(keys)), zap.String("path", path))
	}
	return nil
}

// WriteTopTags writes one key per line.
func WriteTopTags(path string, keys []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

// ReadTopTags reads a key list written by WriteTopTags. Blank lines are
// skipped.
func ReadTopTags(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	var keys []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if k := strings.TrimSpace(sc.Text()); k != "" {
			keys = append(keys, k)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return keys, nil
}
