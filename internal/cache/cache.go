// Package cache keeps raw API responses on disk so that repeated runs of a
// workflow do not hit rate-limited services again.
package cache

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var unsafeKey = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Dir is a directory of JSON files, one per key. A zero MaxAge never expires
// entries.
type Dir struct {
	Path   string
	MaxAge time.Duration

	now func() time.Time
}

// New returns a cache rooted at path.
func New(path string, maxAge time.Duration) *Dir {
	return &Dir{Path: path, MaxAge: maxAge, now: time.Now}
}

// Key builds a file-name-safe key from request parameters, e.g.
// Key("places_nearby", 45.1, -122.3, 2000, "lodging").
func Key(prefix string, params ...interface{}) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		b, _ := json.Marshal(p)
		parts = append(parts, strings.Trim(string(b), `"`))
	}
	key := prefix + "_" + strings.Join(parts, "_")
	key = unsafeKey.ReplaceAllString(key, "-")
	if len(key) > 120 {
		sum := sha1.Sum([]byte(key))
		key = key[:80] + "-" + hex.EncodeToString(sum[:])
	}
	return key
}

func (d *Dir) file(key string) string {
	return filepath.Join(d.Path, key+".json")
}

// Load decodes the entry for key into v. It reports false when the entry
// is missing or older than MaxAge.
func (d *Dir) Load(key string, v interface{}) (bool, error) {
	path := d.file(key)
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, errors.Wrapf(err, "failed to stat cache entry %s", path)
	}
	if d.MaxAge > 0 && d.clock().Sub(info.ModTime()) > d.MaxAge {
		return false, nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return false, errors.Wrapf(err, "failed to read cache entry %s", path)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return false, errors.Wrapf(err, "failed to decode cache entry %s", path)
	}
	return true, nil
}

// Store writes v as the entry for key.
func (d *Dir) Store(key string, v interface{}) error {
	if err := os.MkdirAll(d.Path, os.ModePerm); err != nil {
		return errors.Wrapf(err, "failed to create cache directory %s", d.Path)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "failed to encode cache entry %s", key)
	}
	path := d.file(key)
	if err := os.WriteFile(path, b, 0644); err != nil {
		return errors.Wrapf(err, "failed to write cache entry %s", path)
	}
	return nil
}

func (d *Dir) clock() time.Time {
	if d.now == nil {
		return time.Now()
	}
	return d.now()
}
