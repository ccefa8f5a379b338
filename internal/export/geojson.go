// Package export writes feature collections as GeoJSON, GeoPackage layers
// and KMZ content packs.
package export

import (
	"os"
	"path/filepath"

	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
)

// WriteGeoJSON writes fc to path, creating parent directories.
func WriteGeoJSON(path string, fc *geojson.FeatureCollection) error {
	b, err := fc.MarshalJSON()
	if err != nil {
		return errors.Wrap(err, "failed to encode feature collection")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

// ReadGeoJSON reads a feature collection from path.
func ReadGeoJSON(path string) (*geojson.FeatureCollection, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	fc, err := geojson.UnmarshalFeatureCollection(b)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse %s", path)
	}
	return fc, nil
}
