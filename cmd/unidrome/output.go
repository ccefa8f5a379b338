package main

import (
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"unidrome/internal/export"
)

// writeFeatures picks the output format from the extension of path. The
// layer name only matters for GeoPackage output.
func writeFeatures(path, layer string, fc *geojson.FeatureCollection) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gpkg":
		if err := export.WriteLayerFile(path, layer, fc); err != nil {
			return err
		}
	case ".geojson", ".json":
		if err := export.WriteGeoJSON(path, fc); err != nil {
			return err
		}
	case ".kmz":
		if err := export.WriteKMZ(path, iconRoot, fc); err != nil {
			return err
		}
	default:
		return errors.Errorf("unsupported output format %q", filepath.Ext(path))
	}
	logger.Info("Wrote features", zap.String("path", path), zap.String("layer", layer), zap.Int("features", len(fc.Features)))
	return nil
}
