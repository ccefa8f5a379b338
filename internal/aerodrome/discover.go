package aerodrome

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"unidrome/internal/table"
)

// Discovered is one CSV found below a directory whose coordinate columns
// could be detected.
type Discovered struct {
	Key       string
	Detection Detection
	Records   []Record
}

// Discover walks root for CSV files in lexical order and loads each one
// with a ColumnParser. Keys are relative to dataDir. Files without
// detectable coordinates are logged and skipped.
func Discover(root, dataDir string, logger *zap.Logger) ([]Discovered, error) {
	var out []Discovered
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".csv") {
			return nil
		}
		key, err := filepath.Rel(dataDir, path)
		if err != nil {
			key = path
		}
		key = filepath.ToSlash(key)

		t, err := table.ReadFile(path)
		if err != nil {
			logger.Warn("Skipping unreadable csv", zap.String("path", path), zap.Error(err))
			return nil
		}
		det, err := DetectTable(t)
		if err != nil {
			logger.Info("Skipping csv without coordinates", zap.String("path", path))
			return nil
		}
		records, skipped := FromTable(key, t, ColumnParser{Detection: det})
		logger.Debug("Loaded csv",
			zap.String("key", key),
			zap.String("lon", det.Lon),
			zap.String("lat", det.Lat),
			zap.Int("records", len(records)),
			zap.Int("skipped", skipped))
		out = append(out, Discovered{Key: key, Detection: det, Records: records})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to walk %s", root)
	}
	return out, nil
}
