// Package ourairports downloads the OurAirports data dump.
package ourairports

import (
	"context"
	"net/http"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"unidrome/internal/fetch"
)

// DefaultBaseURL is the published copy of the ourairports-data repository.
const DefaultBaseURL = "https://davidmegginson.github.io/ourairports-data/"

// Dir is the OurAirports directory below the data directory.
var Dir = filepath.Join("world", "ourairports")

// Files are the tables downloaded.
var Files = []string{"airports.csv", "runways.csv"}

// Fetcher downloads Files into the data directory.
type Fetcher struct {
	Client  *fetch.Client
	Logger  *zap.Logger
	BaseURL string
	DataDir string
}

// Fetch downloads every file. A file the server does not have is logged
// and skipped; any other failure aborts.
func (f *Fetcher) Fetch(ctx context.Context) error {
	base := f.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	dst := filepath.Join(f.DataDir, Dir)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", dst)
	}

	for _, name := range Files {
		f.Logger.Info("Downloading", zap.String("file", name))
		body, err := f.Client.GetBytes(ctx, base+name)
		var se *fetch.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			f.Logger.Warn("File not found in the repository", zap.String("file", name))
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "failed to download %s", name)
		}
		out := filepath.Join(dst, name)
		if err := os.WriteFile(out, body, 0o644); err != nil {
			return errors.Wrapf(err, "failed to write %s", out)
		}
		f.Logger.Info("Copied file", zap.String("file", name), zap.String("dir", dst))
	}
	return nil
}
