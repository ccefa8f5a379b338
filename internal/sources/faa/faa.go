// Package faa downloads the airport tables of the FAA NASR 28-day
// subscription.
package faa

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"unidrome/internal/fetch"
)

const (
	// DefaultBaseURL serves the cycle archives.
	DefaultBaseURL = "https://nfdc.faa.gov/webContent/28DaySub/extra/"

	cycleLength = 28 * 24 * time.Hour
)

// Dir is the NASR directory below the data directory.
var Dir = filepath.Join("us", "faa", "nasr")

// Files are the tables extracted from the archive.
var Files = []string{"APT_BASE.csv", "APT_RWY.csv"}

// firstCycle is a known cycle start; every later cycle is a multiple of
// 28 days after it.
var firstCycle = time.Date(2024, time.January, 25, 0, 0, 0, 0, time.UTC)

// CurrentCycle returns the start of the latest cycle on or before today.
func CurrentCycle(today time.Time) time.Time {
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	if day.Before(firstCycle) {
		return firstCycle.Add(-cycleLength)
	}
	n := day.Sub(firstCycle) / cycleLength
	return firstCycle.Add(n * cycleLength)
}

// ArchiveName is the file name of the CSV archive of a cycle, e.g.
// "21_Mar_2024_CSV.zip".
func ArchiveName(cycle time.Time) string {
	return cycle.Format("02_Jan_2006") + "_CSV.zip"
}

// Fetcher downloads and extracts the current cycle.
type Fetcher struct {
	Client  *fetch.Client
	Logger  *zap.Logger
	BaseURL string
	DataDir string
}

// Fetch downloads the archive of the cycle current at today and extracts
// Files into the NASR directory. Files missing from the archive are
// logged and skipped.
func (f *Fetcher) Fetch(ctx context.Context, today time.Time) error {
	base := f.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	cycle := CurrentCycle(today)
	url := base + ArchiveName(cycle)
	f.Logger.Info("Downloading NASR archive", zap.String("cycle", cycle.Format("2006-01-02")), zap.String("url", url))

	body, err := f.Client.GetBytes(ctx, url)
	if err != nil {
		return errors.Wrap(err, "failed to download NASR archive")
	}
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return errors.Wrap(err, "failed to open NASR archive")
	}

	byName := make(map[string]*zip.File, len(zr.File))
	for _, zf := range zr.File {
		byName[path.Base(zf.Name)] = zf
	}

	dst := filepath.Join(f.DataDir, Dir)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", dst)
	}
	for _, name := range Files {
		zf, ok := byName[name]
		if !ok {
			f.Logger.Warn("File not found in archive", zap.String("file", name))
			continue
		}
		if err := extract(zf, filepath.Join(dst, name)); err != nil {
			return err
		}
		f.Logger.Info("Copied file", zap.String("file", name), zap.String("dir", dst))
	}
	return nil
}

func extract(zf *zip.File, dst string) error {
	rc, err := zf.Open()
	if err != nil {
		return errors.Wrapf(err, "failed to open %s in archive", zf.Name)
	}
	defer rc.Close()

	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", dst)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return errors.Wrapf(err, "failed to extract %s", zf.Name)
	}
	return out.Close()
}
