package main

import (
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"unidrome/internal/aerodrome"
	"unidrome/internal/geo"
	"unidrome/internal/review"
	"unidrome/internal/spatial"
	"unidrome/internal/table"
)

var (
	referenceKey  string
	candidateKeys []string
	missingBuffer float64
	missingOut    string
)

var missingCmd = &cobra.Command{
	Use:   "missing",
	Short: "List reference airports with no OpenStreetMap aerodrome nearby",
	Long: `Loads the reference source, keeps active aerodromes that are not
heliports, and reports those with no candidate within the buffer. The report
keeps the reference columns and adds id, latitude_deg, longitude_deg and
osm_editor_link where the reference lacks them; the coordinates are always
the parsed position. The format follows
the extension of --out: .csv, .gpkg (layer missing_airports) or .geojson.`,
	RunE: runMissing,
}

func loadKey(reg aerodrome.Registry, key string) ([]aerodrome.Record, error) {
	src, ok := reg.Lookup(key)
	if !ok {
		return nil, errors.Errorf("source %q is not in the registry", key)
	}
	records, skipped, err := aerodrome.Load(src)
	if err != nil {
		return nil, err
	}
	logger.Info("Loaded source", zap.String("source", key), zap.Int("records", len(records)), zap.Int("skipped", skipped))
	return records, nil
}

// missingRegistry is the registry extended with the OSM and Wikidata
// exports, so the usual references and candidates resolve without a
// --sources file.
func missingRegistry() (aerodrome.Registry, error) {
	reg, err := registry()
	if err != nil {
		return nil, err
	}
	for _, extra := range []aerodrome.Source{
		aerodrome.NewSource(cfg.DataDir, aerodrome.KeyOverpass, aerodrome.OverpassParser{}),
		aerodrome.NewSource(cfg.DataDir, aerodrome.KeyDaylight, aerodrome.DaylightParser{}),
		aerodrome.NewSource(cfg.DataDir, aerodrome.KeyOurAirports, aerodrome.OurAirportsParser{}),
		aerodrome.NewSource(cfg.DataDir, aerodrome.KeyWikidata, aerodrome.WikidataParser{}),
	} {
		if _, ok := reg.Lookup(extra.Key); !ok {
			reg = append(reg, extra)
		}
	}
	return reg, nil
}

func runMissing(cmd *cobra.Command, args []string) error {
	reg, err := missingRegistry()
	if err != nil {
		return err
	}
	reference, err := loadKey(reg, referenceKey)
	if err != nil {
		return err
	}
	var candidates []aerodrome.Record
	for _, key := range candidateKeys {
		records, err := loadKey(reg, key)
		if err != nil {
			return err
		}
		candidates = append(candidates, records...)
	}

	missing := spatial.Missing(aerodrome.FilterReviewable(reference), candidates, missingBuffer)
	logger.Info("Found missing airports", zap.Int("missing", len(missing)), zap.Int("reference", len(reference)))

	out := missingOut
	if out == "" {
		out = review.MissingPath(cfg.DataDir)
	}
	if strings.EqualFold(filepath.Ext(out), ".csv") {
		return writeMissingCSV(out, reference, missing)
	}
	return writeFeatures(out, "missing_airports", missingFeatures(missing))
}

// reportRow is the reference row plus the columns the review commands
// read: the parsed position, an id and the editor link.
func reportRow(r aerodrome.Record) map[string]string {
	m := r.Row.Map()
	m[review.LonColumn] = geo.FormatCoord(r.Point.Lon())
	m[review.LatColumn] = geo.FormatCoord(r.Point.Lat())
	if strings.TrimSpace(m[review.IDColumn]) == "" {
		m[review.IDColumn] = r.ID
	}
	m[review.EditorLinkColumn] = geo.EditorLink(r.Point)
	return m
}

// reportColumns appends the review columns missing from the reference
// header.
func reportColumns(reference []aerodrome.Record) []string {
	var columns []string
	if len(reference) > 0 {
		columns = append(columns, reference[0].Row.Header().Names()...)
	}
	for _, c := range []string{review.IDColumn, review.LatColumn, review.LonColumn, review.EditorLinkColumn} {
		if !contains(columns, c) {
			columns = append(columns, c)
		}
	}
	return columns
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func writeMissingCSV(path string, reference, missing []aerodrome.Record) error {
	columns := reportColumns(reference)
	err := table.WriteMapsFile(path, columns, func(emit func(map[string]string) error) error {
		for _, r := range missing {
			if err := emit(reportRow(r)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("Wrote missing airports", zap.String("path", path), zap.Int("rows", len(missing)))
	return nil
}

func missingFeatures(missing []aerodrome.Record) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range missing {
		f := geojson.NewFeature(r.Point)
		for k, v := range reportRow(r) {
			f.Properties[k] = v
		}
		fc.Append(f)
	}
	return fc
}

func init() {
	missingCmd.Flags().StringVar(&referenceKey, "reference", aerodrome.KeyOurAirports, "Registry key of the reference source")
	missingCmd.Flags().StringSliceVar(&candidateKeys, "candidates", []string{aerodrome.KeyOverpass}, "Registry keys of the OpenStreetMap sources")
	missingCmd.Flags().Float64Var(&missingBuffer, "buffer", spatial.MissingBuffer, "Match distance in meters")
	missingCmd.Flags().StringVar(&missingOut, "out", "", "Output file (default: the overpass missing_from_ourairports.csv)")
	rootCmd.AddCommand(missingCmd)
}
