package main

import (
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"unidrome/internal/cache"
	"unidrome/internal/sources/faa"
	"unidrome/internal/sources/overpass"
	"unidrome/internal/table"
)

var (
	gasGrassOut string
	withOSM     bool
)

var gasGrassCmd = &cobra.Command{
	Use:   "gas-grass",
	Short: "List unpaved runways at airports selling 100LL",
	RunE:  runGasGrass,
}

func runGasGrass(cmd *cobra.Command, args []string) error {
	dir := filepath.Join(cfg.DataDir, faa.Dir)
	airports, err := table.ReadFile(filepath.Join(dir, "APT_BASE.csv"))
	if err != nil {
		return err
	}
	runways, err := table.ReadFile(filepath.Join(dir, "APT_RWY.csv"))
	if err != nil {
		return err
	}
	found := faa.GasGrass(airports, runways)
	logger.Info("Found unpaved runways with avgas", zap.Int("runways", len(found)))

	out := gasGrassOut
	if out == "" {
		out = cfg.Path("us", "gas-grass.geojson")
	}
	if err := writeFeatures(out, "gas_grass", faa.GasGrassFeatures(found)); err != nil {
		return err
	}
	if !withOSM {
		return nil
	}

	client := &overpass.Client{HTTP: httpClient(), URL: cfg.OverpassURL, Logger: logger}
	resp, err := client.CachedQuery(cmd.Context(), cacheDirectory(), cache.Key("overpass-unpaved-runways"), overpass.UnpavedRunwaysQuery(), useCache)
	if err != nil {
		return err
	}
	path := cfg.Path("us", "osm", "unpaved-runways.csv")
	n, err := overpass.WriteCSV(path, resp, []string{"surface"})
	if err != nil {
		return err
	}
	logger.Info("Wrote unpaved OSM runways", zap.String("path", path), zap.Int("runways", n))
	return nil
}

func init() {
	gasGrassCmd.Flags().StringVar(&gasGrassOut, "out", "", "Output GeoJSON (default: <data-dir>/us/gas-grass.geojson)")
	gasGrassCmd.Flags().BoolVar(&withOSM, "osm", false, "Also export US unpaved runways from Overpass")
	gasGrassCmd.Flags().BoolVar(&useCache, "use-cache", false, "Reuse a cached Overpass response")
	rootCmd.AddCommand(gasGrassCmd)
}
