package main

import (
	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"unidrome/internal/aerodrome"
	"unidrome/internal/spatial"
)

var (
	eps        float64
	minSamples int
	combineOut string
	combineGeo string
)

var combineCmd = &cobra.Command{
	Use:   "combine",
	Short: "Cluster the active airports of every registry source",
	Long: `Loads every source of the registry, keeps active airports, and clusters
them with DBSCAN. Each cluster becomes one MultiPoint feature carrying the
prefixed columns of its members; unclustered airports are kept as points.`,
	RunE: runCombine,
}

func runCombine(cmd *cobra.Command, args []string) error {
	reg, err := registry()
	if err != nil {
		return err
	}
	loaded, err := aerodrome.LoadAll(reg)
	if err != nil {
		return err
	}
	for _, src := range reg {
		logger.Info("Loaded source", zap.String("source", src.Key), zap.Int("records", len(loaded[src.Key])))
	}

	records := aerodrome.FilterActiveAirports(aerodrome.Flatten(reg, loaded))
	points := make([]orb.Point, len(records))
	for i, r := range records {
		points[i] = r.Point
	}
	clustering := spatial.DBSCAN(points, eps, minSamples)
	logger.Info("Clustered airports",
		zap.Int("airports", len(records)),
		zap.Int("clusters", clustering.Clusters),
		zap.Int("noise", clustering.Noise))

	fc := spatial.Dissolve(records, clustering.Labels)
	if err := writeFeatures(combineOut, "clusters", fc); err != nil {
		return err
	}
	if combineGeo != "" {
		return writeFeatures(combineGeo, "clusters", fc)
	}
	return nil
}

func init() {
	combineCmd.Flags().Float64Var(&eps, "eps", spatial.DefaultEps, "DBSCAN neighbourhood radius in degrees")
	combineCmd.Flags().IntVar(&minSamples, "min-samples", spatial.DefaultMinSamples, "DBSCAN core point size, including the point itself")
	combineCmd.Flags().StringVar(&combineOut, "out", "package.gpkg", "GeoPackage receiving the clusters layer")
	combineCmd.Flags().StringVar(&combineGeo, "geojson", "", "Also write the clusters as GeoJSON")
	rootCmd.AddCommand(combineCmd)
}
