package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"unidrome/internal/aerodrome"
	"unidrome/internal/hexagg"
	"unidrome/internal/store"
)

var (
	resolution  int
	parentRes   []int
	hexOut      string
	hexGeo      string
	hexPostgres bool
)

var hexCmd = &cobra.Command{
	Use:   "hex",
	Short: "Count aerodromes per H3 cell",
	Long: `Aggregates every registry record into H3 cells and writes the cells as
the unidrome layer of a GeoPackage. Parent resolutions get their own layers
and, with --postgres, every level is upserted into POSTGRES_URL.`,
	RunE: runHex,
}

func runHex(cmd *cobra.Command, args []string) error {
	reg, err := registry()
	if err != nil {
		return err
	}
	loaded, err := aerodrome.LoadAll(reg)
	if err != nil {
		return err
	}
	records := aerodrome.Flatten(reg, loaded)

	cells := hexagg.Aggregate(records, resolution)
	logger.Info("Aggregated records", zap.Int("records", len(records)), zap.Int("cells", len(cells)), zap.Int("resolution", resolution))

	fc, err := hexagg.Features(cells)
	if err != nil {
		return err
	}
	if err := writeFeatures(hexOut, "unidrome", fc); err != nil {
		return err
	}
	if hexGeo != "" {
		if err := writeFeatures(hexGeo, "unidrome", fc); err != nil {
			return err
		}
	}

	all := append([]hexagg.Cell(nil), cells...)
	for _, res := range parentRes {
		parents, err := hexagg.Parents(cells, res)
		if err != nil {
			return err
		}
		pfc, err := hexagg.Features(parents)
		if err != nil {
			return err
		}
		if err := writeFeatures(hexOut, fmt.Sprintf("unidrome_h3_level_%d", res), pfc); err != nil {
			return err
		}
		all = append(all, parents...)
	}

	if !hexPostgres {
		return nil
	}
	s, err := store.Connect(cmd.Context(), cfg.PostgresURL, store.DefaultAttempts, store.DefaultRetryWait, logger)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.WriteCells(cmd.Context(), all)
}

func init() {
	hexCmd.Flags().IntVar(&resolution, "resolution", hexagg.DefaultResolution, "H3 resolution of the cells")
	hexCmd.Flags().IntSliceVar(&parentRes, "parents", nil, "Coarser resolutions to roll the cells up to")
	hexCmd.Flags().StringVar(&hexOut, "out", "package.gpkg", "GeoPackage receiving the unidrome layer")
	hexCmd.Flags().StringVar(&hexGeo, "geojson", "", "Also write the cells as GeoJSON")
	hexCmd.Flags().BoolVar(&hexPostgres, "postgres", false, "Upsert the cells into POSTGRES_URL")
	rootCmd.AddCommand(hexCmd)
}
