package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"unidrome/internal/geo"
	"unidrome/internal/review"
)

var (
	reportPath       string
	reviewedPath     string
	excludeUnableSee bool
	noBrowser        bool
)

var filterCmd = &cobra.Command{
	Use:   "filter <region.geojson> <out.geojson>",
	Short: "Keep the missing airports inside a bounding region",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		region, err := geo.LoadRegion(args[0])
		if err != nil {
			return err
		}
		var reviewed *review.Reviewed
		if excludeUnableSee {
			if reviewed, err = review.LoadReviewed(reviewedFile()); err != nil {
				return err
			}
		}
		candidates, err := review.Filter(reportFile(), region, reviewed)
		if err != nil {
			return err
		}
		return writeFeatures(args[1], "missing_airports", review.Features(candidates))
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <region.geojson>",
	Short: "Review the missing airports of a region one by one",
	Long: `Opens the OpenStreetMap editor at every missing airport inside the region
that has not been reviewed yet and asks whether an airport can be seen. Any
answer but "y" adds the airport to the unable-to-be-seen list, which is saved
after every answer.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tbl, candidates, err := review.LoadReport(reportFile())
		if err != nil {
			return err
		}
		if tbl.Len() == 0 {
			return review.ErrEmptyReport
		}
		region, err := geo.LoadRegion(args[0])
		if err != nil {
			return err
		}
		candidates = review.InRegion(candidates, region)
		if len(candidates) == 0 {
			logger.Info("No missing airports found within the specified bounding region")
			return nil
		}
		logger.Info("Found missing airports within the region", zap.Int("airports", len(candidates)))

		reviewed, err := review.LoadReviewed(reviewedFile())
		if err != nil {
			return err
		}
		if reviewed.Len() > 0 {
			candidates = reviewed.Exclude(candidates)
			logger.Info("Excluded already reviewed airports", zap.Int("remaining", len(candidates)))
		}
		if len(candidates) == 0 {
			logger.Info("No new airports to review in the specified bounding region")
			return nil
		}

		v := &review.Verifier{
			In:       cmd.InOrStdin(),
			Out:      cmd.OutOrStdout(),
			Reviewed: reviewed,
			Logger:   logger,
		}
		if !noBrowser {
			v.Opener = review.Browser{}
		}
		s, err := v.Run(candidates)
		logger.Info("Verification finished", zap.Int("reviewed", s.Reviewed), zap.Int("missing", s.Missing), zap.Int("unseen", s.Unseen))
		return err
	},
}

func reportFile() string {
	if reportPath != "" {
		return reportPath
	}
	return review.MissingPath(cfg.DataDir)
}

func reviewedFile() string {
	if reviewedPath != "" {
		return reviewedPath
	}
	return review.ReviewedPath(cfg.DataDir)
}

func init() {
	for _, c := range []*cobra.Command{filterCmd, verifyCmd} {
		c.Flags().StringVar(&reportPath, "report", "", "Missing airports CSV (default: the overpass missing_from_ourairports.csv)")
		c.Flags().StringVar(&reviewedPath, "reviewed", "", "Unable-to-be-seen CSV (default: under world/ourairports)")
	}
	filterCmd.Flags().BoolVar(&excludeUnableSee, "exclude-unable-to-see", false, "Drop airports already marked as unable to be seen")
	verifyCmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Print editor links without opening them")
	rootCmd.AddCommand(filterCmd)
	rootCmd.AddCommand(verifyCmd)
}
