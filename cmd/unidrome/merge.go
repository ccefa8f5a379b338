package main

import (
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"unidrome/internal/aerodrome"
	"unidrome/internal/spatial"
	"unidrome/internal/table"
)

var (
	mergeRoot   string
	mergeOut    string
	mergeBuffer float64
)

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Inner-join every world CSV on proximity",
	Long: `Walks the world directory for CSV files with detectable coordinates and
chains them with an inner spatial join: a row survives only when every file
has a point within the buffer. Columns are prefixed with their source.`,
	RunE: runMerge,
}

func runMerge(cmd *cobra.Command, args []string) error {
	root := mergeRoot
	if root == "" {
		root = cfg.Path("world")
	}
	out := mergeOut
	if out == "" {
		out = cfg.Path("merged.csv")
	}

	found, err := aerodrome.Discover(root, cfg.DataDir, logger)
	if err != nil {
		return err
	}
	sets := make([][]aerodrome.Record, len(found))
	for i, d := range found {
		sets[i] = d.Records
		logger.Info("Joining csv", zap.String("source", d.Key), zap.Int("records", len(d.Records)))
	}

	merged := spatial.MergeAll(sets, mergeBuffer)
	rows := make([]map[string]string, len(merged))
	seen := make(map[string]bool)
	var columns []string
	for i, m := range merged {
		rows[i] = m.Fields()
		for k := range rows[i] {
			if !seen[k] {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	sort.Strings(columns)
	if len(columns) == 0 {
		logger.Warn("Nothing survived the join", zap.Int("files", len(found)))
		return nil
	}

	err = table.WriteMapsFile(out, columns, func(emit func(map[string]string) error) error {
		for _, r := range rows {
			if err := emit(r); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info("Merged and aggregated CSV saved", zap.String("path", out), zap.Int("rows", len(rows)))
	return nil
}

func init() {
	mergeCmd.Flags().StringVar(&mergeRoot, "root", "", "Directory to walk (default: <data-dir>/world)")
	mergeCmd.Flags().StringVar(&mergeOut, "out", "", "Output CSV (default: <data-dir>/merged.csv)")
	mergeCmd.Flags().Float64Var(&mergeBuffer, "buffer", spatial.MergeBuffer, "Join distance in meters")
	rootCmd.AddCommand(mergeCmd)
}
