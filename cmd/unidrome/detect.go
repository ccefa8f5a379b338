package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"unidrome/internal/aerodrome"
	"unidrome/internal/table"
)

var detectCmd = &cobra.Command{
	Use:   "detect <file.csv>...",
	Short: "Print the longitude and latitude columns found in CSV files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, path := range args {
			t, err := table.ReadFile(path)
			if err != nil {
				return err
			}
			d, err := aerodrome.DetectTable(t)
			if err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", path, err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: lon=%s lat=%s\n", path, d.Lon, d.Lat)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)
}
