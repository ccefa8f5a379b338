// Command unidrome fetches aerodrome registries and turns them into the
// reports and map layers of the data package.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"unidrome/internal/aerodrome"
	"unidrome/internal/cache"
	"unidrome/internal/config"
	"unidrome/internal/fetch"
	"unidrome/internal/logging"
)

var (
	// Global flags
	verbose      bool
	dataDir      string
	cacheDir     string
	registryPath string

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "unidrome",
	Short: "Aerodrome data preparation",
	Long: `unidrome downloads aerodrome registries (FAA, AFAC, OurAirports,
OpenStreetMap, Wikidata, RAF, Google Places), joins them spatially and writes
CSV, GeoJSON, GeoPackage and KMZ outputs below the data directory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = logging.New(verbose)
		if err != nil {
			return err
		}
		config.LoadEnvironmentVariables(logger)
		cfg = config.Load()
		if cmd.Flags().Changed("data-dir") {
			cfg.DataDir = dataDir
		}
		if cmd.Flags().Changed("cache-dir") {
			cfg.CacheDir = cacheDir
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "data", "Data directory (or set UNIDROME_DATA_DIR)")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "cache", "Response cache directory (or set UNIDROME_CACHE_DIR)")
	rootCmd.PersistentFlags().StringVar(&registryPath, "sources", "", "YAML source registry (default: built-in registry)")
}

// registry returns the --sources registry or the built-in one.
func registry() (aerodrome.Registry, error) {
	if registryPath != "" {
		return aerodrome.LoadRegistry(registryPath, cfg.DataDir)
	}
	return aerodrome.DefaultRegistry(cfg.DataDir), nil
}

func httpClient() *fetch.Client {
	return fetch.New(logger)
}

func cacheDirectory() *cache.Dir {
	return cache.New(cfg.CacheDir, 0)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
