package main

import (
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"unidrome/internal/aerodrome"
	"unidrome/internal/sources/daylight"
	"unidrome/internal/sources/faa"
	"unidrome/internal/sources/ourairports"
	"unidrome/internal/sources/overpass"
	"unidrome/internal/sources/places"
	"unidrome/internal/sources/raf"
	"unidrome/internal/sources/taginfo"
	"unidrome/internal/sources/wikidata"
)

var (
	baseURL      string
	useCache     bool
	overpassURL  string
	topTags      int
	rafFile      string
	rafToken     string
	rafOptions   raf.Options
	iconRoot     string
	placesRadius int
	placesKey    string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download a source registry into the data directory",
}

var fetchFAACmd = &cobra.Command{
	Use:   "faa",
	Short: "Download APT_BASE and APT_RWY of the current NASR cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := &faa.Fetcher{Client: httpClient(), Logger: logger, BaseURL: baseURL, DataDir: cfg.DataDir}
		return f.Fetch(cmd.Context(), time.Now())
	},
}

var fetchOurAirportsCmd = &cobra.Command{
	Use:   "ourairports",
	Short: "Download the OurAirports airports and runways tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := &ourairports.Fetcher{Client: httpClient(), Logger: logger, BaseURL: baseURL, DataDir: cfg.DataDir}
		return f.Fetch(cmd.Context())
	},
}

var fetchTaginfoCmd = &cobra.Command{
	Use:   "taginfo",
	Short: "Download the keys most often combined with each aeroway value",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := &taginfo.Fetcher{Client: httpClient(), Logger: logger, BaseURL: baseURL, DataDir: cfg.DataDir}
		return f.Fetch(cmd.Context())
	},
}

var fetchOverpassCmd = &cobra.Command{
	Use:   "overpass",
	Short: "Export aerodromes and runways from the Overpass API",
	Long: `Runs one Overpass query per aeroway value and writes the elements with
the taginfo top tags as columns. Run "fetch taginfo" first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		url := cfg.OverpassURL
		if overpassURL != "" {
			url = overpassURL
		}
		f := &overpass.Fetcher{
			Client:   &overpass.Client{HTTP: httpClient(), URL: url, Logger: logger},
			Cache:    cacheDirectory(),
			DataDir:  cfg.DataDir,
			UseCache: useCache,
		}
		return f.Fetch(cmd.Context())
	},
}

var fetchWikidataCmd = &cobra.Command{
	Use:   "wikidata",
	Short: "Export airports with coordinates from the Wikidata SPARQL endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		f := &wikidata.Fetcher{Client: httpClient(), Logger: logger, Endpoint: baseURL, DataDir: cfg.DataDir}
		return f.Fetch(cmd.Context())
	},
}

var fetchDaylightCmd = &cobra.Command{
	Use:   "daylight",
	Short: "Export aerodromes and runways of the latest Daylight release with Athena",
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.AWSRegion)})
		if err != nil {
			return errors.Wrap(err, "failed to create AWS session")
		}
		f := &daylight.Fetcher{
			Runner:  daylight.NewRunner(sess, cfg.DaylightDatabase, cfg.DaylightOutputBucket, logger),
			DataDir: cfg.DataDir,
			TopTags: topTags,
		}
		return f.Fetch(cmd.Context())
	},
}

var fetchRAFCmd = &cobra.Command{
	Use:   "raf",
	Short: "Sync the RAF airfield guide into a CSV and a KMZ layer",
	RunE: func(cmd *cobra.Command, args []string) error {
		token := cfg.RAFBearerToken
		if rafToken != "" {
			token = rafToken
		}
		if token == "" && rafFile == "" {
			return errors.New("a bearer token (--token or RAF_BEARER_TOKEN) or --file is required")
		}
		client := raf.NewClient(httpClient(), token, logger)
		if baseURL != "" {
			client.BaseURL = baseURL
		}
		f := &raf.Fetcher{
			Client:   client,
			Logger:   logger,
			Options:  rafOptions,
			DataDir:  cfg.DataDir,
			KMZPath:  cfg.ContentPackPath(raf.KMZName),
			IconRoot: iconRoot,
			File:     rafFile,
		}
		return f.Fetch(cmd.Context())
	},
}

var fetchPlacesCmd = &cobra.Command{
	Use:   "places",
	Short: "Collect restaurants and lodging near western US airports",
	RunE: func(cmd *cobra.Command, args []string) error {
		key := cfg.GoogleMapsAPIKey
		if placesKey != "" {
			key = placesKey
		}
		if key == "" {
			return errors.New("GOOGLE_MAPS_API_KEY not set in environment variables")
		}
		src := aerodrome.NewSource(cfg.DataDir, aerodrome.KeyFAA, aerodrome.FAAParser{})
		records, _, err := aerodrome.Load(src)
		if err != nil {
			return err
		}
		f := &places.Fetcher{
			Client:    &places.Client{HTTP: httpClient(), Key: key, BaseURL: baseURL, Cache: cacheDirectory(), Logger: logger},
			Logger:    logger,
			Airports:  places.SelectAirports(records),
			Radius:    placesRadius,
			LayerPath: cfg.ContentPackPath,
			IconRoot:  iconRoot,
		}
		return f.Fetch(cmd.Context())
	},
}

func init() {
	fetchCmd.PersistentFlags().StringVar(&baseURL, "url", "", "Override the source's base URL or endpoint")

	fetchOverpassCmd.Flags().BoolVar(&useCache, "use-cache", false, "Reuse cached Overpass responses")
	fetchOverpassCmd.Flags().StringVar(&overpassURL, "overpass-url", "", "Overpass interpreter URL (or set OVERPASS_URL)")

	fetchDaylightCmd.Flags().IntVar(&topTags, "top-tags", daylight.DefaultTopTags, "Number of tag columns to export")

	fetchRAFCmd.Flags().StringVar(&rafFile, "file", "", "Pre-downloaded JSON dump of the airports")
	fetchRAFCmd.Flags().StringVar(&rafToken, "token", "", "Bearer token (or set RAF_BEARER_TOKEN)")
	fetchRAFCmd.Flags().BoolVar(&rafOptions.Runways, "runways", false, "Also fetch runways of each airport")
	fetchRAFCmd.Flags().BoolVar(&rafOptions.Amenities, "amenities", false, "Also fetch amenities of each airport")
	fetchRAFCmd.Flags().BoolVar(&rafOptions.Comments, "comments", false, "Also fetch runway comments of each airport")
	fetchRAFCmd.Flags().BoolVar(&rafOptions.Media, "media", false, "Also fetch media of each airport")

	fetchPlacesCmd.Flags().IntVar(&placesRadius, "radius", places.DefaultRadius, "Search radius in meters")
	fetchPlacesCmd.Flags().StringVar(&placesKey, "key", "", "Google Maps API key (or set GOOGLE_MAPS_API_KEY)")

	for _, c := range []*cobra.Command{fetchRAFCmd, fetchPlacesCmd} {
		c.Flags().StringVar(&iconRoot, "icons", ".", "Directory the icon paths are resolved against")
	}

	fetchCmd.AddCommand(fetchFAACmd)
	fetchCmd.AddCommand(fetchOurAirportsCmd)
	fetchCmd.AddCommand(fetchTaginfoCmd)
	fetchCmd.AddCommand(fetchOverpassCmd)
	fetchCmd.AddCommand(fetchWikidataCmd)
	fetchCmd.AddCommand(fetchDaylightCmd)
	fetchCmd.AddCommand(fetchRAFCmd)
	fetchCmd.AddCommand(fetchPlacesCmd)
	rootCmd.AddCommand(fetchCmd)
}
