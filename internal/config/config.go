// Package config gathers the environment a workflow runs with: where the
// data tree lives, where API responses are cached, and the credentials of
// the services the fetchers talk to.
package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	defaultDataDir     = "data"
	defaultCacheDir    = "cache"
	defaultOverpassURL = "https://overpass-api.de/api/interpreter"

	// Mirror used when the main instance is overloaded.
	PrivateCoffeeOverpassURL = "https://overpass.private.coffee/api/interpreter"
)

// Config is read once per process by Load.
type Config struct {
	DataDir  string
	CacheDir string

	OverpassURL      string
	GoogleMapsAPIKey string
	RAFBearerToken   string
	PostgresURL      string

	AWSRegion            string
	DaylightDatabase     string
	DaylightOutputBucket string

	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageUseSSL    bool
}

// LoadEnvironmentVariables loads environment variables from a .env file if it exists
func LoadEnvironmentVariables(logger *zap.Logger) {
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables")
	}
}

// Load builds a Config from the process environment.
func Load() Config {
	return Config{
		DataDir:  getenv("UNIDROME_DATA_DIR", defaultDataDir),
		CacheDir: getenv("UNIDROME_CACHE_DIR", defaultCacheDir),

		OverpassURL:      getenv("OVERPASS_URL", defaultOverpassURL),
		GoogleMapsAPIKey: os.Getenv("GOOGLE_MAPS_API_KEY"),
		RAFBearerToken:   os.Getenv("RAF_BEARER_TOKEN"),
		PostgresURL:      os.Getenv("POSTGRES_URL"),

		AWSRegion:            getenv("AWS_REGION", "us-east-1"),
		DaylightDatabase:     getenv("DAYLIGHT_DATABASE", "unidrome_daylight"),
		DaylightOutputBucket: getenv("DAYLIGHT_OUTPUT_BUCKET", "unidrome-daylight-latest"),

		StorageEndpoint:  os.Getenv("STORAGE_ENDPOINT"),
		StorageAccessKey: os.Getenv("STORAGE_ACCESS_KEY"),
		StorageSecretKey: os.Getenv("STORAGE_SECRET_KEY"),
		StorageBucket:    os.Getenv("STORAGE_BUCKET"),
		StorageUseSSL:    getbool("STORAGE_USE_SSL", true),
	}
}

// Path joins elements below the data directory.
func (c Config) Path(elem ...string) string {
	return filepath.Join(append([]string{c.DataDir}, elem...)...)
}

// ContentPackPath is where KMZ layers for the map viewer are written.
func (c Config) ContentPackPath(name string) string {
	return c.Path("content-pack", "barbless-maps", "layers", name)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getbool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
