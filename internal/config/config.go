package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	MongoURI            string
	MongoDatabase       string
	MongoCollection     string
	MongoConnectTimeout time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Upstream station-query service.
	WRISBaseURL        string
	WRISTimeout        time.Duration
	WRISPageSize       int
	WRISRetryAttempts  int
	WRISRetryBaseDelay time.Duration

	// Postal lookup service.
	PostalBaseURL string
	PostalTimeout time.Duration
	// PostalInsecureSkipVerify disables TLS certificate verification for the
	// postal lookup client. Explicit opt-in only; never derived from the
	// environment name.
	PostalInsecureSkipVerify bool

	PinCacheTTL  time.Duration
	PinCacheSize int

	IngestMaxRecords        int
	IngestEnrichConcurrency int
	IngestStates            []string
}

// Load reads configuration from the environment, applying defaults where
// unset. A .env file in the working directory is merged in first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	mongoConnectTimeout, err := parseDuration("MONGO_CONNECT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	wrisTimeout, err := parseDuration("WRIS_TIMEOUT", 20*time.Second)
	if err != nil {
		return nil, err
	}
	wrisRetryBaseDelay, err := parseDuration("WRIS_RETRY_BASE_DELAY", 2*time.Second)
	if err != nil {
		return nil, err
	}
	postalTimeout, err := parseDuration("POSTAL_TIMEOUT", 8*time.Second)
	if err != nil {
		return nil, err
	}
	pinCacheTTL, err := parseDuration("PIN_CACHE_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}

	redisDB, err := parseInt("REDIS_DB", 0, 0)
	if err != nil {
		return nil, err
	}
	pageSize, err := parseInt("WRIS_PAGE_SIZE", 300, 1)
	if err != nil {
		return nil, err
	}
	retryAttempts, err := parseInt("WRIS_RETRY_ATTEMPTS", 3, 1)
	if err != nil {
		return nil, err
	}
	pinCacheSize, err := parseInt("PIN_CACHE_SIZE", 10000, 1)
	if err != nil {
		return nil, err
	}
	maxRecords, err := parseInt("INGEST_MAX_RECORDS", 5000, 1)
	if err != nil {
		return nil, err
	}
	enrichConcurrency, err := parseInt("INGEST_ENRICH_CONCURRENCY", 16, 1)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		MongoURI:            envOrDefault("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:       envOrDefault("MONGO_DB", "groundwater"),
		MongoCollection:     envOrDefault("MONGO_COLLECTION", "groundwater_records"),
		MongoConnectTimeout: mongoConnectTimeout,

		RedisAddr:     envOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,

		WRISBaseURL:        envOrDefault("WRIS_BASE_URL", "https://arc.indiawris.gov.in/server/rest/services/NWIC/Groundwater_Stations/MapServer/0"),
		WRISTimeout:        wrisTimeout,
		WRISPageSize:       pageSize,
		WRISRetryAttempts:  retryAttempts,
		WRISRetryBaseDelay: wrisRetryBaseDelay,

		PostalBaseURL:            envOrDefault("POSTAL_BASE_URL", "https://api.postalpincode.in"),
		PostalTimeout:            postalTimeout,
		PostalInsecureSkipVerify: os.Getenv("POSTAL_INSECURE_SKIP_VERIFY") == "true",

		PinCacheTTL:  pinCacheTTL,
		PinCacheSize: pinCacheSize,

		IngestMaxRecords:        maxRecords,
		IngestEnrichConcurrency: enrichConcurrency,
		IngestStates:            ParseStates(os.Getenv("INGEST_STATES")),
	}

	if cfg.WRISBaseURL == "" {
		return nil, fmt.Errorf("WRIS_BASE_URL is required")
	}
	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("MONGO_URI is required")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseInt(key string, def, min int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < min {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

// ParseStates splits a comma-separated state list, trimming blanks.
func ParseStates(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
