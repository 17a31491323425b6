package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)

	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoURI)
	assert.Equal(t, "groundwater", cfg.MongoDatabase)
	assert.Equal(t, "groundwater_records", cfg.MongoCollection)

	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Zero(t, cfg.RedisDB)

	assert.Equal(t, 300, cfg.WRISPageSize)
	assert.Equal(t, 3, cfg.WRISRetryAttempts)
	assert.Equal(t, 2*time.Second, cfg.WRISRetryBaseDelay)
	assert.Equal(t, 20*time.Second, cfg.WRISTimeout)

	assert.Equal(t, "https://api.postalpincode.in", cfg.PostalBaseURL)
	assert.False(t, cfg.PostalInsecureSkipVerify)

	assert.Equal(t, 24*time.Hour, cfg.PinCacheTTL)
	assert.Equal(t, 10000, cfg.PinCacheSize)

	assert.Equal(t, 5000, cfg.IngestMaxRecords)
	assert.Equal(t, 16, cfg.IngestEnrichConcurrency)
	assert.Empty(t, cfg.IngestStates)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("MONGO_URI", "mongodb://db:27017")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("WRIS_PAGE_SIZE", "50")
	t.Setenv("WRIS_RETRY_BASE_DELAY", "500ms")
	t.Setenv("POSTAL_INSECURE_SKIP_VERIFY", "true")
	t.Setenv("INGEST_STATES", "Andhra Pradesh, Kerala ,,Tamil Nadu")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "mongodb://db:27017", cfg.MongoURI)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 50, cfg.WRISPageSize)
	assert.Equal(t, 500*time.Millisecond, cfg.WRISRetryBaseDelay)
	assert.True(t, cfg.PostalInsecureSkipVerify)
	assert.Equal(t, []string{"Andhra Pradesh", "Kerala", "Tamil Nadu"}, cfg.IngestStates)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non-numeric page size", "WRIS_PAGE_SIZE", "lots"},
		{"zero page size", "WRIS_PAGE_SIZE", "0"},
		{"negative retry attempts", "WRIS_RETRY_ATTEMPTS", "-1"},
		{"malformed timeout", "WRIS_TIMEOUT", "soon"},
		{"negative cache ttl", "PIN_CACHE_TTL", "-1h"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestParseStates(t *testing.T) {
	assert.Nil(t, ParseStates(""))
	assert.Equal(t, []string{"Kerala"}, ParseStates("Kerala"))
	assert.Equal(t, []string{"a", "b"}, ParseStates(" a , b ,"))
}
