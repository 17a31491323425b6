//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmongodb "github.com/testcontainers/testcontainers-go/modules/mongodb"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoadapter "github.com/couchcryptid/groundwater-etl/internal/adapter/mongo"
	"github.com/couchcryptid/groundwater-etl/internal/adapter/postal"
	"github.com/couchcryptid/groundwater-etl/internal/adapter/wris"
	"github.com/couchcryptid/groundwater-etl/internal/ingest"
	"github.com/couchcryptid/groundwater-etl/internal/observability"
	"github.com/couchcryptid/groundwater-etl/internal/pincode"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// stationFeatures is a small upstream payload: four complete stations across
// two villages, one reading with no station code at all, and one station with
// no water level reading.
func stationFeatures() []map[string]any {
	date := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	mk := func(id, village string, level float64) map[string]any {
		return map[string]any{
			"attributes": map[string]any{
				"state_name":       "Andhra Pradesh",
				"district_name":    "Guntur",
				"village_name":     village,
				"station_code":     id,
				"water_level":      level,
				"measurement_date": date,
			},
			"geometry": map[string]any{"x": 80.45, "y": 16.31},
		}
	}
	unnamed := mk("", "Beta", 2.8)
	delete(unnamed["attributes"].(map[string]any), "station_code")
	broken := mk("GW005", "Alpha", 0)
	delete(broken["attributes"].(map[string]any), "water_level")
	return []map[string]any{
		mk("GW001", "Alpha", 4.2),
		mk("GW002", "Alpha", 5.1),
		mk("GW003", "Beta", 3.7),
		mk("GW004", "Beta", 6.9),
		unnamed,
		broken,
	}
}

// startFakeWRIS serves paginated feature pages for the Andhra Pradesh clause
// and empty pages for everything else.
func startFakeWRIS(t *testing.T, features []map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		where := r.URL.Query().Get("where")
		if !strings.Contains(where, "state_name='Andhra Pradesh'") && where != "1=1" {
			_ = json.NewEncoder(w).Encode(map[string]any{"features": []any{}})
			return
		}
		offset, _ := strconv.Atoi(r.URL.Query().Get("resultOffset"))
		count, _ := strconv.Atoi(r.URL.Query().Get("resultRecordCount"))
		end := offset + count
		if offset > len(features) {
			offset = len(features)
		}
		if end > len(features) {
			end = len(features)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"features": features[offset:end]})
	}))
	t.Cleanup(srv.Close)
	return srv
}

// startFakePostal resolves known villages to district-matching post offices
// and counts how many lookups reach it.
func startFakePostal(t *testing.T, calls *atomic.Int64) *httptest.Server {
	t.Helper()
	pins := map[string]string{"Alpha": "522001", "Beta": "522002"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		place := strings.TrimPrefix(r.URL.Path, "/postoffice/")
		pin, ok := pins[place]
		if !ok {
			_ = json.NewEncoder(w).Encode([]map[string]any{{"Status": "Error"}})
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{{
			"Status": "Success",
			"PostOffice": []map[string]string{
				{"Name": place, "Pincode": pin, "District": "Guntur", "State": "Andhra Pradesh"},
			},
		}})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func startMongo(ctx context.Context, t *testing.T) *mongo.Collection {
	t.Helper()
	ctr, err := tcmongodb.Run(ctx, "mongo:7")
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "start mongodb container")

	uri, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	return client.Database("groundwater_test").Collection("groundwater_records")
}

func startRedis(ctx context.Context, t *testing.T) *goredis.Client {
	t.Helper()
	ctr, err := tcredis.Run(ctx, "redis:7-alpine")
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err, "start redis container")

	connStr, err := ctr.ConnectionString(ctx)
	require.NoError(t, err)
	opts, err := goredis.ParseURL(connStr)
	require.NoError(t, err)

	client := goredis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// TestIngestPipelineEndToEnd runs a full ingestion against real MongoDB and
// Redis with fake upstream services, then runs it again to verify the upsert
// key keeps repeated ingestion from duplicating documents.
func TestIngestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	coll := startMongo(ctx, t)
	redisClient := startRedis(ctx, t)

	var postalCalls atomic.Int64
	wrisSrv := startFakeWRIS(t, stationFeatures())
	postalSrv := startFakePostal(t, &postalCalls)

	metrics := observability.NewMetricsForTesting()
	logger := discardLogger()

	writer := mongoadapter.NewWriter(coll, metrics, logger)
	require.NoError(t, writer.EnsureIndexes(ctx))
	// Second call must be a no-op, not a conflict.
	require.NoError(t, writer.EnsureIndexes(ctx))

	cache := pincode.NewTieredCache(
		pincode.NewLocalCache(100),
		pincode.NewRedisCache(redisClient, metrics, logger),
		time.Hour,
		metrics,
	)
	resolver := pincode.NewResolver(cache,
		postal.NewClient(postalSrv.URL, 5*time.Second, false, logger),
		time.Hour, metrics, logger)

	fetcher := wris.NewClient(wrisSrv.URL, 5*time.Second, metrics, logger)
	ing := ingest.New(fetcher, writer, resolver, logger, metrics, ingest.Options{
		PageSize:      2,
		RetryAttempts: 1,
	})

	// First run: four stations plus the station-less reading land, the
	// reading without a water level is dropped.
	saved, err := ing.Ingest(ctx, "Andhra Pradesh", "")
	require.NoError(t, err)
	assert.Equal(t, 5, saved)

	count, err := coll.CountDocuments(ctx, bson.D{})
	require.NoError(t, err)
	assert.EqualValues(t, 5, count)

	// Two villages, one external lookup each.
	firstRunCalls := postalCalls.Load()
	assert.EqualValues(t, 2, firstRunCalls)

	// Stored documents carry the enriched PIN and store-managed timestamps.
	var doc bson.M
	require.NoError(t, coll.FindOne(ctx, bson.D{
		{Key: "location.stationId", Value: "GW001"},
	}).Decode(&doc))
	loc, ok := doc["location"].(bson.M)
	require.True(t, ok)
	assert.Equal(t, "522001", loc["pinCode"])
	assert.Equal(t, "Andhra Pradesh", loc["state"])
	assert.Equal(t, "Guntur", loc["district"])
	assert.Contains(t, doc, "createdAt")
	assert.Contains(t, doc, "updatedAt")

	// The distributed cache tier holds the resolved PINs.
	pin, err := redisClient.Get(ctx, "pin:"+pincode.CacheKey("Alpha", "Guntur")).Result()
	require.NoError(t, err)
	assert.Equal(t, "522001", pin)

	// Second run against the unchanged upstream: same count, no new
	// documents, and no further external PIN lookups.
	saved, err = ing.Ingest(ctx, "Andhra Pradesh", "")
	require.NoError(t, err)
	assert.Equal(t, 5, saved)

	count, err = coll.CountDocuments(ctx, bson.D{})
	require.NoError(t, err)
	assert.EqualValues(t, 5, count)
	assert.Equal(t, firstRunCalls, postalCalls.Load())

	// The station-less reading updated in place instead of duplicating:
	// exactly one document with an empty stationId survives both runs.
	count, err = coll.CountDocuments(ctx, bson.D{{Key: "location.stationId", Value: ""}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

// TestIngestPipelineUnknownRegion verifies that a region the upstream has no
// data for walks every clause variant and ends with nothing stored.
func TestIngestPipelineUnknownRegion(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	coll := startMongo(ctx, t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"features": []any{}})
	}))
	t.Cleanup(srv.Close)

	metrics := observability.NewMetricsForTesting()
	logger := discardLogger()
	writer := mongoadapter.NewWriter(coll, metrics, logger)
	require.NoError(t, writer.EnsureIndexes(ctx))

	ing := ingest.New(
		wris.NewClient(srv.URL, 5*time.Second, metrics, logger),
		writer, nil, logger, metrics,
		ingest.Options{RetryAttempts: 1},
	)

	saved, err := ing.Ingest(ctx, "Atlantis", "")
	require.NoError(t, err)
	assert.Zero(t, saved)

	count, err := coll.CountDocuments(ctx, bson.D{})
	require.NoError(t, err)
	assert.Zero(t, count)
}
