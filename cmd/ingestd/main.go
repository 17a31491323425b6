// Command ingestd runs the groundwater ingestion service. By default it
// serves the operational HTTP surface and waits for POST /ingest triggers;
// with -state (or -once plus INGEST_STATES) it runs ingestion once and exits.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/couchcryptid/groundwater-etl/internal/adapter/httpadapter"
	mongoadapter "github.com/couchcryptid/groundwater-etl/internal/adapter/mongo"
	"github.com/couchcryptid/groundwater-etl/internal/adapter/postal"
	"github.com/couchcryptid/groundwater-etl/internal/adapter/wris"
	"github.com/couchcryptid/groundwater-etl/internal/config"
	"github.com/couchcryptid/groundwater-etl/internal/ingest"
	"github.com/couchcryptid/groundwater-etl/internal/observability"
	"github.com/couchcryptid/groundwater-etl/internal/pincode"
)

func main() {
	state := flag.String("state", "", "run one ingestion pass for this state and exit")
	district := flag.String("district", "", "optional district filter for -state")
	once := flag.Bool("once", false, "run one pass for each state in INGEST_STATES and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Store unreachability is the one unrecoverable setup error.
	connectCtx, cancel := context.WithTimeout(ctx, cfg.MongoConnectTimeout)
	mongoClient, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.MongoURI))
	if err == nil {
		err = mongoClient.Ping(connectCtx, readpref.Primary())
	}
	cancel()
	if err != nil {
		logger.Error("mongo connection failed", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.Error("mongo disconnect error", "error", err)
		}
	}()

	coll := mongoClient.Database(cfg.MongoDatabase).Collection(cfg.MongoCollection)
	writer := mongoadapter.NewWriter(coll, metrics, logger)
	if err := writer.EnsureIndexes(ctx); err != nil {
		logger.Error("mongo index setup failed", "error", err)
		os.Exit(1)
	}

	// The distributed cache tier degrades to misses, so an unreachable Redis
	// is logged but never blocks startup.
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, pin cache is local-only until it recovers", "error", err)
	}

	postalClient := postal.NewClient(cfg.PostalBaseURL, cfg.PostalTimeout, cfg.PostalInsecureSkipVerify, logger)
	cache := pincode.NewTieredCache(
		pincode.NewLocalCache(cfg.PinCacheSize),
		pincode.NewRedisCache(redisClient, metrics, logger),
		cfg.PinCacheTTL,
		metrics,
	)
	resolver := pincode.NewResolver(cache, postalClient, cfg.PinCacheTTL, metrics, logger)

	fetcher := wris.NewClient(cfg.WRISBaseURL, cfg.WRISTimeout, metrics, logger)

	ingestor := ingest.New(fetcher, writer, resolver, logger, metrics, ingest.Options{
		PageSize:          cfg.WRISPageSize,
		MaxRecords:        cfg.IngestMaxRecords,
		RetryAttempts:     cfg.WRISRetryAttempts,
		RetryBaseDelay:    cfg.WRISRetryBaseDelay,
		EnrichConcurrency: cfg.IngestEnrichConcurrency,
	})

	if *state != "" {
		runOnce(ctx, ingestor, logger, []string{*state}, *district)
		return
	}
	if *once {
		if len(cfg.IngestStates) == 0 {
			logger.Error("-once requires INGEST_STATES")
			os.Exit(1)
		}
		runOnce(ctx, ingestor, logger, cfg.IngestStates, "")
		return
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, ingestor, mongoReadiness{client: mongoClient}, logger)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}

// runOnce ingests each state sequentially; one state's failure never blocks
// the rest.
func runOnce(ctx context.Context, ingestor *ingest.Ingestor, logger *slog.Logger, states []string, district string) {
	for _, s := range states {
		saved, err := ingestor.Ingest(ctx, s, district)
		if err != nil {
			logger.Error("ingestion run failed", "state", s, "error", err)
			continue
		}
		logger.Info("ingestion run finished", "state", s, "saved", saved)
	}
}

// mongoReadiness reports ready once the document store answers a ping.
type mongoReadiness struct {
	client *mongo.Client
}

func (m mongoReadiness) CheckReadiness(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}
