// Package ingest drives groundwater ingestion runs: clause selection,
// retry-wrapped paginated fetching, concurrent enrichment, and bulk upserts.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/groundwater-etl/internal/domain"
	"github.com/couchcryptid/groundwater-etl/internal/observability"
)

// PageFetcher issues one bounded page query against the upstream station
// service. An empty result signals end-of-data for the clause.
type PageFetcher interface {
	QueryPage(ctx context.Context, clause string, offset, pageSize int) ([]domain.RawFeature, error)
}

// RecordWriter persists one page's normalized records idempotently.
type RecordWriter interface {
	SaveBatch(ctx context.Context, records []domain.GroundwaterRecord) (domain.SaveStats, error)
}

// Options bounds one ingestion run. Zero values fall back to the defaults
// below.
type Options struct {
	PageSize          int
	MaxRecords        int
	RetryAttempts     int
	RetryBaseDelay    time.Duration
	EnrichConcurrency int

	// Clauses produces the ordered filter variants for a region. Defaults to
	// ClauseVariants; tests substitute their own.
	Clauses func(state, district string) []string
}

func (o *Options) applyDefaults() {
	if o.PageSize <= 0 {
		o.PageSize = 300
	}
	if o.MaxRecords <= 0 {
		o.MaxRecords = 5000
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = 3
	}
	if o.RetryBaseDelay <= 0 {
		o.RetryBaseDelay = 2 * time.Second
	}
	if o.EnrichConcurrency <= 0 {
		o.EnrichConcurrency = 16
	}
	if o.Clauses == nil {
		o.Clauses = ClauseVariants
	}
}

// Ingestor orchestrates ingestion runs. It is stateless across invocations
// except through the shared PIN cache behind the resolver, so one Ingestor
// may serve concurrent runs for different regions.
type Ingestor struct {
	fetcher  PageFetcher
	writer   RecordWriter
	resolver domain.PinCodeResolver
	logger   *slog.Logger
	metrics  *observability.Metrics
	opts     Options
}

// New creates an Ingestor. resolver may be nil to disable PIN enrichment.
func New(fetcher PageFetcher, writer RecordWriter, resolver domain.PinCodeResolver, logger *slog.Logger, metrics *observability.Metrics, opts Options) *Ingestor {
	opts.applyDefaults()
	return &Ingestor{
		fetcher:  fetcher,
		writer:   writer,
		resolver: resolver,
		logger:   logger,
		metrics:  metrics,
		opts:     opts,
	}
}

// Ingest runs one ingestion pass for a state (and optional district) and
// returns the number of documents inserted or updated. Finding no data is a
// zero count, not an error; errors surface only for an empty state argument
// or context cancellation.
func (ing *Ingestor) Ingest(ctx context.Context, state, district string) (int, error) {
	state = strings.TrimSpace(state)
	if state == "" {
		return 0, fmt.Errorf("ingest: state is required")
	}
	district = strings.TrimSpace(district)

	logger := ing.logger.With("run_id", uuid.NewString()[:8], "state", state)
	if district != "" {
		logger = logger.With("district", district)
	}

	ing.metrics.RunsInFlight.Inc()
	defer ing.metrics.RunsInFlight.Dec()
	logger.Info("ingestion run started")

	saved := 0
	for _, clause := range ing.opts.Clauses(state, district) {
		clauseSaved, produced, err := ing.runClause(ctx, logger, clause)
		saved += clauseSaved
		if err != nil {
			return saved, err
		}
		if produced {
			// First productive clause is adopted; later variants are never tried.
			break
		}
	}

	logger.Info("ingestion run complete", "saved", saved)
	return saved, nil
}

// runClause paginates one clause variant until end-of-data, the safety cap,
// or exhausted retries. produced reports whether the clause yielded any
// feature, which marks the region complete regardless of how the clause run
// ended.
func (ing *Ingestor) runClause(ctx context.Context, logger *slog.Logger, clause string) (saved int, produced bool, err error) {
	offset := 0
	processed := 0

	for {
		// Shutdown is honored by not starting new page fetches.
		if ctx.Err() != nil {
			return saved, produced, ctx.Err()
		}

		// The last page before the safety cap is clamped so a run never
		// processes more than the configured maximum.
		pageSize := ing.opts.PageSize
		if remaining := ing.opts.MaxRecords - processed; remaining < pageSize {
			pageSize = remaining
		}

		features, err := ing.fetchPageWithRetry(ctx, logger, clause, offset, pageSize)
		if err != nil {
			if ctx.Err() != nil {
				return saved, produced, ctx.Err()
			}
			logger.Error("page retries exhausted, abandoning clause",
				"clause", clause, "offset", offset, "error", err)
			return saved, produced, nil
		}
		if len(features) == 0 {
			return saved, produced, nil
		}
		produced = true

		records := ing.normalizePage(ctx, logger, features)
		if len(records) > 0 {
			stats, err := ing.writer.SaveBatch(ctx, records)
			if err != nil {
				// Whole-batch transport failure aborts this page only.
				logger.Error("batch write failed, skipping page", "offset", offset, "error", err)
			} else {
				saved += int(stats.Total())
			}
		}

		processed += len(features)
		if len(features) < pageSize {
			return saved, produced, nil
		}
		if processed >= ing.opts.MaxRecords {
			logger.Warn("safety cap reached, stopping run", "processed", processed, "cap", ing.opts.MaxRecords)
			return saved, produced, nil
		}
		offset += pageSize
	}
}

// fetchPageWithRetry wraps one page fetch with bounded retries. The backoff
// delay grows linearly: attempt × base.
func (ing *Ingestor) fetchPageWithRetry(ctx context.Context, logger *slog.Logger, clause string, offset, pageSize int) ([]domain.RawFeature, error) {
	var lastErr error
	for attempt := 1; attempt <= ing.opts.RetryAttempts; attempt++ {
		features, err := ing.fetcher.QueryPage(ctx, clause, offset, pageSize)
		if err == nil {
			return features, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, err
		}

		ing.metrics.PageRetries.Inc()
		logger.Warn("page fetch failed",
			"attempt", attempt, "of", ing.opts.RetryAttempts, "offset", offset, "error", err)
		if !sleepWithContext(ctx, time.Duration(attempt)*ing.opts.RetryBaseDelay) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// normalizePage normalizes and enriches one page's features with bounded
// concurrency, joining before the page's batch write. Rejected features are
// counted and dropped, never fatal.
func (ing *Ingestor) normalizePage(ctx context.Context, logger *slog.Logger, features []domain.RawFeature) []domain.GroundwaterRecord {
	results := make([]*domain.GroundwaterRecord, len(features))

	g := new(errgroup.Group)
	g.SetLimit(ing.opts.EnrichConcurrency)
	for i, f := range features {
		g.Go(func() error {
			rec, err := domain.NormalizeFeature(ctx, f, ing.resolver)
			if err != nil {
				ing.metrics.RecordsDropped.Inc()
				logger.Debug("feature dropped", "error", err)
				return nil
			}
			results[i] = &rec
			return nil
		})
	}
	_ = g.Wait()

	records := make([]domain.GroundwaterRecord, 0, len(features))
	for _, r := range results {
		if r != nil {
			records = append(records, *r)
		}
	}
	return records
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-clock.After(d):
		return true
	}
}
