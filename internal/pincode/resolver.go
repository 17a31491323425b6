package pincode

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/couchcryptid/groundwater-etl/internal/adapter/postal"
	"github.com/couchcryptid/groundwater-etl/internal/observability"
)

var pinRe = regexp.MustCompile(`^\d{6}$`)

// LookupClient queries the external postal service by place name.
type LookupClient interface {
	Lookup(ctx context.Context, place string) ([]postal.PostOffice, error)
}

// Resolver implements domain.PinCodeResolver: cache lookup first, then the
// external service by village name, then by district name. Lookup failures
// degrade to absent; unresolved keys are never cached, so a miss is always
// retried on the next record.
type Resolver struct {
	cache   Cache
	client  LookupClient
	ttl     time.Duration
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewResolver creates a Resolver writing resolved codes back through cache
// with the given TTL.
func NewResolver(cache Cache, client LookupClient, ttl time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Resolver {
	return &Resolver{
		cache:   cache,
		client:  client,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger,
	}
}

// Resolve returns the PIN code for a village, preferring a candidate whose
// district matches when one exists. A blank village resolves to absent with
// no I/O.
func (r *Resolver) Resolve(ctx context.Context, village, district string) (string, bool) {
	village = strings.TrimSpace(village)
	if village == "" {
		return "", false
	}
	district = strings.TrimSpace(district)

	key := CacheKey(village, district)
	if pin, ok := r.cache.Get(ctx, key); ok {
		return pin, true
	}

	if pin, ok := r.lookup(ctx, village, district); ok {
		r.metrics.PinLookups.WithLabelValues("resolved").Inc()
		r.cache.Set(ctx, key, pin, r.ttl)
		return pin, true
	}

	// The village query found nothing usable; retry keyed by district name.
	if district != "" {
		if pin, ok := r.lookup(ctx, district, district); ok {
			r.metrics.PinLookups.WithLabelValues("fallback").Inc()
			r.cache.Set(ctx, key, pin, r.ttl)
			return pin, true
		}
	}

	r.metrics.PinLookups.WithLabelValues("miss").Inc()
	return "", false
}

// lookup runs one external query and selects a candidate: the first office,
// overridden by any office whose district matches case-insensitively.
func (r *Resolver) lookup(ctx context.Context, place, district string) (string, bool) {
	offices, err := r.client.Lookup(ctx, place)
	if err != nil {
		r.metrics.PinLookups.WithLabelValues("error").Inc()
		r.logger.Warn("postal lookup failed", "place", place, "district", district, "error", err)
		return "", false
	}
	if len(offices) == 0 {
		return "", false
	}

	selected := offices[0]
	if district != "" {
		for _, o := range offices {
			if strings.EqualFold(o.District, district) {
				selected = o
				break
			}
		}
	}

	if !pinRe.MatchString(selected.PinCode) {
		r.logger.Debug("postal lookup returned malformed pin", "place", place, "pin", selected.PinCode)
		return "", false
	}
	return selected.PinCode, true
}

// CacheKey normalizes a (village, district) pair into the cache key
// "<village>-<district>", lowercased and trimmed.
func CacheKey(village, district string) string {
	return fmt.Sprintf("%s-%s",
		strings.ToLower(strings.TrimSpace(village)),
		strings.ToLower(strings.TrimSpace(district)))
}
