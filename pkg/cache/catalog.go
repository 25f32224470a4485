// Package cache provides an optional Redis-backed cache for catalog
// attributes, so repeated research runs over overlapping identifier lists
// skip the catalog endpoint.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sedori-labs/resale-research/pkg/logging"
	"github.com/sedori-labs/resale-research/pkg/spapi"
)

// ErrCacheMiss indicates the item was not found in cache.
var ErrCacheMiss = errors.New("cache miss")

// Prometheus metrics for catalog cache operations.
var (
	catalogCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "research_catalog_cache_hits_total",
		Help: "Total catalog cache hits",
	})

	catalogCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "research_catalog_cache_misses_total",
		Help: "Total catalog cache misses",
	})

	catalogCacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "research_catalog_cache_errors_total",
		Help: "Total catalog cache errors by operation",
	}, []string{"operation"})
)

// DefaultTTL is how long cached catalog attributes stay fresh. Titles,
// dimensions and codes change rarely; ranks go stale but only feed a
// display column.
const DefaultTTL = 6 * time.Hour

const keyPrefix = "research:catalog:"

// Manager caches catalog items in Redis keyed by ASIN.
type Manager struct {
	redis  *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewManager creates a catalog cache. A zero ttl uses DefaultTTL.
func NewManager(redisClient *redis.Client, ttl time.Duration) *Manager {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{
		redis:  redisClient,
		ttl:    ttl,
		logger: logging.NewLogger("catalog-cache"),
	}
}

// Get retrieves cached catalog attributes for an ASIN.
// Returns ErrCacheMiss when the key is absent or expired.
func (m *Manager) Get(ctx context.Context, asin string) (*spapi.CatalogItem, error) {
	data, err := m.redis.Get(ctx, keyPrefix+asin).Bytes()
	if err != nil {
		if err == redis.Nil {
			catalogCacheMisses.Inc()
			return nil, ErrCacheMiss
		}
		catalogCacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("redis get: %w", err)
	}

	var item spapi.CatalogItem
	if err := json.Unmarshal(data, &item); err != nil {
		catalogCacheErrors.WithLabelValues("decode").Inc()
		return nil, fmt.Errorf("decode cached catalog item: %w", err)
	}

	catalogCacheHits.Inc()
	m.logger.Debug().Str("asin", asin).Msg("Catalog cache hit")
	return &item, nil
}

// Set stores catalog attributes for an ASIN with the configured TTL.
func (m *Manager) Set(ctx context.Context, asin string, item *spapi.CatalogItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		catalogCacheErrors.WithLabelValues("encode").Inc()
		return fmt.Errorf("encode catalog item: %w", err)
	}

	if err := m.redis.Set(ctx, keyPrefix+asin, data, m.ttl).Err(); err != nil {
		catalogCacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("redis set: %w", err)
	}

	m.logger.Debug().Str("asin", asin).Dur("ttl", m.ttl).Msg("Catalog item cached")
	return nil
}
