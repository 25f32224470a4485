package research

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/sedori-labs/resale-research/pkg/client"
	"github.com/sedori-labs/resale-research/pkg/logging"
	"github.com/sedori-labs/resale-research/pkg/pricing"
	"github.com/sedori-labs/resale-research/pkg/spapi"
)

// Prometheus metrics for batch price aggregation.
var (
	batchChunksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "research_batch_chunks_total",
		Help: "Total bulk pricing chunks by outcome",
	}, []string{"outcome"})

	batchResolvedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "research_batch_resolved_total",
		Help: "Total identifiers resolved through bulk pricing",
	})
)

// Aggregator resolves prices for identifier lists through the bulk pricing
// endpoint, one fixed-size chunk at a time.
type Aggregator struct {
	api       spapi.API
	caller    *client.Caller
	chunkSize int
	pause     time.Duration
	logger    zerolog.Logger
}

// NewAggregator creates a batch price aggregator. chunkSize is clamped to
// the endpoint's batch limit; pause is the pacing delay between chunks.
func NewAggregator(api spapi.API, caller *client.Caller, chunkSize int, pause time.Duration) *Aggregator {
	if chunkSize <= 0 || chunkSize > spapi.MaxPricingBatch {
		chunkSize = spapi.MaxPricingBatch
	}
	if pause <= 0 {
		pause = 750 * time.Millisecond
	}
	return &Aggregator{
		api:       api,
		caller:    caller,
		chunkSize: chunkSize,
		pause:     pause,
		logger:    logging.NewLogger("aggregator"),
	}
}

// ResolveBatch resolves as many identifiers as bulk pricing can serve. The
// returned map only ever holds positive amounts; identifiers absent from it
// must be resolved individually by the caller. A failed chunk contributes
// no entries and is not an error.
//
// Chunks are fetched strictly one at a time with a pacing delay between
// them, which keeps the endpoint below its throttle threshold in the first
// place rather than relying on retries.
func (a *Aggregator) ResolveBatch(ctx context.Context, asins []string) map[string]pricing.PriceResult {
	results := make(map[string]pricing.PriceResult)

	for i := 0; i < len(asins); i += a.chunkSize {
		if i > 0 {
			select {
			case <-ctx.Done():
				a.logger.Warn().Int("resolved", len(results)).Msg("Batch resolution cancelled")
				return results
			case <-time.After(a.pause):
			}
		}

		end := i + a.chunkSize
		if end > len(asins) {
			end = len(asins)
		}
		chunk := asins[i:end]

		var products []spapi.PricingProduct
		ok := a.caller.Invoke(ctx, "getCompetitivePricing", func(ctx context.Context) error {
			var err error
			products, err = a.api.GetCompetitivePricing(ctx, chunk)
			return err
		})
		if !ok {
			batchChunksTotal.WithLabelValues("empty").Inc()
			a.logger.Warn().
				Int("chunk", i/a.chunkSize).
				Int("size", len(chunk)).
				Msg("Bulk pricing chunk yielded no data")
			continue
		}
		batchChunksTotal.WithLabelValues("ok").Inc()

		for j := range products {
			product := &products[j]
			if product.ASIN == "" {
				continue
			}

			result := pricing.ResolveBulk(product.Product)
			if !result.Resolved() || !result.Amount.IsPositive() {
				continue
			}

			results[product.ASIN] = result
			batchResolvedTotal.Inc()
		}

		a.logger.Debug().
			Int("chunk", i/a.chunkSize).
			Int("size", len(chunk)).
			Int("resolved", len(results)).
			Msg("Bulk pricing chunk processed")
	}

	return results
}
