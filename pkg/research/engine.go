// Package research runs the resale research flow: bulk price aggregation,
// per-item individual fallback and record assembly, strictly in input order.
package research

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/sedori-labs/resale-research/pkg/cache"
	"github.com/sedori-labs/resale-research/pkg/client"
	"github.com/sedori-labs/resale-research/pkg/diag"
	"github.com/sedori-labs/resale-research/pkg/logging"
	"github.com/sedori-labs/resale-research/pkg/spapi"
)

// Prometheus metrics for engine runs.
var (
	itemsProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "research_items_processed_total",
		Help: "Total identifiers processed",
	})

	pricesResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "research_prices_resolved_total",
		Help: "Total price resolutions by source tier",
	}, []string{"tier"})
)

// Config holds the engine configuration.
type Config struct {
	// Caller configures throttle retry behavior for pricing and fee calls.
	Caller client.Config

	// CatalogAttempts caps throttle retries for catalog reads.
	CatalogAttempts int

	// ChunkSize is the bulk pricing chunk size, capped at the endpoint limit.
	ChunkSize int

	// ChunkPause is the pacing delay between bulk pricing chunks.
	ChunkPause time.Duration
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Caller:          client.DefaultConfig(),
		CatalogAttempts: 3,
		ChunkSize:       spapi.MaxPricingBatch,
		ChunkPause:      750 * time.Millisecond,
	}
}

// Engine drives one research run over a list of identifiers. Processing is
// strictly sequential; results come back in submission order so the
// consumer can render them incrementally.
type Engine struct {
	aggregator *Aggregator
	assembler  *Assembler
	journal    *diag.Journal
	session    *Session
	logger     zerolog.Logger
}

// New creates an engine. The session must be authenticated; catalog may be
// nil to run without the catalog cache.
func New(api spapi.API, session *Session, catalog *cache.Manager, cfg Config) (*Engine, error) {
	if api == nil {
		return nil, fmt.Errorf("marketplace api is required")
	}
	if !session.Authenticated() {
		return nil, fmt.Errorf("authenticated session is required")
	}
	if cfg.CatalogAttempts <= 0 {
		cfg.CatalogAttempts = DefaultConfig().CatalogAttempts
	}

	journal := diag.NewJournal()
	caller := client.New(cfg.Caller, journal)
	catalogCaller := caller.WithRetryLimit(cfg.CatalogAttempts)

	return &Engine{
		aggregator: NewAggregator(api, caller, cfg.ChunkSize, cfg.ChunkPause),
		assembler:  NewAssembler(api, caller, catalogCaller, catalog, journal),
		journal:    journal,
		session:    session,
		logger:     logging.NewLogger("engine"),
	}, nil
}

// Run processes the identifiers and returns one record per identifier in
// submission order, plus the run's diagnostic journal. An empty input is a
// no-op. Run never fails: every per-item problem degrades to default field
// values and is visible in the journal.
func (e *Engine) Run(ctx context.Context, asins []string) ([]ItemDetailRecord, []string) {
	if len(asins) == 0 {
		return nil, e.journal.Entries()
	}

	e.logger.Info().
		Int("items", len(asins)).
		Str("user", e.session.User()).
		Msg("Research run started")
	start := time.Now()

	batch := e.aggregator.ResolveBatch(ctx, asins)

	records := make([]ItemDetailRecord, 0, len(asins))
	for _, asin := range asins {
		record := e.assembler.BuildRecord(ctx, asin, batch)
		records = append(records, record)

		itemsProcessedTotal.Inc()
		pricesResolvedTotal.WithLabelValues(string(record.Tier)).Inc()
	}

	e.logger.Info().
		Int("items", len(records)).
		Int("batch_resolved", len(batch)).
		Dur("duration", time.Since(start)).
		Msg("Research run complete")

	return records, e.journal.Entries()
}

// Journal exposes the run journal for callers that stream diagnostics
// while a run is in progress.
func (e *Engine) Journal() *diag.Journal {
	return e.journal
}
