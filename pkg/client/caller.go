// Package client provides the throttle-aware caller that wraps every remote
// operation the research engine makes.
//
// The caller retries only rate-limit rejections, backing off linearly with
// jitter up to a fixed attempt cap. Every other failure is swallowed and
// reported as an empty result: consumers treat "no data for this attempt" as
// a degraded value, never as a reason to stop the run.
package client

import (
	"context"
	"math/rand"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/sedori-labs/resale-research/pkg/diag"
	"github.com/sedori-labs/resale-research/pkg/logging"
	"github.com/sedori-labs/resale-research/pkg/spapi"
)

// Prometheus metrics for remote call handling.
var (
	callRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "research_call_retries_total",
		Help: "Total throttle retries by operation",
	}, []string{"operation"})

	callBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "research_call_backoff_seconds",
		Help:    "Backoff duration before throttle retries by operation",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30},
	}, []string{"operation"})

	callExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "research_call_retry_exhausted_total",
		Help: "Total calls that exhausted their throttle retries by operation",
	}, []string{"operation"})

	callSwallowedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "research_call_failures_total",
		Help: "Total non-throttle failures swallowed into empty results by operation",
	}, []string{"operation"})
)

// Config holds the caller configuration.
type Config struct {
	// MaxAttempts caps the number of attempts for a throttled call,
	// including the first one.
	MaxAttempts int

	// BaseDelay scales the linear backoff: the wait before attempt n+1 is
	// BaseDelay*n plus jitter.
	BaseDelay time.Duration
}

// DefaultConfig returns the caller defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		BaseDelay:   2 * time.Second,
	}
}

// Caller wraps remote operations with throttle retries and failure
// swallowing. Retries and terminal failures are recorded in the run journal.
type Caller struct {
	config  Config
	journal *diag.Journal
	logger  zerolog.Logger

	// jitter returns the random extra wait added to each backoff,
	// uniform in [0.5s, 1.5s). Overridable in tests.
	jitter func() time.Duration
}

// New creates a caller writing its diagnostics to journal.
func New(cfg Config, journal *diag.Journal) *Caller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultConfig().BaseDelay
	}
	return &Caller{
		config:  cfg,
		journal: journal,
		logger:  logging.NewLogger("caller"),
		jitter: func() time.Duration {
			return 500*time.Millisecond + time.Duration(rand.Int63n(int64(time.Second)))
		},
	}
}

// SetJitter overrides the backoff jitter source (for testing).
func (c *Caller) SetJitter(fn func() time.Duration) {
	c.jitter = fn
}

// WithRetryLimit returns a caller sharing this one's journal and delays but
// capped at n attempts.
func (c *Caller) WithRetryLimit(n int) *Caller {
	clone := *c
	clone.config.MaxAttempts = n
	return &clone
}

// Invoke runs fn, retrying throttled failures. It returns true when fn
// succeeded, false when the call degraded to an empty result. It never
// returns an error: consumers must treat false as "no data", not as fatal.
func (c *Caller) Invoke(ctx context.Context, operation string, fn func(context.Context) error) bool {
	for attempt := 1; attempt <= c.config.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				c.logger.Info().
					Str("operation", operation).
					Int("attempt", attempt).
					Msg("Call succeeded after throttle retry")
			}
			return true
		}

		if !spapi.IsThrottled(err) {
			c.logger.Warn().Err(err).Str("operation", operation).Msg("Call failed")
			c.journal.Appendf("%s failed: %v", operation, err)
			callSwallowedTotal.WithLabelValues(operation).Inc()
			return false
		}

		if attempt >= c.config.MaxAttempts {
			break
		}

		backoff := time.Duration(attempt)*c.config.BaseDelay + c.jitter()
		callRetriesTotal.WithLabelValues(operation).Inc()
		callBackoffSeconds.WithLabelValues(operation).Observe(backoff.Seconds())

		c.logger.Warn().
			Str("operation", operation).
			Int("attempt", attempt).
			Dur("backoff", backoff).
			Msg("Call throttled, backing off")
		c.journal.Appendf("%s throttled, waiting %.1fs before retry (attempt %d/%d)",
			operation, backoff.Seconds(), attempt, c.config.MaxAttempts)

		select {
		case <-ctx.Done():
			c.journal.Appendf("%s aborted during backoff: %v", operation, ctx.Err())
			return false
		case <-time.After(backoff):
		}
	}

	callExhaustedTotal.WithLabelValues(operation).Inc()
	c.logger.Warn().
		Str("operation", operation).
		Int("max_attempts", c.config.MaxAttempts).
		Msg("Throttle retries exhausted")
	c.journal.Appendf("%s still throttled after %d attempts, giving up", operation, c.config.MaxAttempts)

	return false
}
