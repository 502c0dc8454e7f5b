package providers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"litscout/internal/errors"
	"litscout/internal/models"
)

// DefaultSourceTimeout is the independent per-source ceiling applied in
// SearchAll, covering a source's full retry budget (§4.4 step 1).
const DefaultSourceTimeout = 45 * time.Second

// Manager fans a query out across every enabled source concurrently (§4.4
// step 1: "search every enabled source in parallel"). It never returns an
// error itself — a source that fails contributes nothing to Papers and one
// entry to Errors.
type Manager struct {
	sources       []Source
	logger        *slog.Logger
	sourceTimeout time.Duration
}

// NewManager builds a Manager over the given sources, in the order they
// should be reported in SearchResult.Errors.
func NewManager(logger *slog.Logger, sources ...Source) *Manager {
	return &Manager{sources: sources, logger: logger, sourceTimeout: DefaultSourceTimeout}
}

// SearchResult is the fan-out outcome: every paper any enabled source
// returned, plus per-source errors for sources that failed outright.
type SearchResult struct {
	Papers []models.Paper
	Errors map[models.SourceTag]error
}

// SearchAll queries every enabled source concurrently and merges their
// results. A source's Search implementation already applies filters'
// cheap pre-filter (§4.1), so Papers here reflects that pre-filtering.
func (m *Manager) SearchAll(ctx context.Context, query string, filters *models.SearchFilters, maxResultsPerSource int) *SearchResult {
	enabled := make([]Source, 0, len(m.sources))
	for _, s := range m.sources {
		if s.Enabled() {
			enabled = append(enabled, s)
		}
	}

	result := &SearchResult{Errors: make(map[models.SourceTag]error)}
	if len(enabled) == 0 {
		m.logger.Warn("no sources enabled for search")
		return result
	}

	// A plain errgroup.Group (not WithContext) replaces the source fan-out's
	// former sync.WaitGroup: it still waits for every goroutine, but unlike
	// WithContext it never cancels siblings when one source errors, which
	// would violate the per-source failure isolation required by §4.4 step 1.
	var mu sync.Mutex
	var g errgroup.Group

	for _, s := range enabled {
		src := s
		g.Go(func() error {
			sctx, cancel := context.WithTimeout(ctx, m.sourceTimeout)
			defer cancel()

			papers, err := src.Search(sctx, query, filters, maxResultsPerSource)

			mu.Lock()
			defer mu.Unlock()
			if len(papers) > 0 {
				result.Papers = append(result.Papers, papers...)
			}
			if err != nil {
				result.Errors[src.Name()] = err
				m.logger.Warn("source search failed",
					slog.String("source", string(src.Name())),
					slog.String("error", err.Error()))
			}
			return nil
		})
	}

	_ = g.Wait()
	return result
}

// EnabledCount reports how many sources are currently enabled, used by
// the orchestrator to size its per-source result budget (§4.4 step 1).
func (m *Manager) EnabledCount() int {
	count := 0
	for _, s := range m.sources {
		if s.Enabled() {
			count++
		}
	}
	return count
}

// circuitGuardedSource wraps a Source with a per-source circuit breaker:
// once a source trips open after repeated failures, SearchAll stops
// calling it until the breaker's timeout elapses, rather than paying a
// fresh 45-second timeout on every fan-out round.
type circuitGuardedSource struct {
	inner   Source
	breaker *errors.CircuitBreaker
	logger  *slog.Logger
}

// WithCircuitBreaker wraps src so every Search call is gated by breaker.
func WithCircuitBreaker(src Source, breaker *errors.CircuitBreaker, logger *slog.Logger) Source {
	return &circuitGuardedSource{inner: src, breaker: breaker, logger: logger}
}

func (c *circuitGuardedSource) Name() models.SourceTag { return c.inner.Name() }
func (c *circuitGuardedSource) Enabled() bool          { return c.inner.Enabled() }

func (c *circuitGuardedSource) Search(ctx context.Context, query string, filters *models.SearchFilters, maxResults int) ([]models.Paper, error) {
	if !c.breaker.Allow() {
		c.logger.Warn("circuit open, skipping source", slog.String("source", string(c.inner.Name())))
		return nil, errors.NewCircuitBreakerError(string(c.inner.Name()))
	}

	start := time.Now()
	papers, err := c.inner.Search(ctx, query, filters, maxResults)
	c.breaker.Record(err == nil, time.Since(start))
	return papers, err
}
