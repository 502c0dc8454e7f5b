package providers

import (
	"log/slog"
	"time"

	"litscout/internal/config"
	"litscout/internal/errors"
	"litscout/internal/providers/arxiv"
	"litscout/internal/providers/crossref"
	"litscout/internal/providers/openalex"
	"litscout/internal/providers/scholar"
)

// BuildManager constructs the fan-out Manager over all four federated
// sources from the loaded configuration. Each adapter is always built —
// Enabled() controls whether Manager.SearchAll actually calls it — so
// re-enabling a source at runtime never needs a restart-time code path.
// When cfg.Circuit.Enabled, every source is additionally wrapped with its
// own circuit breaker so a source repeatedly failing mid-round trips open
// and stops being called until it cools down, instead of costing every
// fan-out round a fresh per-source timeout.
func BuildManager(cfg *config.Config, logger *slog.Logger) *Manager {
	perSource, err := time.ParseDuration(cfg.Sources.PerSourceTimeout)
	if err != nil {
		perSource = 45 * time.Second
	}

	timeoutFor := func(raw string) time.Duration {
		if d, err := time.ParseDuration(raw); err == nil {
			return d
		}
		return perSource
	}

	scholarSrc := scholar.NewProvider(
		"", timeoutFor(cfg.Sources.Scholar.Timeout),
		cfg.Sources.Scholar.Enabled, cfg.Sources.Scholar.APIKey, logger,
	)
	crossrefSrc := crossref.NewProvider(
		cfg.Sources.Crossref.BaseURL, timeoutFor(cfg.Sources.Crossref.Timeout),
		cfg.Sources.Crossref.Enabled, cfg.ResearchEmail, logger,
	)
	openalexSrc := openalex.NewProvider(
		cfg.Sources.OpenAlex.BaseURL, timeoutFor(cfg.Sources.OpenAlex.Timeout),
		cfg.Sources.OpenAlex.Enabled, cfg.ResearchEmail, logger,
	)
	arxivSrc := arxiv.NewProvider(
		cfg.Sources.Arxiv.BaseURL, timeoutFor(cfg.Sources.Arxiv.Timeout),
		cfg.Sources.Arxiv.Enabled, logger,
	)

	sources := []Source{scholarSrc, crossrefSrc, openalexSrc, arxivSrc}
	if cfg.Circuit.Enabled {
		breakers := errors.NewCircuitBreakerManager(logger)
		breakerCfg := circuitBreakerConfig(cfg)
		for i, src := range sources {
			sources[i] = WithCircuitBreaker(src, breakers.GetOrCreate(string(src.Name()), breakerCfg), logger)
		}
	}

	return NewManager(logger, sources...)
}

// circuitBreakerConfig translates cfg.Circuit's duration strings into a
// errors.CircuitBreakerConfig, falling back to fixed defaults on any
// unparseable field rather than failing startup over a breaker setting.
func circuitBreakerConfig(cfg *config.Config) errors.CircuitBreakerConfig {
	timeout, err := time.ParseDuration(cfg.Circuit.Timeout)
	if err != nil {
		timeout = 30 * time.Second
	}
	slidingWindow, err := time.ParseDuration(cfg.Circuit.SlidingWindow)
	if err != nil {
		slidingWindow = 60 * time.Second
	}

	return errors.CircuitBreakerConfig{
		FailureThreshold: cfg.Circuit.FailureThreshold,
		SuccessThreshold: cfg.Circuit.SuccessThreshold,
		Timeout:          timeout,
		MaxRequests:      cfg.Circuit.MaxRequests,
		MinRequestCount:  cfg.Circuit.MinRequestCount,
		SlidingWindow:    slidingWindow,
	}
}
