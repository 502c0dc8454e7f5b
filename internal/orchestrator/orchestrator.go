// Package orchestrator implements the QA loop / federation orchestrator
// (C6, §4.4): parallel source fan-out, dedup, cheap pre-ranking, and
// multi-round LLM validation until a relevance threshold or round budget
// is met.
package orchestrator

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/semaphore"

	"litscout/internal/dedup"
	"litscout/internal/models"
	"litscout/internal/providers"
	"litscout/internal/relevance"
)

const (
	validationThreshold = 0.5
	maxQARounds         = 3
	overfetchBuffer     = 5
	recencyYear         = 2020

	// validationConcurrency is the QA loop's fixed semaphore size (§5):
	// up to 3 papers may be in flight to the relevance validator at once.
	// Actual call throughput still tops out at one per perSlotPaceDelay,
	// since the validator's own rate limiter is shared across all 3 slots.
	validationConcurrency = 3
)

// SourceStats records how a federated search round went per source.
type SourceStats struct {
	Attempted int
	Succeeded int
	Failed    int
}

// Result is the outcome of a full Search call: the final selected papers
// plus bookkeeping the pipeline controller surfaces to callers.
type Result struct {
	Papers      []models.Paper
	SourceStats SourceStats
	Rounds      int
}

// Orchestrator ties the source manager, deduplicator, and relevance
// validator together into the §4.4 algorithm.
type Orchestrator struct {
	manager   *providers.Manager
	validator *relevance.Validator
	logger    *slog.Logger
}

// New builds an Orchestrator.
func New(manager *providers.Manager, validator *relevance.Validator, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{manager: manager, validator: validator, logger: logger}
}

// candidate tracks a paper's state through the QA loop: pre-ranked →
// in-validation → validated (high | low) → selected | dropped.
type candidate struct {
	paper     models.Paper
	priority  float64
	validated bool
	inFlight  bool
}

// Search runs the full federation/validation algorithm and returns at
// most maxResults papers, validated and ranked.
func (o *Orchestrator) Search(ctx context.Context, query string, filters *models.SearchFilters, maxResults int) *Result {
	enabledCount := o.enabledSourceCount()
	perSource := maxResultsPerSource(maxResults, enabledCount)

	searchResult := o.manager.SearchAll(ctx, query, filters, perSource)

	stats := SourceStats{
		Attempted: enabledCount,
		Failed:    len(searchResult.Errors),
	}
	stats.Succeeded = stats.Attempted - stats.Failed

	if len(searchResult.Papers) == 0 {
		return &Result{Papers: []models.Paper{}, SourceStats: stats}
	}

	deduped := dedup.Dedupe(searchResult.Papers)

	candidates := preRank(deduped, query, maxResults)

	rounds := o.runQARounds(ctx, candidates, query, maxResults)

	selected := finalSelection(candidates, maxResults)

	return &Result{Papers: selected, SourceStats: stats, Rounds: rounds}
}

func (o *Orchestrator) enabledSourceCount() int {
	return o.manager.EnabledCount()
}

func maxResultsPerSource(maxResults, enabledCount int) int {
	if enabledCount == 0 {
		return maxResults
	}
	per := maxResults / enabledCount
	if per < 1 {
		per = 1
	}
	return per + overfetchBuffer
}

// preRank scores every paper with the cheap (no-LLM) priority formula
// and returns the top maxResults as the validation candidate set, in
// descending priority order.
func preRank(papers []models.Paper, query string, maxResults int) []*candidate {
	queryTokens := tokenizeQuery(query)

	candidates := make([]*candidate, 0, len(papers))
	for _, p := range papers {
		candidates = append(candidates, &candidate{
			paper:    p,
			priority: priorityScore(&p, queryTokens),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].priority > candidates[j].priority
	})

	if len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}
	return candidates
}

func priorityScore(p *models.Paper, queryTokens map[string]struct{}) float64 {
	citationWeight := min(float64(p.CitationCount)/1000.0, 1.0) * 0.3

	titleTokens := tokenizeQuery(p.Title)
	overlap := 0
	for t := range queryTokens {
		if _, ok := titleTokens[t]; ok {
			overlap++
		}
	}
	denom := len(queryTokens)
	if denom == 0 {
		denom = 1
	}
	titleOverlap := float64(overlap) / float64(denom) * 0.5

	recencyBonus := 0.0
	if p.Year() >= recencyYear {
		recencyBonus = 0.2
	}

	return citationWeight + titleOverlap + recencyBonus
}

func tokenizeQuery(s string) map[string]struct{} {
	tokens := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, ".,;:!?()[]{}\"'")
		if w != "" {
			tokens[w] = struct{}{}
		}
	}
	return tokens
}

// runQARounds validates candidates in rounds until high-relevance count
// reaches target, candidates run out, or the round cap is hit.
func (o *Orchestrator) runQARounds(ctx context.Context, candidates []*candidate, query string, target int) int {
	round := 0
	for round < maxQARounds {
		needed := target - countHighRelevance(candidates)
		if needed <= 0 {
			break
		}

		batchSize := needed * 2
		if round > 0 {
			batchSize = needed + overfetchBuffer
		}

		batch := nextUnvalidated(candidates, batchSize)
		if len(batch) == 0 {
			break
		}

		round++
		o.validateBatch(ctx, batch, query)
	}
	return round
}

// validateBatch runs the batch's validations under a semaphore of size
// validationConcurrency (§5's "bounded concurrent" QA-loop model): each
// candidate is validated on its own goroutine, gated only by the semaphore
// and the validator's shared rate limiter, and mutates only its own
// candidate so no further locking is needed.
func (o *Orchestrator) validateBatch(ctx context.Context, batch []*candidate, query string) {
	sem := semaphore.NewWeighted(validationConcurrency)
	var wg sync.WaitGroup

	for _, c := range batch {
		c.inFlight = true

		if err := sem.Acquire(ctx, 1); err != nil {
			c.inFlight = false
			continue
		}

		wg.Add(1)
		go func(c *candidate) {
			defer wg.Done()
			defer sem.Release(1)

			score := o.validator.Validate(ctx, &c.paper, query, "")
			c.paper.RelevanceScore = score.RelevanceScore
			c.paper.ConfidenceScore = score.ConfidenceScore
			c.paper.Reasoning = score.Reasoning
			c.paper.KeyMatches = score.KeyMatches
			c.paper.Concerns = score.Concerns
			c.validated = true
			c.inFlight = false
		}(c)
	}

	wg.Wait()
}

func countHighRelevance(candidates []*candidate) int {
	count := 0
	for _, c := range candidates {
		if c.validated && c.paper.RelevanceScore >= validationThreshold {
			count++
		}
	}
	return count
}

func nextUnvalidated(candidates []*candidate, n int) []*candidate {
	var batch []*candidate
	for _, c := range candidates {
		if c.validated || c.inFlight {
			continue
		}
		batch = append(batch, c)
		if len(batch) >= n {
			break
		}
	}
	return batch
}

// finalSelection implements §4.4 step 6: all high-relevance papers,
// topped up from remaining validated papers if short, capped at target,
// final sort by relevance/confidence/citations descending.
func finalSelection(candidates []*candidate, target int) []models.Paper {
	var high, lowValidated []*candidate
	for _, c := range candidates {
		if !c.validated {
			continue
		}
		if c.paper.RelevanceScore >= validationThreshold {
			high = append(high, c)
		} else {
			lowValidated = append(lowValidated, c)
		}
	}

	sort.SliceStable(lowValidated, func(i, j int) bool {
		return lowValidated[i].paper.RelevanceScore > lowValidated[j].paper.RelevanceScore
	})

	selected := high
	if len(selected) < target {
		topUp := target - len(selected)
		if topUp > len(lowValidated) {
			topUp = len(lowValidated)
		}
		selected = append(selected, lowValidated[:topUp]...)
	}

	if len(selected) > target {
		selected = selected[:target]
	}

	sort.SliceStable(selected, func(i, j int) bool {
		a, b := selected[i].paper, selected[j].paper
		if a.RelevanceScore != b.RelevanceScore {
			return a.RelevanceScore > b.RelevanceScore
		}
		if a.ConfidenceScore != b.ConfidenceScore {
			return a.ConfidenceScore > b.ConfidenceScore
		}
		return a.CitationCount > b.CitationCount
	})

	papers := make([]models.Paper, 0, len(selected))
	for _, c := range selected {
		papers = append(papers, c.paper)
	}
	return papers
}
