// Package pipeline implements the pipeline controller (C9, §4.8): the
// only component the outer UI depends on directly. It owns session
// lifecycle and sequences the lower components (C1/C6 federation, C7
// augmentation, C8 persistence) without ever mutating shared state from
// a worker goroutine (§5 shared-resource policy).
package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"litscout/internal/augment"
	"litscout/internal/embedstore"
	"litscout/internal/errors"
	"litscout/internal/models"
	"litscout/internal/orchestrator"
	"litscout/internal/repository"
)

const (
	geminiModelUsed     = "gemini-2.5-flash"
	initialResultLimit  = 10
	secondaryResultCap  = 20
	similarProbeQueries = 3
)

// Controller is the pipeline controller. One Controller instance owns
// in-memory state for exactly one Session at a time; sessions are
// recreated per query thread via StartSession.
type Controller struct {
	orchestrator *orchestrator.Orchestrator
	augmenter    *augment.Augmenter
	store        *embedstore.Store
	repo         repository.Repository
	logger       *slog.Logger

	session *models.Session
}

// New builds a Controller wired to the federation orchestrator (C6), the
// query augmenter (C7), the embedding store (C8), and the relational
// repository backing session/paper persistence (§6).
func New(orch *orchestrator.Orchestrator, aug *augment.Augmenter, store *embedstore.Store, repo repository.Repository, logger *slog.Logger) *Controller {
	return &Controller{orchestrator: orch, augmenter: aug, store: store, repo: repo, logger: logger}
}

// Result is the shape every search-producing operation returns to the UI:
// the papers themselves plus enough federation context to explain partial
// success (§7 propagation policy).
type Result struct {
	Papers           []models.Paper
	SourcesAttempted int
	SourcesSucceeded int
	SourcesFailed    int
	Rounds           int
}

// StartSession creates a fresh in-memory Session, persists its summary
// row, and returns the session id (§4.8).
func (c *Controller) StartSession(ctx context.Context, query string, filters *models.SearchFilters) (string, error) {
	sessionID := uuid.NewString()
	c.session = models.NewSession(sessionID, query, filters)

	record := &models.SessionRecord{
		SessionID:       sessionID,
		Query:           query,
		GeminiModelUsed: geminiModelUsed,
		StartTime:       c.session.StartTime,
	}
	if err := c.repo.Sessions().Create(ctx, record); err != nil {
		return "", err
	}
	return sessionID, nil
}

// InitialSearch invokes the federation orchestrator (C6), accumulates the
// result into the session, persists every found paper, and returns the
// top 10 for the UI (§4.8).
func (c *Controller) InitialSearch(ctx context.Context, query string, filters *models.SearchFilters, maxResults int) (*Result, error) {
	if c.session == nil {
		return nil, errors.NewValidationError("no active session; call StartSession first", "session", nil)
	}
	if maxResults <= 0 {
		maxResults = initialResultLimit
	}

	res := c.orchestrator.Search(ctx, query, filters, maxResults)
	c.stampSession(res.Papers)
	c.session.CurrentSessionPapers = res.Papers
	c.session.Accumulate(res.Papers)

	if err := c.persistFound(ctx, res.Papers); err != nil {
		c.logger.Warn("failed to persist initial search papers", slog.String("error", err.Error()))
	}

	top := res.Papers
	if len(top) > initialResultLimit {
		top = top[:initialResultLimit]
	}

	return &Result{
		Papers:           top,
		SourcesAttempted: res.SourceStats.Attempted,
		SourcesSucceeded: res.SourceStats.Succeeded,
		SourcesFailed:    res.SourceStats.Failed,
		Rounds:           res.Rounds,
	}, nil
}

// SecondarySearch builds an augmented query (C7) from the selected papers,
// re-runs federation (C6) with it, merges the selection with the newly
// found relevant papers, re-sorts the merge by the scores the papers
// already carry, and returns the top 20 (§4.8). Newly found papers were
// validated against the augmented query; nothing is re-scored against
// originalQuery.
func (c *Controller) SecondarySearch(ctx context.Context, selectedIndices []int, originalQuery string, filters *models.SearchFilters, maxResults int) (*Result, error) {
	if c.session == nil {
		return nil, errors.NewValidationError("no active session; call StartSession first", "session", nil)
	}
	if maxResults <= 0 || maxResults > secondaryResultCap {
		maxResults = secondaryResultCap
	}

	selected := selectFromIndices(c.session.CurrentSessionPapers, selectedIndices)
	augmentedQuery := c.augmenter.Augment(ctx, originalQuery, selected)

	res := c.orchestrator.Search(ctx, augmentedQuery, filters, maxResults)
	c.stampSession(res.Papers)

	merged := mergeByPaperID(selected, res.Papers)
	rankByOriginalQuery(merged, originalQuery)
	if len(merged) > maxResults {
		merged = merged[:maxResults]
	}

	c.session.CurrentSessionPapers = merged
	c.session.Accumulate(res.Papers)

	if err := c.persistFound(ctx, res.Papers); err != nil {
		c.logger.Warn("failed to persist secondary search papers", slog.String("error", err.Error()))
	}

	return &Result{
		Papers:           merged,
		SourcesAttempted: res.SourceStats.Attempted,
		SourcesSucceeded: res.SourceStats.Succeeded,
		SourcesFailed:    res.SourceStats.Failed,
		Rounds:           res.Rounds,
	}, nil
}

// SavePapers batch-inserts the selected papers into the embedding store
// (C8) and marks them selected in the relational store (§4.8).
func (c *Controller) SavePapers(ctx context.Context, indices []int) (int, error) {
	if c.session == nil {
		return 0, errors.NewValidationError("no active session; call StartSession first", "session", nil)
	}

	selected := selectFromIndices(c.session.CurrentSessionPapers, indices)
	if len(selected) == 0 {
		return 0, nil
	}

	inserted, err := c.store.InsertBatch(ctx, selected, c.session.Query, c.session.SessionID)
	if err != nil {
		return 0, err
	}

	for i := range selected {
		selected[i].Selected = true
		selected[i].SessionID = c.session.SessionID
		if err := c.repo.Papers().Update(ctx, &selected[i]); err != nil {
			c.logger.Warn("failed to mark paper selected", slog.String("paper_id", selected[i].PaperID), slog.String("error", err.Error()))
		}
	}

	return len(inserted), nil
}

// FindSimilar builds up to 3 probe queries from the selected papers' top
// keywords, top categories, and first author, runs federation (C6) on
// each with an even share of k, dedupes against the selection, and
// returns the top k (§4.8).
func (c *Controller) FindSimilar(ctx context.Context, selected []models.Paper, filters *models.SearchFilters, k int) (*Result, error) {
	if k <= 0 {
		return &Result{}, nil
	}

	probes := buildProbeQueries(selected)
	if len(probes) == 0 {
		return &Result{Papers: []models.Paper{}}, nil
	}

	share := k / len(probes)
	if share < 1 {
		share = 1
	}

	excluded := make(map[string]struct{}, len(selected))
	for _, p := range selected {
		excluded[p.PaperID] = struct{}{}
		if p.DOI != "" {
			excluded[strings.ToLower(p.DOI)] = struct{}{}
		}
	}

	var (
		found                         []models.Paper
		attempted, succeeded, failed int
		rounds                       int
	)
	for _, probe := range probes {
		res := c.orchestrator.Search(ctx, probe, filters, share)
		attempted += res.SourceStats.Attempted
		succeeded += res.SourceStats.Succeeded
		failed += res.SourceStats.Failed
		if res.Rounds > rounds {
			rounds = res.Rounds
		}
		for _, p := range res.Papers {
			if _, dup := excluded[p.PaperID]; dup {
				continue
			}
			if p.DOI != "" {
				if _, dup := excluded[strings.ToLower(p.DOI)]; dup {
					continue
				}
				excluded[strings.ToLower(p.DOI)] = struct{}{}
			}
			excluded[p.PaperID] = struct{}{}
			found = append(found, p)
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].RelevanceScore != found[j].RelevanceScore {
			return found[i].RelevanceScore > found[j].RelevanceScore
		}
		return found[i].CitationCount > found[j].CitationCount
	})
	if len(found) > k {
		found = found[:k]
	}

	return &Result{
		Papers:           found,
		SourcesAttempted: attempted,
		SourcesSucceeded: succeeded,
		SourcesFailed:    failed,
		Rounds:           rounds,
	}, nil
}

func (c *Controller) stampSession(papers []models.Paper) {
	for i := range papers {
		papers[i].SessionID = c.session.SessionID
	}
}

func (c *Controller) persistFound(ctx context.Context, papers []models.Paper) error {
	if len(papers) == 0 {
		return nil
	}
	return c.repo.Papers().CreateBatch(ctx, papers)
}

func selectFromIndices(papers []models.Paper, indices []int) []models.Paper {
	out := make([]models.Paper, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(papers) {
			continue
		}
		out = append(out, papers[idx])
	}
	return out
}

// mergeByPaperID unions two paper slices, preferring the first
// occurrence (the user's selection) when the same paper id appears twice.
func mergeByPaperID(selected, found []models.Paper) []models.Paper {
	all := make([]models.Paper, 0, len(selected)+len(found))
	all = append(all, selected...)
	all = append(all, found...)
	return lo.UniqBy(all, func(p models.Paper) string { return p.PaperID })
}

// rankByOriginalQuery re-sorts merged in place by (relevance, confidence,
// citations) desc, using the scores each paper already carries.
// originalQuery is not used: papers from the latest federation round keep
// the scores from their validation against the augmented query, and no
// scoring against the original query happens here.
func rankByOriginalQuery(papers []models.Paper, originalQuery string) {
	sort.SliceStable(papers, func(i, j int) bool {
		si, sj := papers[i].RelevanceScore, papers[j].RelevanceScore
		if si != sj {
			return si > sj
		}
		if papers[i].ConfidenceScore != papers[j].ConfidenceScore {
			return papers[i].ConfidenceScore > papers[j].ConfidenceScore
		}
		return papers[i].CitationCount > papers[j].CitationCount
	})
}

// buildProbeQueries builds up to 3 probe queries from the selected
// papers' aggregate top keywords, top categories, and first author (§4.8).
func buildProbeQueries(selected []models.Paper) []string {
	var probes []string

	if kw := topKeywords(selected, 5); kw != "" {
		probes = append(probes, kw)
	}
	if cat := topCategories(selected, 3); cat != "" {
		probes = append(probes, cat)
	}
	if author := firstAuthor(selected); author != "" {
		probes = append(probes, author)
	}

	if len(probes) > similarProbeQueries {
		probes = probes[:similarProbeQueries]
	}
	return probes
}

func topKeywords(papers []models.Paper, n int) string {
	freq := map[string]int{}
	for _, p := range papers {
		for _, kw := range p.Keywords {
			freq[strings.ToLower(kw)]++
		}
	}
	return topByFrequency(freq, n)
}

func topCategories(papers []models.Paper, n int) string {
	freq := map[string]int{}
	for _, p := range papers {
		for _, cat := range p.Categories {
			freq[strings.ToLower(cat)]++
		}
	}
	return topByFrequency(freq, n)
}

func topByFrequency(freq map[string]int, n int) string {
	if len(freq) == 0 {
		return ""
	}
	type pair struct {
		term  string
		count int
	}
	pairs := make([]pair, 0, len(freq))
	for term, count := range freq {
		pairs = append(pairs, pair{term, count})
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].term < pairs[j].term
	})
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	terms := lo.Map(pairs, func(p pair, _ int) string { return p.term })
	return strings.Join(terms, " ")
}

func firstAuthor(papers []models.Paper) string {
	for _, p := range papers {
		if len(p.Authors) > 0 && p.Authors[0] != "" {
			return p.Authors[0]
		}
	}
	return ""
}
