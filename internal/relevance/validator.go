// Package relevance implements the relevance validator (C5, §4.3): an
// LLM-primary, deterministic-fallback scorer that never raises.
package relevance

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"litscout/internal/llm"
	"litscout/internal/models"
)

const perSlotPaceDelay = 7 * time.Second

var scoreRegexp = regexp.MustCompile(`([0-9]*\.?[0-9]+)`)

var mlVocabulary = []string{
	"transformer", "attention", "bert", "gpt", "neural", "network", "deep",
	"learning", "machine", "artificial", "intelligence", "nlp", "language",
	"model", "embedding", "encoder", "decoder",
}

// Validator scores a Paper's relevance to a query, preferring a single
// LLM call per paper and falling back to a deterministic scorer whenever
// the call fails, times out, or returns unparseable content.
type Validator struct {
	client  *llm.Client
	logger  *slog.Logger
	limiter *rate.Limiter
}

// NewValidator builds a Validator. client may be nil, in which case every
// call uses the fallback scorer — useful for tests and for degraded
// operation when the LLM is unreachable. The limiter enforces one call per
// perSlotPaceDelay across every caller, including concurrent QA-round
// workers (§5's per-slot pacing), with a burst of 1 so no caller can spend
// a saved-up allowance on a tight back-to-back pair of calls.
func NewValidator(client *llm.Client, logger *slog.Logger) *Validator {
	return &Validator{client: client, logger: logger, limiter: rate.NewLimiter(rate.Every(perSlotPaceDelay), 1)}
}

// Validate scores paper against query and an optional free-text criteria
// string, never returning an error: any LLM failure is absorbed by the
// fallback scorer (§4.3).
func (v *Validator) Validate(ctx context.Context, paper *models.Paper, query, criteria string) models.RelevanceScore {
	if v.client == nil {
		return fallbackScore(paper, query)
	}

	if err := v.limiter.Wait(ctx); err != nil {
		v.logger.Warn("relevance pacing wait aborted, using fallback scorer",
			slog.String("paper_id", paper.PaperID), slog.String("error", err.Error()))
		return fallbackScore(paper, query)
	}

	score, err := v.callLLM(ctx, paper, query, criteria)
	if err != nil {
		v.logger.Warn("relevance LLM call failed, using fallback scorer",
			slog.String("paper_id", paper.PaperID), slog.String("error", err.Error()))
		return fallbackScore(paper, query)
	}

	return models.NewRelevanceScore(score, confidenceForScore(paper, query, score), "llm relevance score", nil, nil)
}

func (v *Validator) callLLM(ctx context.Context, paper *models.Paper, query, criteria string) (float64, error) {
	prompt := buildPrompt(paper, query, criteria)

	content, err := v.client.CompleteText(ctx, prompt)
	if err != nil {
		return 0, err
	}

	return parseScore(content)
}

func buildPrompt(paper *models.Paper, query, criteria string) string {
	var b strings.Builder
	b.WriteString("Rate how relevant the following paper is to the search query on a scale from 0.0 to 1.0. ")
	b.WriteString("Respond with only the number, nothing else.\n\n")
	b.WriteString("Query: ")
	b.WriteString(query)
	if criteria != "" {
		b.WriteString("\nCriteria: ")
		b.WriteString(criteria)
	}
	b.WriteString("\nTitle: ")
	b.WriteString(paper.Title)
	b.WriteString("\nAbstract: ")
	b.WriteString(paper.Abstract)
	return b.String()
}

// parseScore accepts a direct float parse of the trimmed content, else
// the first regex match for a number, clamped to [0, 1]. Anything else is
// a parsing failure (§4.3).
func parseScore(content string) (float64, error) {
	trimmed := strings.TrimSpace(content)

	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return clamp01(f), nil
	}

	match := scoreRegexp.FindString(trimmed)
	if match == "" {
		return 0, errUnparseableScore
	}

	f, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, errUnparseableScore
	}
	return clamp01(f), nil
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func confidenceForScore(paper *models.Paper, query string, score float64) float64 {
	if anyQueryTermIn(query, paper.Title, paper.Keywords) {
		return 0.7
	}
	return 0.4
}

func anyQueryTermIn(query string, title string, keywords []string) bool {
	haystack := strings.ToLower(title + " " + strings.Join(keywords, " "))
	for term := range tokenize(query) {
		if strings.Contains(haystack, term) {
			return true
		}
	}
	return false
}
