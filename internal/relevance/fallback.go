package relevance

import (
	"errors"
	"math"
	"sort"
	"strings"

	"litscout/internal/models"
)

var errUnparseableScore = errors.New("relevance: could not parse a score from the LLM response")

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "of": {}, "in": {}, "on": {}, "for": {},
	"and": {}, "or": {}, "to": {}, "with": {}, "is": {}, "are": {}, "at": {},
	"by": {}, "from": {}, "as": {}, "into": {}, "this": {}, "that": {},
}

const maxAbstractWords = 100

// fallbackScore implements §4.3's deterministic scorer, used whenever the
// LLM path is unavailable or its response cannot be parsed.
func fallbackScore(paper *models.Paper, query string) models.RelevanceScore {
	queryTokens := tokenize(query)
	titleTokens := tokenize(paper.Title)
	abstractTokens := tokenize(truncateWords(paper.Abstract, maxAbstractWords))
	keywordTokens := tokenize(strings.Join(paper.Keywords, " "))

	titleOverlap := overlap(queryTokens, titleTokens)
	abstractOverlap := overlap(queryTokens, abstractTokens)
	keywordOverlap := overlap(queryTokens, keywordTokens)

	base := 0.5*titleOverlap + 0.3*abstractOverlap + 0.2*keywordOverlap

	mlHits := countVocabularyHits(titleTokens, abstractTokens, keywordTokens)
	mlBoost := math.Min(0.3, 0.1*float64(mlHits))

	citationBoost := math.Min(0.1, float64(paper.CitationCount)/1000.0)

	final := clamp01(base + mlBoost + citationBoost)
	if final > 0.1 {
		final = math.Max(final, 0.4)
	}

	confidence := 0.4
	titleAndKeywords := union(titleTokens, keywordTokens)
	if intersects(queryTokens, titleAndKeywords) {
		confidence = 0.7
	}

	keyMatches := matchedTerms(queryTokens, union(titleTokens, union(abstractTokens, keywordTokens)), 5)

	var concerns []string
	if final <= 0.5 {
		concerns = []string{"low overlap between query and paper content"}
	}

	explanation := "fallback deterministic relevance score"
	return models.NewRelevanceScore(final, confidence, explanation, keyMatches, concerns)
}

func tokenize(s string) map[string]struct{} {
	tokens := map[string]struct{}{}
	for _, word := range strings.Fields(strings.ToLower(s)) {
		word = strings.Trim(word, ".,;:!?()[]{}\"'")
		if word == "" {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		tokens[word] = struct{}{}
	}
	return tokens
}

func truncateWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) <= n {
		return s
	}
	return strings.Join(words[:n], " ")
}

func overlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 {
		return 0
	}
	hits := 0
	for term := range a {
		if _, ok := b[term]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(a))
}

func intersects(a, b map[string]struct{}) bool {
	for term := range a {
		if _, ok := b[term]; ok {
			return true
		}
	}
	return false
}

func union(a, b map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for term := range a {
		out[term] = struct{}{}
	}
	for term := range b {
		out[term] = struct{}{}
	}
	return out
}

// matchedTerms returns up to limit query terms also present in corpus,
// sorted alphabetically before truncation so the result is a pure
// function of (query, corpus) rather than of map iteration order.
func matchedTerms(query, corpus map[string]struct{}, limit int) []string {
	var matches []string
	for term := range query {
		if _, ok := corpus[term]; ok {
			matches = append(matches, term)
		}
	}
	sort.Strings(matches)
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func countVocabularyHits(sets ...map[string]struct{}) int {
	hits := 0
	for _, term := range mlVocabulary {
		for _, set := range sets {
			if _, ok := set[term]; ok {
				hits++
				break
			}
		}
	}
	return hits
}
