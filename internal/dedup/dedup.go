// Package dedup implements the cross-source deduplicator (§4.2): given a
// sequence of Papers pulled from multiple federated sources, collapse
// entries that refer to the same underlying work down to one.
package dedup

import (
	"strings"

	"litscout/internal/models"
)

const titleJaccardThreshold = 0.85

// Dedupe returns papers with duplicates collapsed, preserving the
// first-seen order of surviving entries. Identity is decided by DOI
// equality, then URL equality, then normalized-title Jaccard similarity
// — in that priority order, each checked only when the higher-priority
// signal is inconclusive (empty on one or both sides).
func Dedupe(papers []models.Paper) []models.Paper {
	kept := make([]models.Paper, 0, len(papers))

	for _, candidate := range papers {
		dupIdx := -1
		for i := range kept {
			if isDuplicate(&kept[i], &candidate) {
				dupIdx = i
				break
			}
		}

		if dupIdx == -1 {
			kept = append(kept, candidate)
			continue
		}

		if winner(&kept[dupIdx], &candidate) == &candidate {
			kept[dupIdx] = candidate
		}
		// Otherwise the existing kept[dupIdx] remains; the loser is dropped.
	}

	return kept
}

func isDuplicate(a, b *models.Paper) bool {
	if a.DOI != "" && b.DOI != "" {
		return strings.EqualFold(a.DOI, b.DOI)
	}
	if a.URL != "" && b.URL != "" {
		return strings.EqualFold(a.URL, b.URL)
	}
	return titleJaccard(a.Title, b.Title) >= titleJaccardThreshold
}

func titleJaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for tok := range setA {
		if setB[tok] {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func tokenSet(title string) map[string]bool {
	normalized := models.NormalizeTitle(title)
	set := make(map[string]bool)
	for _, tok := range strings.Fields(normalized) {
		set[tok] = true
	}
	return set
}

// winner picks which of two duplicate candidates survives: higher
// citation_count wins; tied, prefer the non-arXiv source; tied again,
// prefer the earlier-seen paper (a, by convention — the caller passes
// the already-kept paper as a).
func winner(a, b *models.Paper) *models.Paper {
	if a.CitationCount != b.CitationCount {
		if a.CitationCount > b.CitationCount {
			return a
		}
		return b
	}

	aIsArxiv := a.Source == models.SourceArxiv
	bIsArxiv := b.Source == models.SourceArxiv
	if aIsArxiv != bIsArxiv {
		if aIsArxiv {
			return b
		}
		return a
	}

	return a
}
