package dedup

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"litscout/internal/models"
)

func paper(id, title, doi, url string, citations int, source models.SourceTag) models.Paper {
	p := models.NewPaper(id, title, source)
	p.DOI = doi
	p.URL = url
	p.CitationCount = citations
	p.Normalize()
	return *p
}

func TestDedupe_DOIMatch(t *testing.T) {
	a := paper("a", "Attention Is All You Need", "10.1/abc", "", 100, models.SourceArxiv)
	b := paper("b", "Attention is all you need", "10.1/ABC", "", 500, models.SourceCrossref)

	result := Dedupe([]models.Paper{a, b})

	assert.Len(t, result, 1)
	assert.Equal(t, "b", result[0].PaperID, "higher citation count should win")
}

func TestDedupe_URLMatch(t *testing.T) {
	a := paper("a", "Paper One", "", "https://example.com/paper", 10, models.SourceArxiv)
	b := paper("b", "Paper One Revised", "", "HTTPS://EXAMPLE.COM/PAPER", 10, models.SourceCrossref)

	result := Dedupe([]models.Paper{a, b})

	assert.Len(t, result, 1)
	assert.Equal(t, "b", result[0].PaperID, "tied citations, non-arxiv should win")
}

func TestDedupe_TitleJaccard(t *testing.T) {
	a := paper("a", "Deep Learning for Natural Language Processing", "", "", 5, models.SourceArxiv)
	b := paper("b", "Deep Learning for Natural Language Processing Tasks", "", "", 5, models.SourceArxiv)

	result := Dedupe([]models.Paper{a, b})

	assert.Len(t, result, 1, "near-identical titles should dedupe")
	assert.Equal(t, "a", result[0].PaperID, "tied citations and source, earlier-seen should win")
}

func TestDedupe_DistinctPapersSurvive(t *testing.T) {
	a := paper("a", "Graph Neural Networks", "10.1/x", "", 1, models.SourceArxiv)
	b := paper("b", "Transformer Architectures", "10.1/y", "", 1, models.SourceCrossref)

	result := Dedupe([]models.Paper{a, b})

	assert.Len(t, result, 2)
}

func TestDedupe_Empty(t *testing.T) {
	assert.Empty(t, Dedupe(nil))
}
