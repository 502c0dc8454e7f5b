package augment

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"litscout/internal/models"
)

func selectedPaper(title, abstract string) models.Paper {
	p := models.NewPaper("p1", title, models.SourceArxiv)
	p.Abstract = abstract
	p.Normalize()
	return *p
}

func TestAugment_NoClientUsesFallback(t *testing.T) {
	a := NewAugmenter(nil, slog.Default())
	papers := []models.Paper{
		selectedPaper("Attention Mechanism Networks", "transformer transformer attention models for sequence tasks"),
		selectedPaper("BERT Language Representation", "bidirectional transformer pretraining representation learning"),
	}

	got := a.Augment(context.Background(), "transformer neural networks", papers)
	assert.Contains(t, got, "transformer neural networks")
}

func TestFallback_NoQualifyingTermsReturnsOriginal(t *testing.T) {
	got := fallback("original query", nil)
	assert.Equal(t, "original query", got)
}

func TestTokenizeAlpha_SplitsOnNonAlpha(t *testing.T) {
	got := tokenizeAlpha("Deep-Learning: A Survey (2020)")
	assert.Equal(t, []string{"deep", "learning", "a", "survey"}, got)
}
