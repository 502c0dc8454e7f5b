package orchestrator

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"litscout/internal/models"
	"litscout/internal/providers"
	"litscout/internal/relevance"
)

type fakeSource struct {
	name    models.SourceTag
	enabled bool
	papers  []models.Paper
}

func (f *fakeSource) Name() models.SourceTag { return f.name }
func (f *fakeSource) Enabled() bool          { return f.enabled }
func (f *fakeSource) Search(_ context.Context, _ string, filters *models.SearchFilters, _ int) ([]models.Paper, error) {
	var out []models.Paper
	for _, p := range f.papers {
		if filters == nil || filters.Matches(&p) {
			out = append(out, p)
		}
	}
	return out, nil
}

func paper(id, title string, year int, citations int) models.Paper {
	p := models.NewPaper(id, title, models.SourceArxiv)
	p.PublicationDate = itoa(year)
	p.CitationCount = citations
	p.Abstract = title + " abstract"
	p.Normalize()
	return *p
}

func itoa(n int) string {
	digits := "0123456789"
	if n == 0 {
		return "0000"
	}
	out := make([]byte, 4)
	for i := 3; i >= 0; i-- {
		out[i] = digits[n%10]
		n /= 10
	}
	return string(out)
}

func TestSearch_NoSourcesReturnsEmpty(t *testing.T) {
	logger := slog.Default()
	manager := providers.NewManager(logger)
	validator := relevance.NewValidator(nil, logger)
	orch := New(manager, validator, logger)

	result := orch.Search(context.Background(), "deep learning", models.DefaultSearchFilters(), 10)
	assert.Empty(t, result.Papers)
}

func TestSearch_ReturnsUpToMaxResults(t *testing.T) {
	logger := slog.Default()
	src := &fakeSource{
		name:    models.SourceArxiv,
		enabled: true,
		papers: []models.Paper{
			paper("p1", "Attention Is All You Need", 2020, 500),
			paper("p2", "BERT Pretraining", 2021, 300),
			paper("p3", "Unrelated Botany Survey", 2005, 2),
		},
	}
	manager := providers.NewManager(logger, src)
	validator := relevance.NewValidator(nil, logger)
	orch := New(manager, validator, logger)

	result := orch.Search(context.Background(), "attention transformer", models.DefaultSearchFilters(), 2)
	assert.LessOrEqual(t, len(result.Papers), 2)
}
