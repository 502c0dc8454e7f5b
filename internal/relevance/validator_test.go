package relevance

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"litscout/internal/models"
)

func samplePaper() *models.Paper {
	p := models.NewPaper("p1", "Deep Learning for Natural Language Processing", models.SourceArxiv)
	p.Abstract = "A neural network approach using attention and transformer architectures for NLP tasks."
	p.Keywords = []string{"deep learning", "nlp"}
	p.CitationCount = 120
	p.Normalize()
	return p
}

func TestValidate_NoClientUsesFallback(t *testing.T) {
	v := NewValidator(nil, nil)
	score := v.Validate(context.Background(), samplePaper(), "deep learning natural language processing", "")
	assert.Greater(t, score.RelevanceScore, 0.0)
	assert.LessOrEqual(t, score.RelevanceScore, 1.0)
}

func TestParseScore_DirectFloat(t *testing.T) {
	f, err := parseScore("0.82")
	assert.NoError(t, err)
	assert.InDelta(t, 0.82, f, 1e-9)
}

func TestParseScore_EmbeddedNumber(t *testing.T) {
	f, err := parseScore("Relevance score: 0.65 out of 1.0")
	assert.NoError(t, err)
	assert.InDelta(t, 0.65, f, 1e-9)
}

func TestParseScore_Unparseable(t *testing.T) {
	_, err := parseScore("not a number at all")
	assert.ErrorIs(t, err, errUnparseableScore)
}

func TestFallbackScore_NoOverlapStillBounded(t *testing.T) {
	paper := samplePaper()
	score := fallbackScore(paper, "completely unrelated topic about marine biology")
	assert.GreaterOrEqual(t, score.RelevanceScore, 0.0)
	assert.LessOrEqual(t, score.RelevanceScore, 1.0)
}

func TestFallbackScore_ConcernsWhenLowRelevance(t *testing.T) {
	paper := models.NewPaper("p2", "Completely Unrelated", models.SourceArxiv)
	paper.Abstract = "nothing to do with the query"
	paper.Normalize()
	score := fallbackScore(paper, "marine biology ocean ecosystems")
	if score.RelevanceScore <= 0.5 {
		assert.NotEmpty(t, score.Concerns)
	}
}
