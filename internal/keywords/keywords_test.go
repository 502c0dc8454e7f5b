package keywords

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract_PrefersCompoundTerms(t *testing.T) {
	text := "Neural network architectures for deep learning tasks. Neural network training is expensive. Deep learning scales well."
	got := Extract(text, 5)
	assert.NotEmpty(t, got)
	assert.Contains(t, got, "neural network training")
}

func TestExtract_DefaultsMaxWhenZero(t *testing.T) {
	got := Extract("machine learning models for text classification and text classification tasks", 0)
	assert.LessOrEqual(t, len(got), defaultMaxKeywords)
}

func TestCategorize_MatchesMachineLearning(t *testing.T) {
	got := Categorize("A Deep Learning Approach", "We use a neural network", "")
	assert.Contains(t, got, "machine_learning")
}

func TestCategorize_FallsBackToGeneral(t *testing.T) {
	got := Categorize("On the History of Medieval Poetry", "", "")
	assert.Equal(t, []string{"general"}, got)
}
