package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"litscout/internal/models"
)

func TestClassify_Review(t *testing.T) {
	got := Classify("A Systematic Review of Transfer Learning", "ACM Computing Surveys", "")
	assert.Equal(t, models.PaperTypeReview, got)
}

func TestClassify_Conference(t *testing.T) {
	got := Classify("Attention Is All You Need", "Proceedings of NeurIPS 2017", "")
	assert.Equal(t, models.PaperTypeConference, got)
}

func TestClassify_Journal(t *testing.T) {
	got := Classify("CRISPR Gene Editing", "Nature", "")
	assert.Equal(t, models.PaperTypeJournal, got)
}

func TestClassify_DefaultsToJournal(t *testing.T) {
	got := Classify("Some Paper", "Unknown Venue", "")
	assert.Equal(t, models.PaperTypeJournal, got)
}
