// Package classify implements the deterministic paper-type classifier (§4.7).
package classify

import (
	"strings"

	"litscout/internal/models"
)

var reviewVocabulary = []string{
	"review", "survey", "meta-analysis", "systematic review",
	"literature review", "overview", "synthesis", "state-of-the-art",
	"comprehensive review", "critical review", "scoping review",
}

var conferenceVocabulary = []string{
	"proceedings", "conference", "workshop", "symposium", "congress",
	"icml", "nips", "neurips", "aaai", "ijcai", "cvpr", "iccv", "eccv", "sigkdd",
}

var journalVocabulary = []string{
	"journal of", "nature", "science", "cell", "plos",
	"ieee transactions", "acm transactions",
}

// Classify labels a paper from its title, venue, and abstract per §4.7's
// three-step rule: review vocabulary first, then a conference-vs-journal
// vocabulary count, then a venue-keyword fallback, defaulting to journal.
func Classify(title, venue, abstract string) models.PaperType {
	haystack := strings.ToLower(title + " " + venue + " " + abstract)

	if countHits(haystack, reviewVocabulary) > 0 {
		return models.PaperTypeReview
	}

	conferenceHits := countHits(haystack, conferenceVocabulary)
	journalHits := countHits(haystack, journalVocabulary)

	switch {
	case conferenceHits > journalHits:
		return models.PaperTypeConference
	case journalHits > 0:
		return models.PaperTypeJournal
	}

	lowerVenue := strings.ToLower(venue)
	if strings.Contains(lowerVenue, "conference") || strings.Contains(lowerVenue, "proceedings") || strings.Contains(lowerVenue, "workshop") {
		return models.PaperTypeConference
	}

	return models.PaperTypeJournal
}

func countHits(haystack string, vocabulary []string) int {
	hits := 0
	for _, term := range vocabulary {
		if strings.Contains(haystack, term) {
			hits++
		}
	}
	return hits
}
