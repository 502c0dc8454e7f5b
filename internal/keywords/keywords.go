// Package keywords implements the keyword/category extractor (C3):
// frequency-ranked n-gram keyword extraction and rule-based
// categorization, for sources whose APIs don't supply either natively.
package keywords

import (
	"regexp"
	"sort"
	"strings"
)

const defaultMaxKeywords = 15

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {},
	"have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {},
	"will": {}, "would": {}, "could": {}, "should": {}, "may": {}, "might": {},
	"can": {}, "this": {}, "that": {}, "these": {}, "those": {}, "we": {},
	"they": {}, "them": {}, "their": {}, "our": {}, "your": {}, "his": {},
	"her": {}, "its": {}, "study": {}, "research": {}, "paper": {},
	"article": {}, "analysis": {}, "approach": {}, "method": {},
	"results": {}, "conclusion": {},
}

var compoundTermPattern = regexp.MustCompile(`\b[a-z]+(?:[\s-][a-z]+){1,2}\b`)
var singleWordPattern = regexp.MustCompile(`\b[a-z]{4,}\b`)

// Extract returns up to max ranked keywords from text, preferring
// multi-word compound terms over single words (§2, C3). max <= 0 uses
// the default of 15.
func Extract(text string, max int) []string {
	if max <= 0 {
		max = defaultMaxKeywords
	}

	lower := strings.ToLower(text)

	compounds := filterCompounds(compoundTermPattern.FindAllString(lower, -1))
	singles := filterSingles(singleWordPattern.FindAllString(lower, -1))

	counts := map[string]int{}
	var order []string
	for _, term := range append(compounds, singles...) {
		if _, seen := counts[term]; !seen {
			order = append(order, term)
		}
		counts[term]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	keywords := make([]string, 0, max)
	for _, term := range order {
		if len(keywords) >= max {
			break
		}
		isCompound := strings.ContainsAny(term, " -")
		if isCompound || len(keywords) < max/2 {
			keywords = append(keywords, term)
		}
	}
	return keywords
}

func filterCompounds(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		if len(term) <= 5 {
			continue
		}
		if containsStopWord(term) {
			continue
		}
		out = append(out, term)
	}
	return out
}

func filterSingles(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if _, stop := stopWords[w]; stop {
			continue
		}
		out = append(out, w)
	}
	return out
}

func containsStopWord(term string) bool {
	for _, word := range strings.FieldsFunc(term, func(r rune) bool { return r == ' ' || r == '-' }) {
		if _, stop := stopWords[word]; stop {
			return true
		}
	}
	return false
}

var categoryVocabulary = map[string][]string{
	"machine_learning": {"machine learning", "neural network", "deep learning", "artificial intelligence", " ai "},
	"computer_vision":  {"computer vision", "image processing", "object detection", "image recognition", "visual"},
	"nlp":              {"natural language processing", "nlp", "text mining", "language model", "sentiment analysis"},
	"data_science":     {"data science", "data mining", "big data", "analytics", "statistical"},
	"robotics":         {"robot", "robotics", "autonomous", "control system", "sensor"},
	"cybersecurity":    {"security", "cybersecurity", "encryption", "privacy", "authentication"},
	"software_engineering": {"software", "programming", "development", "engineering", "architecture"},
	"algorithms":       {"algorithm", "optimization", "complexity", "computational", "mathematical"},
	"systems":          {"system", "distributed", "network", "database", "cloud computing"},
	"theory":           {"theoretical", "formal", "proof", "mathematical", "logic"},
}

var categoryOrder = []string{
	"machine_learning", "computer_vision", "nlp", "data_science", "robotics",
	"cybersecurity", "software_engineering", "algorithms", "systems", "theory",
}

// Categorize assigns zero or more research-area labels to a paper from
// its title, abstract, and journal, matching against a fixed
// keyword-to-category vocabulary. Falls back to ["general"] when nothing
// matches.
func Categorize(title, abstract, journal string) []string {
	content := " " + strings.ToLower(title+" "+abstract+" "+journal) + " "

	var categories []string
	for _, category := range categoryOrder {
		for _, kw := range categoryVocabulary[category] {
			if strings.Contains(content, kw) {
				categories = append(categories, category)
				break
			}
		}
	}

	if len(categories) == 0 {
		return []string{"general"}
	}
	return categories
}
