// Package augment implements the query augmenter (C7, §4.5): an
// LLM-primary refined-query builder with a deterministic fallback.
package augment

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"litscout/internal/llm"
	"litscout/internal/models"
)

const (
	maxSelectedPapers  = 5
	abstractPrefixLLM  = 300
	abstractPrefixWord = 200
	maxPrimaryTokens   = 20
	minFallbackWordLen = 4
	topFallbackTerms   = 3
	minFallbackFreq    = 1
)

// tokenEncoding is shared by every Augmenter: tiktoken's BPE tables are
// expensive to load and are read-only once built, so one encoding per
// process is enough. A nil encoding (load failure) falls back to a plain
// whitespace word count for the token-budget check.
var tokenEncoding, tokenEncodingErr = tiktoken.GetEncoding(tiktoken.MODEL_CL100K_BASE)

// countTokens reports query's token count, preferring tiktoken's
// CL100K_BASE BPE encoding over a whitespace word count, which would
// under- or over-count on punctuation-heavy or multi-byte text. The count
// approximates, and is not identical to, the Gemini model's own
// tokenization.
func countTokens(query string) int {
	if tokenEncodingErr != nil || tokenEncoding == nil {
		return len(strings.Fields(query))
	}
	return len(tokenEncoding.Encode(query, nil, nil))
}

var genericWords = map[string]struct{}{
	"paper": {}, "study": {}, "research": {}, "analysis": {},
}

var fallbackStopWords = map[string]struct{}{
	"this": {}, "that": {}, "with": {}, "from": {}, "into": {}, "their": {},
	"which": {}, "these": {}, "those": {}, "about": {}, "using": {},
	"based": {}, "have": {}, "were": {}, "been": {}, "also": {}, "such": {},
}

// Augmenter builds a refined query from a set of user-selected papers.
type Augmenter struct {
	client *llm.Client
	logger *slog.Logger
}

// NewAugmenter builds an Augmenter. client may be nil to always use the
// deterministic fallback path.
func NewAugmenter(client *llm.Client, logger *slog.Logger) *Augmenter {
	return &Augmenter{client: client, logger: logger}
}

// Augment builds a refined query from originalQuery and the titles/
// abstracts of selectedPapers, preferring an LLM-produced concise query
// and falling back to deterministic keyword augmentation on any failure.
func (a *Augmenter) Augment(ctx context.Context, originalQuery string, selectedPapers []models.Paper) string {
	papers := selectedPapers
	if len(papers) > maxSelectedPapers {
		papers = papers[:maxSelectedPapers]
	}

	if a.client != nil {
		if q, ok := a.primary(ctx, originalQuery, papers); ok {
			return q
		}
	}

	return fallback(originalQuery, papers)
}

func (a *Augmenter) primary(ctx context.Context, originalQuery string, papers []models.Paper) (string, bool) {
	prompt := buildPrompt(originalQuery, papers)

	content, err := a.client.CompleteText(ctx, prompt)
	if err != nil {
		a.logger.Warn("query augmentation LLM call failed, using fallback extractor", slog.String("error", err.Error()))
		return "", false
	}

	query := strings.Trim(strings.TrimSpace(content), `"'`)
	if query == "" {
		return "", false
	}
	if countTokens(query) > maxPrimaryTokens {
		return "", false
	}

	return query, true
}

func buildPrompt(originalQuery string, papers []models.Paper) string {
	var b strings.Builder
	b.WriteString("Produce a concise improved search query (at most 15 words) for academic literature search. ")
	b.WriteString("Drop generic words like \"paper\", \"study\", \"research\", \"analysis\". ")
	b.WriteString("Respond with only the query text, no quotes.\n\n")
	b.WriteString("Original query: ")
	b.WriteString(originalQuery)
	b.WriteString("\n\nSelected papers:\n")
	for _, p := range papers {
		b.WriteString("- ")
		b.WriteString(p.Title)
		b.WriteString(": ")
		b.WriteString(truncate(p.Abstract, abstractPrefixLLM))
		b.WriteString("\n")
	}
	return b.String()
}

// fallback implements §4.5's deterministic path: lowercase alphabetic
// words of length >= 4 from titles + 200-char abstract prefixes, minus
// stop words, ranked by frequency, top 3 terms with frequency > 1
// appended to the original query.
func fallback(originalQuery string, papers []models.Paper) string {
	counts := map[string]int{}
	var order []string

	for _, p := range papers {
		text := p.Title + " " + truncate(p.Abstract, abstractPrefixWord)
		for _, word := range tokenizeAlpha(text) {
			if len(word) < minFallbackWordLen {
				continue
			}
			if _, stop := fallbackStopWords[word]; stop {
				continue
			}
			if _, generic := genericWords[word]; generic {
				continue
			}
			if _, seen := counts[word]; !seen {
				order = append(order, word)
			}
			counts[word]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	var top []string
	for _, w := range order {
		if counts[w] <= minFallbackFreq {
			continue
		}
		top = append(top, w)
		if len(top) >= topFallbackTerms {
			break
		}
	}

	if len(top) == 0 {
		return originalQuery
	}
	return originalQuery + " " + strings.Join(top, " ")
}

func tokenizeAlpha(s string) []string {
	var words []string
	var current strings.Builder
	for _, r := range strings.ToLower(s) {
		if r >= 'a' && r <= 'z' {
			current.WriteRune(r)
			continue
		}
		if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}
	return words
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
