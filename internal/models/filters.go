package models

import (
	"strings"

	"litscout/internal/errors"
)

// SearchFilters is immutable once constructed: NewSearchFilters validates
// every invariant and rejects bad input before it ever reaches an adapter
// or the orchestrator (§7 error kind 5).
type SearchFilters struct {
	yearStart           *int
	yearEnd             *int
	minCitations        int
	maxCitations        *int
	includePreprints    bool
	keywordRequirements []string
	excludeKeywords     []string
	journalFilter       []string
	authorFilter        []string
	paperTypeFilter     *PaperType
}

// SearchFiltersInput is the unvalidated shape callers populate before
// handing it to NewSearchFilters. Zero value means "not set" for every
// optional field.
type SearchFiltersInput struct {
	YearStart           *int
	YearEnd             *int
	MinCitations        int
	MaxCitations        *int
	IncludePreprints    *bool // nil defaults to true
	KeywordRequirements []string
	ExcludeKeywords     []string
	JournalFilter       []string
	AuthorFilter        []string
	PaperTypeFilter     *PaperType
}

// NewSearchFilters validates in as a unit and returns an immutable
// SearchFilters, or a caller-visible validation error. This is the only
// way to obtain a SearchFilters value.
func NewSearchFilters(in SearchFiltersInput) (*SearchFilters, error) {
	if in.YearStart != nil && (*in.YearStart < 1900 || *in.YearStart > 2030) {
		return nil, errors.NewValidationError("year_start out of range [1900, 2030]", "year_start", *in.YearStart)
	}
	if in.YearEnd != nil && (*in.YearEnd < 1900 || *in.YearEnd > 2030) {
		return nil, errors.NewValidationError("year_end out of range [1900, 2030]", "year_end", *in.YearEnd)
	}
	if in.YearStart != nil && in.YearEnd != nil && *in.YearEnd < *in.YearStart {
		return nil, errors.NewValidationError("year_end must be >= year_start", "year_end", *in.YearEnd)
	}
	if in.MinCitations < 0 {
		return nil, errors.NewValidationError("min_citations must be >= 0", "min_citations", in.MinCitations)
	}
	if in.MaxCitations != nil && *in.MaxCitations < 0 {
		return nil, errors.NewValidationError("max_citations must be >= 0 or absent", "max_citations", *in.MaxCitations)
	}
	if in.PaperTypeFilter != nil {
		if *in.PaperTypeFilter == PaperTypeUnknown || !IsValidPaperType(*in.PaperTypeFilter) {
			return nil, errors.NewValidationError("paper_type_filter must be a known, non-unknown paper type", "paper_type_filter", *in.PaperTypeFilter)
		}
	}

	includePreprints := true
	if in.IncludePreprints != nil {
		includePreprints = *in.IncludePreprints
	}

	// max_citations = 0 is treated as "unlimited" per spec's resolution of
	// the source's ambiguous coercion (§9 open question).
	maxCitations := in.MaxCitations
	if maxCitations != nil && *maxCitations == 0 {
		maxCitations = nil
	}

	return &SearchFilters{
		yearStart:           in.YearStart,
		yearEnd:             in.YearEnd,
		minCitations:        in.MinCitations,
		maxCitations:        maxCitations,
		includePreprints:    includePreprints,
		keywordRequirements: append([]string{}, in.KeywordRequirements...),
		excludeKeywords:     append([]string{}, in.ExcludeKeywords...),
		journalFilter:       append([]string{}, in.JournalFilter...),
		authorFilter:        append([]string{}, in.AuthorFilter...),
		paperTypeFilter:     in.PaperTypeFilter,
	}, nil
}

// DefaultSearchFilters returns the zero-constraint filter set (all sources,
// no year/citation bounds, preprints included).
func DefaultSearchFilters() *SearchFilters {
	f, _ := NewSearchFilters(SearchFiltersInput{})
	return f
}

func (f *SearchFilters) YearStart() *int             { return f.yearStart }
func (f *SearchFilters) YearEnd() *int                { return f.yearEnd }
func (f *SearchFilters) MinCitations() int            { return f.minCitations }
func (f *SearchFilters) MaxCitations() *int           { return f.maxCitations }
func (f *SearchFilters) IncludePreprints() bool       { return f.includePreprints }
func (f *SearchFilters) KeywordRequirements() []string { return f.keywordRequirements }
func (f *SearchFilters) ExcludeKeywords() []string    { return f.excludeKeywords }
func (f *SearchFilters) JournalFilter() []string      { return f.journalFilter }
func (f *SearchFilters) AuthorFilter() []string       { return f.authorFilter }
func (f *SearchFilters) PaperTypeFilter() *PaperType  { return f.paperTypeFilter }

// Matches reports whether a paper satisfies every hard filter. Adapters
// call this to pre-filter cheaply; the orchestrator does not need to
// re-check it, but may for defense in depth.
func (f *SearchFilters) Matches(p *Paper) bool {
	year := p.Year()
	if f.yearStart != nil && year != 0 && year < *f.yearStart {
		return false
	}
	if f.yearEnd != nil && year != 0 && year > *f.yearEnd {
		return false
	}
	if p.CitationCount < f.minCitations {
		return false
	}
	if f.maxCitations != nil && p.CitationCount > *f.maxCitations {
		return false
	}
	if !f.includePreprints && p.Source == SourceArxiv {
		return false
	}

	haystack := strings.ToLower(p.Title + " " + p.Abstract)
	for _, kw := range f.keywordRequirements {
		if !strings.Contains(haystack, strings.ToLower(kw)) {
			return false
		}
	}
	for _, kw := range f.excludeKeywords {
		if strings.Contains(haystack, strings.ToLower(kw)) {
			return false
		}
	}
	if len(f.journalFilter) > 0 {
		journal := strings.ToLower(p.Journal)
		match := false
		for _, j := range f.journalFilter {
			if strings.Contains(journal, strings.ToLower(j)) {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	if len(f.authorFilter) > 0 {
		match := false
		for _, want := range f.authorFilter {
			want = strings.ToLower(want)
			for _, have := range p.Authors {
				if strings.Contains(strings.ToLower(have), want) {
					match = true
					break
				}
			}
			if match {
				break
			}
		}
		if !match {
			return false
		}
	}
	if f.paperTypeFilter != nil && p.PaperType != *f.paperTypeFilter {
		return false
	}
	return true
}
