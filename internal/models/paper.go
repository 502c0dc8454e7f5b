package models

import (
	"regexp"
	"strings"
	"time"
)

// SourceTag identifies which adapter produced a Paper.
type SourceTag string

const (
	SourceGoogleScholarSerpAPI SourceTag = "google_scholar_serpapi"
	SourceCrossref             SourceTag = "crossref"
	SourceOpenAlex             SourceTag = "openalex"
	SourceArxiv                SourceTag = "arxiv"
	SourceUserUpload           SourceTag = "user_upload"
)

var allowedSources = map[SourceTag]bool{
	SourceGoogleScholarSerpAPI: true,
	SourceCrossref:             true,
	SourceOpenAlex:             true,
	SourceArxiv:                true,
	SourceUserUpload:           true,
}

// IsValidSource reports whether s is one of the allowed source tags.
func IsValidSource(s SourceTag) bool {
	return allowedSources[s]
}

// PaperType is the three-way classification label plus the unknown sentinel.
type PaperType string

const (
	PaperTypeReview     PaperType = "review"
	PaperTypeConference PaperType = "conference"
	PaperTypeJournal    PaperType = "journal"
	PaperTypeUnknown    PaperType = "unknown"
)

var allowedPaperTypes = map[PaperType]bool{
	PaperTypeReview:     true,
	PaperTypeConference: true,
	PaperTypeJournal:    true,
	PaperTypeUnknown:    true,
}

// IsValidPaperType reports whether t is one of the allowed paper_type labels.
func IsValidPaperType(t PaperType) bool {
	return allowedPaperTypes[t]
}

// UnknownPublicationDate is the sentinel used when an adapter cannot
// determine a 4-digit year for a paper.
const UnknownPublicationDate = "Unknown"

// Paper is the canonical normalized record used throughout the core: every
// source adapter produces one, the deduplicator and validator consume and
// annotate it in place, and the pipeline controller persists it.
type Paper struct {
	PaperID         string    `json:"paper_id" gorm:"primaryKey;column:paper_id;type:varchar(64)"`
	Title           string    `json:"title" gorm:"type:text;not null"`
	Authors         []string  `json:"authors" gorm:"serializer:json"`
	Abstract        string    `json:"abstract" gorm:"type:text"`
	PublicationDate string    `json:"publication_date" gorm:"type:varchar(16)"`
	Journal         string    `json:"journal" gorm:"type:varchar(500)"`
	CitationCount   int       `json:"citation_count" gorm:"default:0;index"`
	URL             string    `json:"url" gorm:"type:varchar(2048)"`
	DOI             string    `json:"doi" gorm:"type:varchar(255);index"`
	Keywords        []string  `json:"keywords" gorm:"serializer:json"`
	Categories      []string  `json:"categories" gorm:"serializer:json"`
	Source          SourceTag `json:"source" gorm:"type:varchar(32);index"`

	RelevanceScore  float64   `json:"relevance_score" gorm:"default:0"`
	ConfidenceScore float64   `json:"confidence_score" gorm:"default:0"`
	SimilarityScore float64   `json:"similarity_score" gorm:"default:0"`
	PaperType       PaperType `json:"paper_type" gorm:"type:varchar(16);default:'unknown'"`

	Reasoning  string   `json:"reasoning,omitempty" gorm:"type:text"`
	KeyMatches []string `json:"key_matches,omitempty" gorm:"serializer:json"`
	Concerns   []string `json:"concerns,omitempty" gorm:"serializer:json"`

	SessionID string `json:"session_id,omitempty" gorm:"column:session_id;type:varchar(64);index"`
	Selected  bool   `json:"selected" gorm:"default:false;index"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM.
func (Paper) TableName() string {
	return "papers"
}

// NewPaper builds a Paper with every invariant-bearing field defaulted to
// its sentinel: empty sequences instead of nil, "Unknown" publication date,
// unknown paper type, scores at 0.0. Adapters fill in what they know and
// leave the rest at these defaults.
func NewPaper(paperID, title string, source SourceTag) *Paper {
	return &Paper{
		PaperID:         paperID,
		Title:           title,
		Authors:         []string{},
		PublicationDate: UnknownPublicationDate,
		Keywords:        []string{},
		Categories:      []string{},
		Source:          source,
		PaperType:       PaperTypeUnknown,
		KeyMatches:      []string{},
		Concerns:        []string{},
	}
}

// Normalize restores the sentinel invariants (non-nil sequences, clamped
// scores, non-negative citation count) after a paper has passed through
// code that may have left zero values in a nil-unsafe shape. It never
// raises; callers that need validation-as-rejection use SearchFilters
// construction instead (§7 rule 5).
func (p *Paper) Normalize() {
	if p.Authors == nil {
		p.Authors = []string{}
	}
	if p.Keywords == nil {
		p.Keywords = []string{}
	}
	if p.Categories == nil {
		p.Categories = []string{}
	}
	if p.KeyMatches == nil {
		p.KeyMatches = []string{}
	}
	if p.Concerns == nil {
		p.Concerns = []string{}
	}
	if p.PublicationDate == "" {
		p.PublicationDate = UnknownPublicationDate
	}
	if !IsValidPaperType(p.PaperType) {
		p.PaperType = PaperTypeUnknown
	}
	if !IsValidSource(p.Source) {
		p.Source = SourceUserUpload
	}
	if p.CitationCount < 0 {
		p.CitationCount = 0
	}
	p.RelevanceScore = clamp01(p.RelevanceScore)
	p.ConfidenceScore = clamp01(p.ConfidenceScore)
	p.SimilarityScore = clamp01(p.SimilarityScore)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9\s]`)
var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeTitle lowercases, strips non-alphanumeric characters, and
// collapses whitespace runs — the normalization the deduplicator and the
// session's stored-titles set both rely on (§4.2).
func NormalizeTitle(title string) string {
	t := strings.ToLower(title)
	t = nonAlphanumeric.ReplaceAllString(t, " ")
	t = whitespaceRun.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// Year returns the 4-digit publication year, or 0 if unknown/unparseable.
func (p *Paper) Year() int {
	if len(p.PublicationDate) != 4 {
		return 0
	}
	year := 0
	for _, r := range p.PublicationDate {
		if r < '0' || r > '9' {
			return 0
		}
		year = year*10 + int(r-'0')
	}
	return year
}
