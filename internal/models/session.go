package models

import (
	"strings"
	"time"
)

// Session is the in-memory state owned by the pipeline controller for the
// lifetime of one query thread. It is mutated only by the controller
// goroutine; worker tasks (adapters, validator, augmenter) return values
// and never reach into it (§5 shared-resource policy).
type Session struct {
	SessionID            string
	Query                string
	Filters              *SearchFilters
	StartTime            time.Time
	CurrentSessionPapers []Paper
	AllFoundPapers       []Paper
	StoredDOIs           map[string]struct{}
	StoredTitles         map[string]struct{}
	GeminiModelUsed      string
}

// NewSession creates a fresh session with empty accumulators.
func NewSession(sessionID, query string, filters *SearchFilters) *Session {
	return &Session{
		SessionID:            sessionID,
		Query:                query,
		Filters:              filters,
		StartTime:            time.Now(),
		CurrentSessionPapers: []Paper{},
		AllFoundPapers:       []Paper{},
		StoredDOIs:           make(map[string]struct{}),
		StoredTitles:         make(map[string]struct{}),
		GeminiModelUsed:      "gemini-2.5-flash",
	}
}

// Accumulate merges newly found papers into AllFoundPapers, recording DOIs
// and normalized titles so later rounds within the same session can
// recognize repeats even before the deduplicator runs.
func (s *Session) Accumulate(papers []Paper) {
	for _, p := range papers {
		if p.DOI != "" {
			s.StoredDOIs[strings.ToLower(p.DOI)] = struct{}{}
		}
		s.StoredTitles[NormalizeTitle(p.Title)] = struct{}{}
	}
	s.AllFoundPapers = append(s.AllFoundPapers, papers...)
}

// SessionRecord is the persisted row backing a Session (§6: "a
// search_sessions table keyed by session_id").
type SessionRecord struct {
	SessionID       string    `json:"session_id" gorm:"primaryKey;column:session_id;type:varchar(64)"`
	Query           string    `json:"query" gorm:"type:text;not null"`
	GeminiModelUsed string    `json:"gemini_model_used" gorm:"type:varchar(64)"`
	StartTime       time.Time `json:"start_time"`
	PaperCount      int       `json:"paper_count" gorm:"default:0"`
	AvgRelevance    float64   `json:"avg_relevance" gorm:"default:0"`
	CreatedAt       time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName returns the table name for GORM.
func (SessionRecord) TableName() string {
	return "search_sessions"
}

// EmbeddedPaper is a Paper enriched with its embedding vector and the
// provenance of when/why it was embedded (§3).
type EmbeddedPaper struct {
	Paper
	Embedding   []float32 `json:"embedding"`
	Timestamp   time.Time `json:"timestamp"`
	SessionID   string    `json:"session_id"`
	SearchQuery string    `json:"search_query"`
}

// RelevanceScore is the result contract of the relevance validator (§4.3):
// every field is always populated and in range, whether it came from the
// LLM or the fallback scorer.
type RelevanceScore struct {
	RelevanceScore  float64  `json:"relevance_score"`
	ConfidenceScore float64  `json:"confidence_score"`
	Reasoning       string   `json:"reasoning"`
	KeyMatches      []string `json:"key_matches"`
	Concerns        []string `json:"concerns"`
}

// NewRelevanceScore builds a RelevanceScore with clamped scores and
// non-nil sequences; this is the single initialization point the source's
// duplicated __post_init__ logic collapses to (§9 open question).
func NewRelevanceScore(relevance, confidence float64, reasoning string, keyMatches, concerns []string) RelevanceScore {
	if keyMatches == nil {
		keyMatches = []string{}
	}
	if concerns == nil {
		concerns = []string{}
	}
	return RelevanceScore{
		RelevanceScore:  clamp01(relevance),
		ConfidenceScore: clamp01(confidence),
		Reasoning:       reasoning,
		KeyMatches:      keyMatches,
		Concerns:        concerns,
	}
}
