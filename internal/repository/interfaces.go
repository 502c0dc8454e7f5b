package repository

import (
	"context"

	"litscout/internal/models"
)

// PaperRepository persists Papers discovered during a search session (§6:
// "a papers table, persisted for later review/export").
type PaperRepository interface {
	Create(ctx context.Context, paper *models.Paper) error
	CreateBatch(ctx context.Context, papers []models.Paper) error
	GetByID(ctx context.Context, paperID string) (*models.Paper, error)
	GetByDOI(ctx context.Context, doi string) (*models.Paper, error)
	Update(ctx context.Context, paper *models.Paper) error
	Delete(ctx context.Context, paperID string) error

	ListBySession(ctx context.Context, sessionID string, selectedOnly bool) ([]models.Paper, error)
	ExistsByDOI(ctx context.Context, doi string) (bool, error)
	ExistsByNormalizedTitle(ctx context.Context, normalizedTitle string) (bool, error)

	GetStats(ctx context.Context, sessionID string) (*PaperStats, error)
}

// SessionRepository persists the summary row backing each Session (§6: "a
// search_sessions table keyed by session_id").
type SessionRepository interface {
	Create(ctx context.Context, record *models.SessionRecord) error
	GetByID(ctx context.Context, sessionID string) (*models.SessionRecord, error)
	Update(ctx context.Context, record *models.SessionRecord) error
	List(ctx context.Context, limit, offset int) ([]models.SessionRecord, error)
	Delete(ctx context.Context, sessionID string) error
}

// Transaction exposes repositories bound to a single database transaction.
type Transaction interface {
	Papers() PaperRepository
	Sessions() SessionRepository
}

// Repository aggregates all repository interfaces behind one handle owned
// by the pipeline controller.
type Repository interface {
	Papers() PaperRepository
	Sessions() SessionRepository

	Transaction(ctx context.Context, fn func(Transaction) error) error

	Ping(ctx context.Context) error
	Close() error
	GetStats() (map[string]interface{}, error)
}

// PaperStats summarizes the papers stored for one session, or for every
// stored paper when GetStats is given an empty session id. The pipeline
// controller does not call it; RepositoryManager does.
type PaperStats struct {
	TotalCount      int64   `json:"total_count"`
	SelectedCount   int64   `json:"selected_count"`
	AvgRelevance    float64 `json:"avg_relevance"`
	AvgConfidence   float64 `json:"avg_confidence"`
	AvgCitations    float64 `json:"avg_citations"`
	EarliestYear    int     `json:"earliest_year"`
	LatestYear      int     `json:"latest_year"`
	SourceBreakdown []SourceCount
}

// SourceCount tallies papers per originating adapter.
type SourceCount struct {
	Source string `json:"source"`
	Count  int64  `json:"count"`
}
