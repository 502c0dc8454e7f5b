package repository

import (
	"context"
	"log/slog"

	"litscout/internal/errors"
	"litscout/internal/models"

	"gorm.io/gorm"
)

// paperRepository implements PaperRepository.
type paperRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewPaperRepository creates a new paper repository.
func NewPaperRepository(db *gorm.DB, logger *slog.Logger) PaperRepository {
	return &paperRepository{db: db, logger: logger}
}

func (r *paperRepository) Create(ctx context.Context, paper *models.Paper) error {
	if err := r.db.WithContext(ctx).Create(paper).Error; err != nil {
		if errors.IsDuplicateKeyError(err) {
			return errors.NewDuplicateError("paper already exists", "paper")
		}
		return errors.NewDatabaseError("create_paper", err)
	}
	return nil
}

func (r *paperRepository) CreateBatch(ctx context.Context, papers []models.Paper) error {
	if len(papers) == 0 {
		return nil
	}
	const batchSize = 100
	if err := r.db.WithContext(ctx).CreateInBatches(papers, batchSize).Error; err != nil {
		return errors.NewDatabaseError("create_papers_batch", err)
	}
	return nil
}

func (r *paperRepository) GetByID(ctx context.Context, paperID string) (*models.Paper, error) {
	var paper models.Paper
	err := r.db.WithContext(ctx).First(&paper, "paper_id = ?", paperID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("paper not found", "paper_id")
		}
		return nil, errors.NewDatabaseError("get_paper", err)
	}
	return &paper, nil
}

func (r *paperRepository) GetByDOI(ctx context.Context, doi string) (*models.Paper, error) {
	var paper models.Paper
	err := r.db.WithContext(ctx).First(&paper, "doi = ?", doi).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("paper not found", "doi")
		}
		return nil, errors.NewDatabaseError("get_paper_by_doi", err)
	}
	return &paper, nil
}

func (r *paperRepository) Update(ctx context.Context, paper *models.Paper) error {
	result := r.db.WithContext(ctx).Save(paper)
	if result.Error != nil {
		return errors.NewDatabaseError("update_paper", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("paper not found", "paper_id")
	}
	return nil
}

func (r *paperRepository) Delete(ctx context.Context, paperID string) error {
	result := r.db.WithContext(ctx).Delete(&models.Paper{}, "paper_id = ?", paperID)
	if result.Error != nil {
		return errors.NewDatabaseError("delete_paper", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("paper not found", "paper_id")
	}
	return nil
}

func (r *paperRepository) ListBySession(ctx context.Context, sessionID string, selectedOnly bool) ([]models.Paper, error) {
	db := r.db.WithContext(ctx).Where("session_id = ?", sessionID)
	if selectedOnly {
		db = db.Where("selected = ?", true)
	}
	var papers []models.Paper
	if err := db.Order("relevance_score DESC, citation_count DESC").Find(&papers).Error; err != nil {
		return nil, errors.NewDatabaseError("list_session_papers", err)
	}
	return papers, nil
}

func (r *paperRepository) ExistsByDOI(ctx context.Context, doi string) (bool, error) {
	if doi == "" {
		return false, nil
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Paper{}).Where("doi = ?", doi).Count(&count).Error; err != nil {
		return false, errors.NewDatabaseError("exists_by_doi", err)
	}
	return count > 0, nil
}

func (r *paperRepository) ExistsByNormalizedTitle(ctx context.Context, normalizedTitle string) (bool, error) {
	var titles []string
	if err := r.db.WithContext(ctx).Model(&models.Paper{}).Pluck("title", &titles).Error; err != nil {
		return false, errors.NewDatabaseError("exists_by_title", err)
	}
	for _, t := range titles {
		if models.NormalizeTitle(t) == normalizedTitle {
			return true, nil
		}
	}
	return false, nil
}

func (r *paperRepository) GetStats(ctx context.Context, sessionID string) (*PaperStats, error) {
	db := r.db.WithContext(ctx).Model(&models.Paper{})
	if sessionID != "" {
		db = db.Where("session_id = ?", sessionID)
	}

	var stats PaperStats
	if err := db.Count(&stats.TotalCount).Error; err != nil {
		return nil, errors.NewDatabaseError("get_paper_stats_total", err)
	}
	if err := db.Where("selected = ?", true).Count(&stats.SelectedCount).Error; err != nil {
		return nil, errors.NewDatabaseError("get_paper_stats_selected", err)
	}

	var avg struct {
		AvgRelevance  float64
		AvgConfidence float64
		AvgCitations  float64
	}
	if err := db.Select("AVG(relevance_score) as avg_relevance, AVG(confidence_score) as avg_confidence, AVG(citation_count) as avg_citations").Scan(&avg).Error; err != nil {
		return nil, errors.NewDatabaseError("get_paper_stats_avg", err)
	}
	stats.AvgRelevance = avg.AvgRelevance
	stats.AvgConfidence = avg.AvgConfidence
	stats.AvgCitations = avg.AvgCitations

	var sourceCounts []SourceCount
	if err := db.Select("source, COUNT(*) as count").Group("source").Scan(&sourceCounts).Error; err != nil {
		return nil, errors.NewDatabaseError("get_paper_stats_sources", err)
	}
	stats.SourceBreakdown = sourceCounts

	return &stats, nil
}
