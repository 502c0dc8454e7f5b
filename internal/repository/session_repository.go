package repository

import (
	"context"
	"log/slog"

	"litscout/internal/errors"
	"litscout/internal/models"

	"gorm.io/gorm"
)

// sessionRepository implements SessionRepository.
type sessionRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewSessionRepository creates a new session repository.
func NewSessionRepository(db *gorm.DB, logger *slog.Logger) SessionRepository {
	return &sessionRepository{db: db, logger: logger}
}

func (r *sessionRepository) Create(ctx context.Context, record *models.SessionRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return errors.NewDatabaseError("create_session", err)
	}
	return nil
}

func (r *sessionRepository) GetByID(ctx context.Context, sessionID string) (*models.SessionRecord, error) {
	var record models.SessionRecord
	err := r.db.WithContext(ctx).First(&record, "session_id = ?", sessionID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFoundError("session not found", "session_id")
		}
		return nil, errors.NewDatabaseError("get_session", err)
	}
	return &record, nil
}

func (r *sessionRepository) Update(ctx context.Context, record *models.SessionRecord) error {
	result := r.db.WithContext(ctx).Save(record)
	if result.Error != nil {
		return errors.NewDatabaseError("update_session", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("session not found", "session_id")
	}
	return nil
}

func (r *sessionRepository) List(ctx context.Context, limit, offset int) ([]models.SessionRecord, error) {
	var records []models.SessionRecord
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Offset(offset).Find(&records).Error
	if err != nil {
		return nil, errors.NewDatabaseError("list_sessions", err)
	}
	return records, nil
}

func (r *sessionRepository) Delete(ctx context.Context, sessionID string) error {
	result := r.db.WithContext(ctx).Delete(&models.SessionRecord{}, "session_id = ?", sessionID)
	if result.Error != nil {
		return errors.NewDatabaseError("delete_session", result.Error)
	}
	if result.RowsAffected == 0 {
		return errors.NewNotFoundError("session not found", "session_id")
	}
	return nil
}
