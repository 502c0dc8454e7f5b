package repository

import (
	"context"
	"fmt"
	"log/slog"

	"litscout/internal/config"

	"gorm.io/gorm"
)

// repository implements Repository.
type repository struct {
	db         *Database
	paperRepo  PaperRepository
	sessionRepo SessionRepository
	logger     *slog.Logger
}

// NewRepository creates a new repository instance backed by a fresh database
// connection.
func NewRepository(cfg *config.Config, logger *slog.Logger) (Repository, error) {
	db, err := NewDatabase(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	return &repository{
		db:          db,
		paperRepo:   NewPaperRepository(db.DB, logger),
		sessionRepo: NewSessionRepository(db.DB, logger),
		logger:      logger,
	}, nil
}

func (r *repository) Papers() PaperRepository     { return r.paperRepo }
func (r *repository) Sessions() SessionRepository { return r.sessionRepo }

// Transaction executes fn within a database transaction.
func (r *repository) Transaction(ctx context.Context, fn func(Transaction) error) error {
	return r.db.Transaction(ctx, func(tx *gorm.DB) error {
		txRepo := &transactionRepository{
			paperRepo:   NewPaperRepository(tx, r.logger),
			sessionRepo: NewSessionRepository(tx, r.logger),
		}
		return fn(txRepo)
	})
}

func (r *repository) Ping(ctx context.Context) error { return r.db.Ping(ctx) }
func (r *repository) Close() error                   { return r.db.Close() }
func (r *repository) GetStats() (map[string]interface{}, error) {
	return r.db.GetStats()
}

// transactionRepository implements Transaction.
type transactionRepository struct {
	paperRepo   PaperRepository
	sessionRepo SessionRepository
}

func (t *transactionRepository) Papers() PaperRepository     { return t.paperRepo }
func (t *transactionRepository) Sessions() SessionRepository { return t.sessionRepo }

// RepositoryManager provides health-check and maintenance operations layered
// over a Repository, mirroring the teacher's separation between raw CRUD and
// operational concerns.
type RepositoryManager struct {
	repo   Repository
	logger *slog.Logger
}

// NewRepositoryManager creates a new repository manager.
func NewRepositoryManager(repo Repository, logger *slog.Logger) *RepositoryManager {
	return &RepositoryManager{repo: repo, logger: logger}
}

// HealthCheck performs a lightweight check of the database connection.
func (rm *RepositoryManager) HealthCheck(ctx context.Context) error {
	if err := rm.repo.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if _, err := rm.repo.Papers().GetStats(ctx, ""); err != nil {
		return fmt.Errorf("paper repository health check failed: %w", err)
	}
	rm.logger.Info("repository health check passed")
	return nil
}

// GetDetailedStats returns database-level and paper-level statistics.
func (rm *RepositoryManager) GetDetailedStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	dbStats, err := rm.repo.GetStats()
	if err != nil {
		return nil, fmt.Errorf("failed to get database stats: %w", err)
	}
	stats["database"] = dbStats

	paperStats, err := rm.repo.Papers().GetStats(ctx, "")
	if err != nil {
		rm.logger.Warn("failed to get paper stats", slog.String("error", err.Error()))
	} else {
		stats["papers"] = paperStats
	}

	return stats, nil
}
