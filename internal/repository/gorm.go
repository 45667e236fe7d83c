package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	apperrors "github.com/size-analysis/pkg/errors"
	"github.com/size-analysis/pkg/model"
)

// GormLoadRepository implements LoadRepository using GORM.
type GormLoadRepository struct {
	db *gorm.DB
}

// NewGormLoadRepository creates a new GormLoadRepository.
func NewGormLoadRepository(db *gorm.DB) *GormLoadRepository {
	return &GormLoadRepository{db: db}
}

// Migrate creates or updates the load table.
func (r *GormLoadRepository) Migrate() error {
	return r.db.AutoMigrate(&SizeLoad{})
}

// CreateLoad inserts a new load.
func (r *GormLoadRepository) CreateLoad(ctx context.Context, rec *model.LoadRecord) error {
	if err := r.db.WithContext(ctx).Create(SizeLoadFromModel(rec)).Error; err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to create load", err)
	}
	return nil
}

// FinishLoad stores the outcome of a load.
func (r *GormLoadRepository) FinishLoad(ctx context.Context, id string, outcome *LoadOutcome) error {
	finished := outcome.FinishedAt
	result := r.db.WithContext(ctx).
		Model(&SizeLoad{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       outcome.Status,
			"file_entries": outcome.FileEntries,
			"root_size":    outcome.RootSize,
			"diff_mode":    outcome.DiffMode,
			"fingerprint":  outcome.Fingerprint,
			"error":        outcome.Error,
			"finished_at":  &finished,
		})
	if result.Error != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to finish load", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("load not found: %s", id))
	}
	return nil
}

// GetLoad retrieves a load by its ID.
func (r *GormLoadRepository) GetLoad(ctx context.Context, id string) (*model.LoadRecord, error) {
	var row SizeLoad
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("load not found: %s", id))
		}
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to get load", err)
	}
	return row.ToModel(), nil
}

// ListLoads returns the most recent loads.
func (r *GormLoadRepository) ListLoads(ctx context.Context, sessionID string, limit int) ([]*model.LoadRecord, error) {
	var rows []SizeLoad

	q := r.db.WithContext(ctx).Order("started_at DESC").Limit(normalizeLimit(limit))
	if sessionID != "" {
		q = q.Where("session_id = ?", sessionID)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to list loads", err)
	}

	result := make([]*model.LoadRecord, len(rows))
	for i := range rows {
		result[i] = rows[i].ToModel()
	}
	return result, nil
}
