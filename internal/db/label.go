package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stwalsh4118/pillarbox/internal/models"
	"gorm.io/gorm"
)

// LabelRepository handles database operations for analytics labels
type LabelRepository struct {
	db *DB
}

// NewLabelRepository creates a new label repository
func NewLabelRepository(db *DB) *LabelRepository {
	return &LabelRepository{db: db}
}

// ReplaceForMediaItem swaps every label of the media item in one transaction
func (r *LabelRepository) ReplaceForMediaItem(ctx context.Context, mediaItemID uuid.UUID, labels []models.AnalyticsLabel) error {
	return r.db.WithTransaction(ctx, func(tx *gorm.DB) error {
		return replaceLabels(tx, mediaItemID, labels)
	})
}

// ListByMediaItem returns the labels of a media item
func (r *LabelRepository) ListByMediaItem(ctx context.Context, mediaItemID uuid.UUID) ([]models.AnalyticsLabel, error) {
	var labels []models.AnalyticsLabel
	result := r.db.WithContext(ctx).
		Where("media_item_id = ?", mediaItemID.String()).
		Order("vendor ASC, key ASC").
		Find(&labels)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list labels: %w", MapGormError(result.Error))
	}
	return labels, nil
}

func replaceLabels(tx *gorm.DB, mediaItemID uuid.UUID, labels []models.AnalyticsLabel) error {
	result := tx.Where("media_item_id = ?", mediaItemID.String()).Delete(&models.AnalyticsLabel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete labels: %w", MapGormError(result.Error))
	}
	if len(labels) == 0 {
		return nil
	}

	for i := range labels {
		if labels[i].ID == uuid.Nil {
			labels[i].ID = uuid.New()
		}
		labels[i].MediaItemID = mediaItemID
	}

	result = tx.Create(&labels)
	if result.Error != nil {
		return fmt.Errorf("failed to create labels: %w", MapGormError(result.Error))
	}
	return nil
}
