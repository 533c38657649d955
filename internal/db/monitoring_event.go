package db

import (
	"context"
	"fmt"

	"github.com/stwalsh4118/pillarbox/internal/models"
)

// MonitoringEventRepository stores monitoring messages
type MonitoringEventRepository struct {
	db *DB
}

// NewMonitoringEventRepository creates a new monitoring event repository
func NewMonitoringEventRepository(db *DB) *MonitoringEventRepository {
	return &MonitoringEventRepository{db: db}
}

// Create inserts a monitoring event
func (r *MonitoringEventRepository) Create(ctx context.Context, event *models.MonitoringEvent) error {
	result := r.db.WithContext(ctx).Create(event)
	if result.Error != nil {
		return fmt.Errorf("failed to create monitoring event: %w", MapGormError(result.Error))
	}
	return nil
}

// ListBySession returns the events of a session in the order they were sent
func (r *MonitoringEventRepository) ListBySession(ctx context.Context, sessionID string) ([]*models.MonitoringEvent, error) {
	var events []*models.MonitoringEvent
	result := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, rowid ASC").
		Find(&events)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list monitoring events: %w", MapGormError(result.Error))
	}
	return events, nil
}

// ListRecent returns the latest events, newest first
func (r *MonitoringEventRepository) ListRecent(ctx context.Context, limit int) ([]*models.MonitoringEvent, error) {
	var events []*models.MonitoringEvent
	query := r.db.WithContext(ctx).Order("created_at DESC, rowid DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	result := query.Find(&events)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list recent monitoring events: %w", MapGormError(result.Error))
	}
	return events, nil
}

// CountBySession returns the number of events of a session
func (r *MonitoringEventRepository) CountBySession(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	result := r.db.WithContext(ctx).
		Model(&models.MonitoringEvent{}).
		Where("session_id = ?", sessionID).
		Count(&count)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to count monitoring events: %w", MapGormError(result.Error))
	}
	return count, nil
}
