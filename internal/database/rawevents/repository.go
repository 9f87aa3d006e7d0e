// Package rawevents provides the append-only raw event store.
//
// Every payload fetched from the provider is persisted here, tagged by
// sync run and resource type, before normalization is attempted. That
// makes a crashed run replayable: unprocessed events can be consumed
// again without refetching.
package rawevents

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/rentfolio/rentfolio/internal/entities"
)

// ErrAlreadyProcessed indicates a second attempt to mark an event
// processed. ProcessedAt is set exactly once.
var ErrAlreadyProcessed = errors.New("raw event already processed")

// Repository handles all raw event database operations.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Capture durably persists one fetched payload. The row exists before
// normalization of the payload is ever attempted.
func (r *Repository) Capture(syncRunID uint, resourceType string, externalID int64, payload []byte) (*entities.RawEvent, error) {
	event := &entities.RawEvent{
		SyncRunID:    syncRunID,
		ResourceType: resourceType,
		ExternalID:   externalID,
		Payload:      payload,
		PulledAt:     time.Now(),
	}
	if err := r.db.Create(event).Error; err != nil {
		return nil, err
	}
	return event, nil
}

// Unprocessed returns events of one resource type that have not been
// consumed by normalization yet, oldest first.
func (r *Repository) Unprocessed(resourceType string) ([]entities.RawEvent, error) {
	var events []entities.RawEvent
	err := r.db.
		Where("resource_type = ? AND processed_at IS NULL", resourceType).
		Order("id").
		Find(&events).Error
	return events, err
}

// UnprocessedForRun limits Unprocessed to the events captured by one
// sync run.
func (r *Repository) UnprocessedForRun(syncRunID uint, resourceType string) ([]entities.RawEvent, error) {
	var events []entities.RawEvent
	err := r.db.
		Where("sync_run_id = ? AND resource_type = ? AND processed_at IS NULL", syncRunID, resourceType).
		Order("id").
		Find(&events).Error
	return events, err
}

// MarkProcessed stamps the event as consumed. This is the only
// mutation path for raw events and must be called exactly once per
// event, including for events classified as skipped.
func (r *Repository) MarkProcessed(event *entities.RawEvent) error {
	if event.ProcessedAt != nil {
		return ErrAlreadyProcessed
	}
	now := time.Now()
	result := r.db.Model(&entities.RawEvent{}).
		Where("id = ? AND processed_at IS NULL", event.ID).
		Update("processed_at", now)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAlreadyProcessed
	}
	event.ProcessedAt = &now
	return nil
}

// CountForRun returns how many events a run captured, per resource
// type.
func (r *Repository) CountForRun(syncRunID uint) (map[string]int64, error) {
	type row struct {
		ResourceType string
		Count        int64
	}
	var rows []row
	err := r.db.Model(&entities.RawEvent{}).
		Select("resource_type, COUNT(*) as count").
		Where("sync_run_id = ?", syncRunID).
		Group("resource_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.ResourceType] = r.Count
	}
	return counts, nil
}
