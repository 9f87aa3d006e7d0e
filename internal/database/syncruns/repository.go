// Package syncruns provides database operations for sync run
// lifecycle tracking.
//
// Runs move pending -> running -> completed|failed. No other
// transitions are legal; a terminal run is never restarted, a fresh
// run is created instead.
package syncruns

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/rentfolio/rentfolio/internal/entities"
)

// ErrIllegalTransition indicates an attempted status change that the
// run state machine does not allow.
var ErrIllegalTransition = errors.New("illegal sync run transition")

// Repository handles all sync run database operations.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new pending run.
func (r *Repository) Create(mode entities.SyncMode) (*entities.SyncRun, error) {
	run := &entities.SyncRun{
		Mode:   mode,
		Status: entities.SyncRunStatusPending,
	}
	if err := r.db.Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

func (r *Repository) Get(id uint) (*entities.SyncRun, error) {
	var run entities.SyncRun
	if err := r.db.First(&run, id).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// List returns the most recent runs, newest first.
func (r *Repository) List(limit int) ([]entities.SyncRun, error) {
	var runs []entities.SyncRun
	err := r.db.Order("id DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// ActiveRunWithin returns a run in running state started within the
// recency window, or nil when none exists. The trigger path uses this
// to refuse overlapping syncs.
func (r *Repository) ActiveRunWithin(window time.Duration) (*entities.SyncRun, error) {
	var run entities.SyncRun
	cutoff := time.Now().Add(-window)
	err := r.db.
		Where("status = ? AND started_at >= ?", entities.SyncRunStatusRunning, cutoff).
		Order("started_at DESC").
		First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// MarkRunning transitions a pending run to running.
func (r *Repository) MarkRunning(run *entities.SyncRun) error {
	if run.Status != entities.SyncRunStatusPending {
		return fmt.Errorf("%w: %s -> running", ErrIllegalTransition, run.Status)
	}
	now := time.Now()
	run.Status = entities.SyncRunStatusRunning
	run.StartedAt = &now
	return r.db.Save(run).Error
}

// SaveProgress persists the run's metadata mid-flight. Only legal
// while the run is running.
func (r *Repository) SaveProgress(run *entities.SyncRun) error {
	if run.Status != entities.SyncRunStatusRunning {
		return fmt.Errorf("%w: progress update on %s run", ErrIllegalTransition, run.Status)
	}
	return r.db.Save(run).Error
}

// Complete transitions a running run to completed, recording the total
// resources synced.
func (r *Repository) Complete(run *entities.SyncRun) error {
	if run.Status != entities.SyncRunStatusRunning {
		return fmt.Errorf("%w: %s -> completed", ErrIllegalTransition, run.Status)
	}
	now := time.Now()
	run.Status = entities.SyncRunStatusCompleted
	run.FinishedAt = &now
	run.ResourceCount = run.Metadata.TotalResources()
	run.ErrorCount = run.Metadata.TotalErrors()
	return r.db.Save(run).Error
}

// Fail transitions a running run to failed with a human-readable
// summary. Reserved for run-level failures; record-level errors are
// tolerated and land in the error ledger instead. A pending run may
// fail directly only when it could not be handed to the queue and so
// never started.
func (r *Repository) Fail(run *entities.SyncRun, summary string) error {
	if run.Status != entities.SyncRunStatusRunning && run.Status != entities.SyncRunStatusPending {
		return fmt.Errorf("%w: %s -> failed", ErrIllegalTransition, run.Status)
	}
	now := time.Now()
	run.Status = entities.SyncRunStatusFailed
	run.FinishedAt = &now
	run.ErrorSummary = summary
	run.ResourceCount = run.Metadata.TotalResources()
	run.ErrorCount = run.Metadata.TotalErrors()
	if run.ErrorCount == 0 {
		run.ErrorCount = 1
	}
	return r.db.Save(run).Error
}
