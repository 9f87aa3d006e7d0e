package tasks

import (
	"context"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/rentfolio/rentfolio/internal/ingest"
)

// SyncRunTask executes one pending sync run.
type SyncRunTask struct {
	RunID uint `json:"run_id"`
}

// Config returns the queue configuration for sync runs. A run is never
// retried by the queue: the engine records run-level failures on the
// run row itself, and a retried attempt would find the run already
// terminal.
func (t SyncRunTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "sync_run",
		MaxAttempts: 1,
		Backoff:     time.Minute,
		Timeout:     90 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   7 * 24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// NewSyncRunQueue creates the queue processing sync runs.
func NewSyncRunQueue(engine *ingest.Engine) backlite.Queue {
	return backlite.NewQueue(func(ctx context.Context, task SyncRunTask) error {
		return engine.Execute(ctx, task.RunID)
	})
}
