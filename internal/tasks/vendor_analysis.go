package tasks

import (
	"context"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/rentfolio/rentfolio/internal/dedup"
)

// VendorAnalysisTask executes one queued vendor duplicate analysis.
type VendorAnalysisTask struct {
	AnalysisID uint `json:"analysis_id"`
}

// Config returns the queue configuration for duplicate analyses. Not
// retried: a failed analysis is marked failed on its own row and the
// caller queues a fresh one.
func (t VendorAnalysisTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "vendor_analysis",
		MaxAttempts: 1,
		Backoff:     time.Minute,
		Timeout:     30 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   7 * 24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// NewVendorAnalysisQueue creates the queue processing duplicate
// analyses.
func NewVendorAnalysisQueue(engine *dedup.Engine) backlite.Queue {
	return backlite.NewQueue(func(ctx context.Context, task VendorAnalysisTask) error {
		return engine.RunAnalysis(ctx, task.AnalysisID)
	})
}
