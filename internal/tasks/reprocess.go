package tasks

import (
	"context"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/sirupsen/logrus"

	"github.com/rentfolio/rentfolio/internal/reclassify"
)

// ReprocessTask rebuilds derived utility expenses for a date range.
// Nil bounds leave that side open.
type ReprocessTask struct {
	From *time.Time `json:"from,omitempty"`
	To   *time.Time `json:"to,omitempty"`
}

// Config returns the queue configuration for reprocessing jobs.
// Reprocessing is idempotent, so a retry after a transient database
// error is safe.
func (t ReprocessTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "utility_reprocess",
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		Timeout:     30 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   7 * 24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// NewReprocessQueue creates the queue processing reclassification
// jobs.
func NewReprocessQueue(engine *reclassify.Engine, log *logrus.Logger) backlite.Queue {
	return backlite.NewQueue(func(ctx context.Context, task ReprocessTask) error {
		result, err := engine.ReprocessRange(task.From, task.To)
		if err != nil {
			return err
		}
		log.WithFields(logrus.Fields{
			"examined":  result.BillsExamined,
			"created":   result.Created,
			"unmatched": result.Unmatched,
			"errors":    result.Errors,
		}).Info("queued reprocess finished")
		return nil
	})
}
