package ingest

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rentfolio/rentfolio/internal/database/portfolio"
	"github.com/rentfolio/rentfolio/internal/database/syncruns"
	"github.com/rentfolio/rentfolio/internal/entities"
)

// Tracker accumulates per-resource counters and the error ledger for
// one run and persists them through the run repository. It owns every
// mutation of its SyncRun row; no other component writes the run while
// it executes.
type Tracker struct {
	run  *entities.SyncRun
	runs *syncruns.Repository
	log  *logrus.Logger
}

func NewTracker(run *entities.SyncRun, runs *syncruns.Repository, log *logrus.Logger) *Tracker {
	return &Tracker{run: run, runs: runs, log: log}
}

func (t *Tracker) Run() *entities.SyncRun {
	return t.run
}

// RecordOutcome increments the outcome counter for one processed
// record.
func (t *Tracker) RecordOutcome(resource string, result portfolio.UpsertResult) {
	metric := t.run.Metadata.Metric(resource)
	switch result {
	case portfolio.ResultCreated:
		metric.Created++
	case portfolio.ResultUpdated:
		metric.Updated++
	case portfolio.ResultSkipped:
		metric.Skipped++
	}
}

// RecordError appends a record-level error to the run's ledger. The
// record is also counted as skipped: every record gets exactly one
// outcome counter, and errors are tracked on top of that.
func (t *Tracker) RecordError(resource string, externalID int64, err error) {
	t.run.Metadata.AppendError(resource, entities.SyncError{
		ExternalID: externalID,
		Message:    err.Error(),
		OccurredAt: time.Now().UTC(),
	})
	t.run.Metadata.Metric(resource).Skipped++
	t.log.WithFields(logrus.Fields{
		"run":         t.run.ID,
		"resource":    resource,
		"external_id": externalID,
	}).WithError(err).Warn("record failed to normalize")
}

// FinishResource stamps the resource's duration and checkpoints the
// run row so progress survives a crash mid-run.
func (t *Tracker) FinishResource(resource string, took time.Duration) error {
	metric := t.run.Metadata.Metric(resource)
	metric.DurationMS = took.Milliseconds()
	if err := t.runs.SaveProgress(t.run); err != nil {
		return fmt.Errorf("checkpointing run %d: %w", t.run.ID, err)
	}
	t.log.WithFields(logrus.Fields{
		"run":      t.run.ID,
		"resource": resource,
		"created":  metric.Created,
		"updated":  metric.Updated,
		"skipped":  metric.Skipped,
		"errors":   metric.Errors,
		"took":     took.Round(time.Millisecond).String(),
	}).Info("resource sync finished")
	return nil
}

// Complete moves the run to its successful terminal state.
func (t *Tracker) Complete() error {
	return t.runs.Complete(t.run)
}

// Fail moves the run to its failed terminal state with a summary of
// what went wrong. Partial metrics accumulated before the failure are
// preserved.
func (t *Tracker) Fail(summary string) error {
	return t.runs.Fail(t.run, summary)
}
