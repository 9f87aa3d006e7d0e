package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rentfolio/rentfolio/internal/database/syncruns"
	"github.com/rentfolio/rentfolio/internal/entities"
)

// ActiveRunWindow is how recently a running run must have started to
// block a new one. Runs older than this are presumed crashed and no
// longer hold the slot.
const ActiveRunWindow = 2 * time.Hour

// ErrRunActive is returned when a new run is requested while another
// one is still in flight.
var ErrRunActive = errors.New("a sync run is already active")

// Enqueuer hands a created run to the background task queue.
type Enqueuer func(ctx context.Context, runID uint) error

// Service is the trigger path for sync runs, shared by the HTTP API,
// the CLI and the scheduler.
type Service struct {
	runs    *syncruns.Repository
	enqueue Enqueuer
	log     *logrus.Logger
}

func NewService(runs *syncruns.Repository, enqueue Enqueuer, log *logrus.Logger) *Service {
	return &Service{runs: runs, enqueue: enqueue, log: log}
}

// StartRun creates a pending run and enqueues it for execution. Unless
// force is set, it refuses while another run started within
// ActiveRunWindow is still running.
func (s *Service) StartRun(ctx context.Context, mode entities.SyncMode, force bool) (*entities.SyncRun, error) {
	if mode != entities.SyncModeFull && mode != entities.SyncModeIncremental {
		return nil, fmt.Errorf("unknown sync mode %q", mode)
	}
	if !force {
		active, err := s.runs.ActiveRunWithin(ActiveRunWindow)
		if err != nil {
			return nil, err
		}
		if active != nil {
			return nil, fmt.Errorf("%w: run %d started at %s",
				ErrRunActive, active.ID, active.StartedAt.Format(time.RFC3339))
		}
	}
	run, err := s.runs.Create(mode)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"run":   run.ID,
		"mode":  mode,
		"force": force,
	}).Info("sync run queued")
	if s.enqueue != nil {
		if err := s.enqueue(ctx, run.ID); err != nil {
			if failErr := s.runs.Fail(run, fmt.Sprintf("enqueue failed: %s", err)); failErr != nil {
				s.log.WithError(failErr).Error("failing unqueueable run")
			}
			return nil, fmt.Errorf("enqueueing run %d: %w", run.ID, err)
		}
	}
	return run, nil
}
