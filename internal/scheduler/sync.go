// Package scheduler triggers periodic incremental sync runs on a cron
// schedule stored in settings. The actual work happens on the task
// queue; the scheduler only creates and enqueues runs.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/rentfolio/rentfolio/internal/entities"
	"github.com/rentfolio/rentfolio/internal/ingest"
	"github.com/rentfolio/rentfolio/internal/settingsstore"
)

// SyncScheduler manages the periodic incremental sync job.
type SyncScheduler struct {
	store   *settingsstore.SettingsStore
	service *ingest.Service
	log     *logrus.Logger

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

func NewSyncScheduler(store *settingsstore.SettingsStore, service *ingest.Service, log *logrus.Logger) *SyncScheduler {
	return &SyncScheduler{
		store:   store,
		service: service,
		log:     log,
		cron:    cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Start begins the scheduler if scheduled syncing is enabled.
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	config := s.store.GetSyncConfig()
	if !config.Enabled {
		s.log.Info("sync scheduler: disabled")
		return nil
	}
	if err := settingsstore.ValidateCronSchedule(config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", config.Schedule, err)
	}

	entryID, err := s.cron.AddFunc(config.Schedule, func() {
		s.triggerRun()
	})
	if err != nil {
		return fmt.Errorf("scheduling sync job: %w", err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	nextRun, _ := settingsstore.NextRunTime(config.Schedule)
	s.log.WithFields(logrus.Fields{
		"schedule": config.Schedule,
		"next_run": nextRun,
	}).Info("sync scheduler started")

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop waits for a running trigger to finish and halts the cron loop.
func (s *SyncScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	s.cancelFunc = nil
	s.log.Info("sync scheduler stopped")
}

// Reschedule restarts the scheduler after a settings change.
func (s *SyncScheduler) Reschedule() error {
	s.mu.Lock()
	wasRunning := s.isRunning
	s.mu.Unlock()

	if wasRunning {
		s.Stop()
	}
	return s.Start(context.Background())
}

// IsRunning reports whether the scheduler is active.
func (s *SyncScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun returns when the next scheduled sync fires, nil when the
// scheduler is stopped.
func (s *SyncScheduler) NextRun() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

// triggerRun enqueues one incremental run. An already active run is
// expected when syncs take longer than the schedule interval and is
// not an error.
func (s *SyncScheduler) triggerRun() {
	config := s.store.GetSyncConfig()
	if !config.Enabled {
		s.log.Info("scheduled sync skipped: disabled")
		return
	}

	run, err := s.service.StartRun(context.Background(), entities.SyncModeIncremental, false)
	switch {
	case errors.Is(err, ingest.ErrRunActive):
		s.log.Info("scheduled sync skipped: a run is already active")
	case err != nil:
		s.log.WithError(err).Error("scheduled sync failed to start")
	default:
		s.log.WithField("run", run.ID).Info("scheduled sync run queued")
	}
}
