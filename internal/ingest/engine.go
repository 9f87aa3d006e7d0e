// Package ingest pulls property-management records from the provider
// API, captures every payload as a raw event, and normalizes the
// payloads into entity rows via natural-key upserts. A run survives
// bad records: malformed payloads land in the run's error ledger while
// the rest of the batch proceeds. Only connection-level problems, such
// as failed authentication or a page that keeps erroring after
// retries, fail the whole run.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rentfolio/rentfolio/internal/database/portfolio"
	"github.com/rentfolio/rentfolio/internal/database/rawevents"
	"github.com/rentfolio/rentfolio/internal/database/syncruns"
	"github.com/rentfolio/rentfolio/internal/entities"
	"github.com/rentfolio/rentfolio/internal/propertyware"
	"github.com/rentfolio/rentfolio/internal/settingsstore"
)

// Source yields paginated resource listings. The production
// implementation wraps the rate-limited API client; tests substitute
// canned pages.
type Source interface {
	FetchResource(resource string, since *time.Time) Pages
}

// Pages iterates one resource listing. Next returns (nil, nil) when
// the listing is exhausted.
type Pages interface {
	Next(ctx context.Context) (*propertyware.Page, error)
}

// SourceFactory builds a Source for one run, so credential changes
// between runs take effect without a restart.
type SourceFactory func(creds propertyware.Credentials) Source

// NewClientSource returns the production factory backed by the API
// client.
func NewClientSource(opts propertyware.Options) SourceFactory {
	return func(creds propertyware.Credentials) Source {
		return clientSource{client: propertyware.NewClient(creds, opts)}
	}
}

type clientSource struct {
	client *propertyware.Client
}

func (s clientSource) FetchResource(resource string, since *time.Time) Pages {
	return s.client.FetchResource(resource, since)
}

// RunObserver is notified of terminal run outcomes. The alerting
// service implements it to track consecutive failures.
type RunObserver interface {
	RunSucceeded()
	RunFailed(summary string)
}

// Engine executes sync runs end to end: fetch, capture, normalize,
// account.
type Engine struct {
	runs      *syncruns.Repository
	raw       *rawevents.Repository
	portfolio *portfolio.Repository
	store     *settingsstore.SettingsStore
	source    SourceFactory
	observer  RunObserver
	log       *logrus.Logger
}

func NewEngine(
	runs *syncruns.Repository,
	raw *rawevents.Repository,
	portfolioRepo *portfolio.Repository,
	store *settingsstore.SettingsStore,
	source SourceFactory,
	observer RunObserver,
	log *logrus.Logger,
) *Engine {
	return &Engine{
		runs:      runs,
		raw:       raw,
		portfolio: portfolioRepo,
		store:     store,
		source:    source,
		observer:  observer,
		log:       log,
	}
}

// Execute runs one pending sync run to a terminal state. Run-level
// failures are recorded on the run row and reported to the observer;
// the returned error covers only infrastructure problems such as an
// unreachable database.
func (e *Engine) Execute(ctx context.Context, runID uint) error {
	run, err := e.runs.Get(runID)
	if err != nil {
		return fmt.Errorf("loading run %d: %w", runID, err)
	}
	if run.Terminal() {
		e.log.WithField("run", run.ID).Info("run already finished, nothing to do")
		return nil
	}
	tracker := NewTracker(run, e.runs, e.log)

	// The run enters running before any work, credential loading
	// included, so every failure path goes through running -> failed.
	if run.Status == entities.SyncRunStatusPending {
		if err := e.runs.MarkRunning(run); err != nil {
			return err
		}
	}

	creds, err := e.store.GetAPICredentials()
	if err != nil {
		return e.failRun(tracker, fmt.Errorf("loading credentials: %w", err))
	}

	var since *time.Time
	if run.Mode == entities.SyncModeIncremental {
		since = e.store.GetSyncLastAt()
	}
	e.log.WithFields(logrus.Fields{
		"run":  run.ID,
		"mode": run.Mode,
	}).Info("sync run starting")

	source := e.source(creds)
	var deferred []entities.RawEvent
	for _, resource := range entities.ResourceSyncOrder {
		if err := e.syncResource(ctx, tracker, source, resource, since, &deferred); err != nil {
			return e.failRun(tracker, fmt.Errorf("syncing %s: %w", resource, err))
		}
		deferred = e.retryDeferred(tracker, deferred)
	}
	e.exhaustDeferred(tracker, deferred)

	if err := tracker.Complete(); err != nil {
		return err
	}
	message := fmt.Sprintf("synced %d resources, %d errors",
		run.ResourceCount, run.ErrorCount)
	if err := e.store.SetSyncOutcome(string(run.Status), message, *run.StartedAt); err != nil {
		e.log.WithError(err).Warn("recording sync outcome")
	}
	if e.observer != nil {
		e.observer.RunSucceeded()
	}
	e.log.WithFields(logrus.Fields{
		"run":       run.ID,
		"resources": run.ResourceCount,
		"errors":    run.ErrorCount,
	}).Info("sync run completed")
	return nil
}

// syncResource streams one resource listing. Fetching the next page
// overlaps with normalizing the current one through a buffered
// channel.
func (e *Engine) syncResource(ctx context.Context, tracker *Tracker, source Source, resource string, since *time.Time, deferred *[]entities.RawEvent) error {
	start := time.Now()
	iterator := source.FetchResource(resource, since)

	pages := make(chan *propertyware.Page, 1)
	fetchErr := make(chan error, 1)
	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		defer close(pages)
		for {
			page, err := iterator.Next(fetchCtx)
			if err != nil {
				fetchErr <- err
				return
			}
			if page == nil {
				return
			}
			select {
			case pages <- page:
			case <-fetchCtx.Done():
				return
			}
		}
	}()

	for page := range pages {
		for _, record := range page.Results {
			event, err := e.captureRecord(tracker.Run().ID, resource, record)
			if err != nil {
				return err
			}
			if err := e.processEvent(tracker, event, deferred); err != nil {
				return err
			}
		}
	}
	select {
	case err := <-fetchErr:
		return err
	default:
	}
	return tracker.FinishResource(resource, time.Since(start))
}

// captureRecord persists the raw payload before normalization is
// attempted. The external id is probed leniently: a payload without a
// readable id is still captured and fails during normalization
// instead.
func (e *Engine) captureRecord(runID uint, resource string, record json.RawMessage) (*entities.RawEvent, error) {
	var probe struct {
		ID int64 `json:"id"`
	}
	_ = json.Unmarshal(record, &probe)
	event, err := e.raw.Capture(runID, resource, probe.ID, record)
	if err != nil {
		return nil, fmt.Errorf("capturing raw event: %w", err)
	}
	return event, nil
}

// processEvent normalizes one captured event. Record-level failures
// are accounted and swallowed; deferred events are parked for a later
// retry and stay unprocessed. The returned error covers only
// infrastructure failures.
func (e *Engine) processEvent(tracker *Tracker, event *entities.RawEvent, deferred *[]entities.RawEvent) error {
	result, err := e.normalize(event)
	switch {
	case errors.Is(err, errDeferred):
		*deferred = append(*deferred, *event)
		return nil
	case err != nil:
		tracker.RecordError(event.ResourceType, event.ExternalID, err)
	default:
		tracker.RecordOutcome(event.ResourceType, result)
	}
	if err := e.raw.MarkProcessed(event); err != nil {
		return fmt.Errorf("marking event %d processed: %w", event.ID, err)
	}
	return nil
}

// retryDeferred re-attempts parked events until a full pass makes no
// progress. Events that remain deferred are returned for a later
// attempt once more resource types have been synced.
func (e *Engine) retryDeferred(tracker *Tracker, deferred []entities.RawEvent) []entities.RawEvent {
	for len(deferred) > 0 {
		var still []entities.RawEvent
		for i := range deferred {
			event := deferred[i]
			result, err := e.normalize(&event)
			switch {
			case errors.Is(err, errDeferred):
				still = append(still, event)
				continue
			case err != nil:
				tracker.RecordError(event.ResourceType, event.ExternalID, err)
			default:
				tracker.RecordOutcome(event.ResourceType, result)
			}
			if err := e.raw.MarkProcessed(&event); err != nil {
				e.log.WithError(err).WithField("event", event.ID).Error("marking deferred event processed")
			}
		}
		if len(still) == len(deferred) {
			return still
		}
		deferred = still
	}
	return nil
}

// exhaustDeferred drains events whose parents never arrived. Each one
// becomes an error-ledger entry and a skipped record.
func (e *Engine) exhaustDeferred(tracker *Tracker, deferred []entities.RawEvent) {
	for i := range deferred {
		event := deferred[i]
		tracker.RecordError(event.ResourceType, event.ExternalID,
			fmt.Errorf("parent record never arrived for %s %d", event.ResourceType, event.ExternalID))
		if err := e.raw.MarkProcessed(&event); err != nil {
			e.log.WithError(err).WithField("event", event.ID).Error("marking orphaned event processed")
		}
	}
}

func (e *Engine) failRun(tracker *Tracker, cause error) error {
	run := tracker.Run()
	e.log.WithField("run", run.ID).WithError(cause).Error("sync run failed")
	if err := tracker.Fail(cause.Error()); err != nil {
		return err
	}
	if err := e.store.SetSyncOutcome(string(run.Status), cause.Error(), time.Now()); err != nil {
		e.log.WithError(err).Warn("recording sync outcome")
	}
	if e.observer != nil {
		e.observer.RunFailed(cause.Error())
	}
	return nil
}
