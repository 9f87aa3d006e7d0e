package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/rentfolio/rentfolio/internal/database"
	"github.com/rentfolio/rentfolio/internal/database/portfolio"
	"github.com/rentfolio/rentfolio/internal/database/rawevents"
	"github.com/rentfolio/rentfolio/internal/database/settings"
	"github.com/rentfolio/rentfolio/internal/database/syncruns"
	"github.com/rentfolio/rentfolio/internal/entities"
	"github.com/rentfolio/rentfolio/internal/propertyware"
	"github.com/rentfolio/rentfolio/internal/settingsstore"
)

type fakePages struct {
	pages []*propertyware.Page
	err   error
	idx   int
}

func (p *fakePages) Next(ctx context.Context) (*propertyware.Page, error) {
	if p.idx < len(p.pages) {
		page := p.pages[p.idx]
		p.idx++
		return page, nil
	}
	if p.err != nil {
		return nil, p.err
	}
	return nil, nil
}

// fakeSource serves canned pages per resource type and records the
// watermark each fetch was asked for.
type fakeSource struct {
	pages map[string][]*propertyware.Page
	errs  map[string]error
	since map[string]*time.Time
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		pages: make(map[string][]*propertyware.Page),
		errs:  make(map[string]error),
		since: make(map[string]*time.Time),
	}
}

func (s *fakeSource) FetchResource(resource string, since *time.Time) Pages {
	s.since[resource] = since
	return &fakePages{pages: s.pages[resource], err: s.errs[resource]}
}

type fakeObserver struct {
	successes int
	failures  []string
}

func (o *fakeObserver) RunSucceeded() {
	o.successes++
}

func (o *fakeObserver) RunFailed(summary string) {
	o.failures = append(o.failures, summary)
}

type engineFixture struct {
	engine   *Engine
	runs     *syncruns.Repository
	raw      *rawevents.Repository
	store    *settingsstore.SettingsStore
	observer *fakeObserver
	db       *gorm.DB
}

func setupTestEngine(t *testing.T, source *fakeSource) (*engineFixture, func()) {
	t.Setenv("PW_CLIENT_ID", "test-client")
	t.Setenv("PW_CLIENT_SECRET", "test-secret")
	t.Setenv("PW_ORG_ID", "test-org")

	dbPath := "./test_engine_" + t.Name() + ".db"
	log := logrus.New()
	log.SetOutput(io.Discard)

	db, err := database.NewDatabase(dbPath, log)
	require.NoError(t, err)
	cleanup := func() {
		db.Close()
		os.Remove(dbPath)
	}

	runs := syncruns.NewRepository(db.DB)
	raw := rawevents.NewRepository(db.DB)
	portfolioRepo := portfolio.NewRepository(db.DB)
	store := settingsstore.New(settings.NewRepository(db.DB))
	observer := &fakeObserver{}

	factory := func(creds propertyware.Credentials) Source { return source }
	engine := NewEngine(runs, raw, portfolioRepo, store, factory, observer, log)

	return &engineFixture{
		engine:   engine,
		runs:     runs,
		raw:      raw,
		store:    store,
		observer: observer,
		db:       db.DB,
	}, cleanup
}

func startRun(t *testing.T, f *engineFixture, mode entities.SyncMode) *entities.SyncRun {
	run, err := f.runs.Create(mode)
	require.NoError(t, err)
	return run
}

func propertyRecord(id int64) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{"id": %d, "name": "Property %d", "city": "Denver"}`, id, id))
}

func page(records ...json.RawMessage) *propertyware.Page {
	return &propertyware.Page{Results: records, TotalResults: len(records)}
}

func TestEngine_PaginatedRun_Metrics(t *testing.T) {
	source := newFakeSource()
	var first, second, third []json.RawMessage
	for id := int64(1); id <= 50; id++ {
		first = append(first, propertyRecord(id))
	}
	// Same ids again, with one malformed record in the middle.
	for id := int64(1); id <= 50; id++ {
		if id == 25 {
			second = append(second, json.RawMessage(`{"id": "not-a-number"}`))
			continue
		}
		second = append(second, propertyRecord(id))
	}
	for id := int64(39); id <= 50; id++ {
		third = append(third, propertyRecord(id))
	}
	source.pages[entities.ResourceProperty] = []*propertyware.Page{
		page(first...), page(second...), page(third...),
	}

	f, cleanup := setupTestEngine(t, source)
	defer cleanup()

	run := startRun(t, f, entities.SyncModeFull)
	require.NoError(t, f.engine.Execute(context.Background(), run.ID))

	run, err := f.runs.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.SyncRunStatusCompleted, run.Status)

	metric := run.Metadata.Metric(entities.ResourceProperty)
	assert.Equal(t, 50, metric.Created)
	assert.Equal(t, 61, metric.Updated)
	assert.Equal(t, 1, metric.Skipped)
	assert.Equal(t, 1, metric.Errors)
	assert.Equal(t, 111, run.ResourceCount)
	assert.Equal(t, 1, run.ErrorCount)
	require.Len(t, run.Metadata.ResourceErrors[entities.ResourceProperty], 1)

	var properties int64
	require.NoError(t, f.db.Model(&entities.Property{}).Count(&properties).Error)
	assert.EqualValues(t, 50, properties)

	unprocessed, err := f.raw.Unprocessed(entities.ResourceProperty)
	require.NoError(t, err)
	assert.Empty(t, unprocessed)

	assert.Equal(t, 1, f.observer.successes)
	require.NotNil(t, f.store.GetSyncLastAt())
	assert.WithinDuration(t, *run.StartedAt, *f.store.GetSyncLastAt(), time.Second)
}

func TestEngine_RecordErrorsAreContained(t *testing.T) {
	source := newFakeSource()
	var records []json.RawMessage
	for i := 0; i < 15; i++ {
		records = append(records, json.RawMessage(`{"id": []}`))
	}
	for id := int64(1); id <= 5; id++ {
		records = append(records, json.RawMessage(fmt.Sprintf(`{"id": %d, "name": "Vendor %d"}`, id, id)))
	}
	source.pages[entities.ResourceVendor] = []*propertyware.Page{page(records...)}

	f, cleanup := setupTestEngine(t, source)
	defer cleanup()

	run := startRun(t, f, entities.SyncModeFull)
	require.NoError(t, f.engine.Execute(context.Background(), run.ID))

	run, err := f.runs.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.SyncRunStatusCompleted, run.Status)

	metric := run.Metadata.Metric(entities.ResourceVendor)
	assert.Equal(t, 5, metric.Created)
	assert.Equal(t, 15, metric.Skipped)
	assert.Equal(t, 15, metric.Errors)
	// The ledger is capped; the counter is not.
	assert.Len(t, run.Metadata.ResourceErrors[entities.ResourceVendor], entities.MaxErrorsPerResource)
}

func TestEngine_OrphanedChildBecomesError(t *testing.T) {
	source := newFakeSource()
	source.pages[entities.ResourceProperty] = []*propertyware.Page{page(propertyRecord(1))}
	source.pages[entities.ResourceUnit] = []*propertyware.Page{page(
		json.RawMessage(`{"id": 10, "property_id": 1, "name": "1A"}`),
		json.RawMessage(`{"id": 11, "property_id": 999, "name": "ghost"}`),
	)}

	f, cleanup := setupTestEngine(t, source)
	defer cleanup()

	run := startRun(t, f, entities.SyncModeFull)
	require.NoError(t, f.engine.Execute(context.Background(), run.ID))

	run, err := f.runs.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.SyncRunStatusCompleted, run.Status)

	metric := run.Metadata.Metric(entities.ResourceUnit)
	assert.Equal(t, 1, metric.Created)
	assert.Equal(t, 1, metric.Skipped)
	assert.Equal(t, 1, metric.Errors)
	errs := run.Metadata.ResourceErrors[entities.ResourceUnit]
	require.Len(t, errs, 1)
	assert.EqualValues(t, 11, errs[0].ExternalID)
	assert.Contains(t, errs[0].Message, "parent record never arrived")

	unprocessed, err := f.raw.Unprocessed(entities.ResourceUnit)
	require.NoError(t, err)
	assert.Empty(t, unprocessed)
}

func TestEngine_ReplayIsIdempotent(t *testing.T) {
	makeSource := func() *fakeSource {
		source := newFakeSource()
		source.pages[entities.ResourceProperty] = []*propertyware.Page{page(
			propertyRecord(1), propertyRecord(2), propertyRecord(3),
		)}
		return source
	}

	f, cleanup := setupTestEngine(t, makeSource())
	defer cleanup()

	run := startRun(t, f, entities.SyncModeFull)
	require.NoError(t, f.engine.Execute(context.Background(), run.ID))

	// Second run over identical payloads only updates.
	second := setupSecondSource(f, makeSource())
	rerun := startRun(t, f, entities.SyncModeFull)
	require.NoError(t, second.Execute(context.Background(), rerun.ID))

	rerun, err := f.runs.Get(rerun.ID)
	require.NoError(t, err)
	metric := rerun.Metadata.Metric(entities.ResourceProperty)
	assert.Equal(t, 0, metric.Created)
	assert.Equal(t, 3, metric.Updated)

	var properties int64
	require.NoError(t, f.db.Model(&entities.Property{}).Count(&properties).Error)
	assert.EqualValues(t, 3, properties)
}

// setupSecondSource rebuilds the engine around a fresh source while
// keeping the fixture's database.
func setupSecondSource(f *engineFixture, source *fakeSource) *Engine {
	log := logrus.New()
	log.SetOutput(io.Discard)
	factory := func(creds propertyware.Credentials) Source { return source }
	return NewEngine(f.runs, f.raw, portfolio.NewRepository(f.db), f.store, factory, f.observer, log)
}

func TestEngine_AuthFailureFailsRun(t *testing.T) {
	source := newFakeSource()
	source.errs[entities.ResourceProperty] = propertyware.ErrAuthFailed

	f, cleanup := setupTestEngine(t, source)
	defer cleanup()

	run := startRun(t, f, entities.SyncModeFull)
	require.NoError(t, f.engine.Execute(context.Background(), run.ID))

	run, err := f.runs.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.SyncRunStatusFailed, run.Status)
	assert.Contains(t, run.ErrorSummary, "authentication failed")
	require.Len(t, f.observer.failures, 1)

	// A failed run never advances the watermark.
	assert.Nil(t, f.store.GetSyncLastAt())
}

func TestEngine_MissingCredentialsFailsRun(t *testing.T) {
	f, cleanup := setupTestEngine(t, newFakeSource())
	defer cleanup()
	t.Setenv("PW_CLIENT_ID", "")
	t.Setenv("PW_CLIENT_SECRET", "")
	t.Setenv("PW_ORG_ID", "")

	run := startRun(t, f, entities.SyncModeFull)
	require.NoError(t, f.engine.Execute(context.Background(), run.ID))

	run, err := f.runs.Get(run.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.SyncRunStatusFailed, run.Status)
	assert.Contains(t, run.ErrorSummary, "credentials")

	// The run entered running before the credential fetch, so even a
	// config failure leaves a start timestamp behind.
	require.NotNil(t, run.StartedAt)
	require.NotNil(t, run.FinishedAt)
}

func TestEngine_IncrementalUsesWatermark(t *testing.T) {
	source := newFakeSource()
	f, cleanup := setupTestEngine(t, source)
	defer cleanup()

	watermark := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, f.store.SetSyncOutcome(
		string(entities.SyncRunStatusCompleted), "ok", watermark))

	run := startRun(t, f, entities.SyncModeIncremental)
	require.NoError(t, f.engine.Execute(context.Background(), run.ID))

	since := source.since[entities.ResourceProperty]
	require.NotNil(t, since)
	assert.True(t, watermark.Equal(*since))
}

func TestEngine_FullSyncIgnoresWatermark(t *testing.T) {
	source := newFakeSource()
	f, cleanup := setupTestEngine(t, source)
	defer cleanup()

	require.NoError(t, f.store.SetSyncOutcome(
		string(entities.SyncRunStatusCompleted), "ok", time.Now()))

	run := startRun(t, f, entities.SyncModeFull)
	require.NoError(t, f.engine.Execute(context.Background(), run.ID))

	assert.Nil(t, source.since[entities.ResourceProperty])
}

func TestEngine_TerminalRunIsNotRerun(t *testing.T) {
	source := newFakeSource()
	source.pages[entities.ResourceProperty] = []*propertyware.Page{page(propertyRecord(1))}

	f, cleanup := setupTestEngine(t, source)
	defer cleanup()

	run := startRun(t, f, entities.SyncModeFull)
	require.NoError(t, f.engine.Execute(context.Background(), run.ID))
	require.NoError(t, f.engine.Execute(context.Background(), run.ID))

	var events int64
	require.NoError(t, f.db.Model(&entities.RawEvent{}).Count(&events).Error)
	assert.EqualValues(t, 1, events)
}
