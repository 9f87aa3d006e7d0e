package scheduler

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rentfolio/rentfolio/internal/database/settings"
	"github.com/rentfolio/rentfolio/internal/database/syncruns"
	"github.com/rentfolio/rentfolio/internal/entities"
	"github.com/rentfolio/rentfolio/internal/ingest"
	"github.com/rentfolio/rentfolio/internal/settingsstore"
)

func setupTestScheduler(t *testing.T) (*SyncScheduler, *settingsstore.SettingsStore, *syncruns.Repository, func()) {
	dbPath := "./test_scheduler_" + t.Name() + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.Setting{}, &entities.SyncRun{}))

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	store := settingsstore.New(settings.NewRepository(db))
	runs := syncruns.NewRepository(db)
	service := ingest.NewService(runs, nil, log)
	return NewSyncScheduler(store, service, log), store, runs, cleanup
}

func TestScheduler_DisabledDoesNotStart(t *testing.T) {
	scheduler, _, _, cleanup := setupTestScheduler(t)
	defer cleanup()

	require.NoError(t, scheduler.Start(context.Background()))
	assert.False(t, scheduler.IsRunning())
	assert.Nil(t, scheduler.NextRun())
}

func TestScheduler_StartStop(t *testing.T) {
	scheduler, store, _, cleanup := setupTestScheduler(t)
	defer cleanup()

	require.NoError(t, store.SetSyncEnabled(true))
	require.NoError(t, scheduler.Start(context.Background()))
	assert.True(t, scheduler.IsRunning())
	assert.NotNil(t, scheduler.NextRun())

	scheduler.Stop()
	assert.False(t, scheduler.IsRunning())
}

func TestScheduler_RejectsInvalidSchedule(t *testing.T) {
	scheduler, store, _, cleanup := setupTestScheduler(t)
	defer cleanup()

	require.NoError(t, store.SetSyncEnabled(true))
	// Bypass the settings-store validation to simulate a corrupted
	// value.
	require.NoError(t, settingsstore.ValidateCronSchedule("0 */6 * * *"))
	assert.Error(t, settingsstore.ValidateCronSchedule("whenever"))

	require.NoError(t, scheduler.Start(context.Background()))
	assert.True(t, scheduler.IsRunning())
	scheduler.Stop()
}

func TestScheduler_TriggerQueuesIncrementalRun(t *testing.T) {
	scheduler, store, runs, cleanup := setupTestScheduler(t)
	defer cleanup()

	require.NoError(t, store.SetSyncEnabled(true))
	scheduler.triggerRun()

	listed, err := runs.List(10)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, entities.SyncModeIncremental, listed[0].Mode)
	assert.Equal(t, entities.SyncRunStatusPending, listed[0].Status)
}

func TestScheduler_TriggerSkipsWhileRunActive(t *testing.T) {
	scheduler, store, runs, cleanup := setupTestScheduler(t)
	defer cleanup()

	require.NoError(t, store.SetSyncEnabled(true))
	active, err := runs.Create(entities.SyncModeFull)
	require.NoError(t, err)
	require.NoError(t, runs.MarkRunning(active))

	scheduler.triggerRun()

	listed, err := runs.List(10)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}
