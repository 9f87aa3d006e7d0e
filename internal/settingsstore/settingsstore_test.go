package settingsstore

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rentfolio/rentfolio/internal/database/settings"
	"github.com/rentfolio/rentfolio/internal/entities"
	"github.com/rentfolio/rentfolio/internal/propertyware"
)

func setupStore(t *testing.T) (*SettingsStore, func()) {
	dbPath := "./test_settingsstore_" + t.Name() + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.Setting{}))

	store := New(settings.NewRepository(db))

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
	}
	return store, cleanup
}

func TestGetAPICredentials_MissingIsError(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	_, err := store.GetAPICredentials()
	assert.ErrorIs(t, err, propertyware.ErrMissingCredentials)
}

func TestGetAPICredentials_DatabaseOverridesEnvironment(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	t.Setenv("PW_CLIENT_ID", "env-id")
	t.Setenv("PW_CLIENT_SECRET", "env-secret")
	t.Setenv("PW_ORG_ID", "env-org")

	creds, err := store.GetAPICredentials()
	require.NoError(t, err)
	assert.Equal(t, "env-id", creds.ClientID)

	require.NoError(t, store.SetAPICredentials(propertyware.Credentials{
		ClientID:     "db-id",
		ClientSecret: "db-secret",
		OrgID:        "db-org",
	}))

	creds, err = store.GetAPICredentials()
	require.NoError(t, err)
	assert.Equal(t, "db-id", creds.ClientID)
	assert.Equal(t, "db-secret", creds.ClientSecret)
}

func TestSyncConfig_Defaults(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	cfg := store.GetSyncConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, defaultSyncSchedule, cfg.Schedule)
}

func TestSetSyncSchedule_RejectsInvalidCron(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	assert.Error(t, store.SetSyncSchedule("not a schedule"))
	require.NoError(t, store.SetSyncSchedule("0 * * * *"))
	assert.Equal(t, "0 * * * *", store.GetSyncConfig().Schedule)
}

func TestSyncOutcome_WatermarkAdvancesOnlyOnSuccess(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	assert.Nil(t, store.GetSyncLastAt())

	failedAt := time.Date(2026, 2, 1, 6, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetSyncOutcome("failed", "auth error", failedAt))
	assert.Nil(t, store.GetSyncLastAt())

	okAt := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetSyncOutcome("completed", "synced 120 resources", okAt))

	last := store.GetSyncLastAt()
	require.NotNil(t, last)
	assert.True(t, last.Equal(okAt))

	status, message := store.GetSyncLastStatus()
	assert.Equal(t, "completed", status)
	assert.Equal(t, "synced 120 resources", message)
}

func TestDedupDefaults(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	threshold, limit := store.GetDedupDefaults()
	assert.Equal(t, defaultDedupThreshold, threshold)
	assert.Equal(t, defaultDedupLimit, limit)

	require.NoError(t, store.repo.SetSetting(entities.SettingKeyDedupThreshold, "0.9"))
	require.NoError(t, store.repo.SetSetting(entities.SettingKeyDedupLimit, "10"))

	threshold, limit = store.GetDedupDefaults()
	assert.Equal(t, 0.9, threshold)
	assert.Equal(t, 10, limit)

	// Out-of-range values fall back to defaults.
	require.NoError(t, store.repo.SetSetting(entities.SettingKeyDedupThreshold, "7"))
	threshold, _ = store.GetDedupDefaults()
	assert.Equal(t, defaultDedupThreshold, threshold)
}

func TestGetAlertInterval(t *testing.T) {
	store, cleanup := setupStore(t)
	defer cleanup()

	assert.Equal(t, defaultAlertInterval, store.GetAlertInterval())

	require.NoError(t, store.repo.SetSetting(entities.SettingKeyAlertInterval, "30m"))
	assert.Equal(t, 30*time.Minute, store.GetAlertInterval())
}
