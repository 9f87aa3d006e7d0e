package alerts

import (
	"io"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rentfolio/rentfolio/internal/database/settings"
	"github.com/rentfolio/rentfolio/internal/entities"
	"github.com/rentfolio/rentfolio/internal/settingsstore"
)

type recordingNotifier struct {
	calls []int
}

func (n *recordingNotifier) NotifySyncFailure(connectionKey string, consecutiveFailures int, lastError string) error {
	n.calls = append(n.calls, consecutiveFailures)
	return nil
}

func setupTestService(t *testing.T, threshold int) (*Service, *recordingNotifier, *gorm.DB, func()) {
	dbPath := "./test_alerts_" + t.Name() + ".db"

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.SyncFailureAlert{}, &entities.Setting{}))

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
		os.Remove(dbPath)
	}

	log := logrus.New()
	log.SetOutput(io.Discard)
	store := settingsstore.New(settings.NewRepository(db))
	notifier := &recordingNotifier{}
	return NewService(db, store, notifier, threshold, log), notifier, db, cleanup
}

func TestService_NotifiesAtThreshold(t *testing.T) {
	service, notifier, _, cleanup := setupTestService(t, 3)
	defer cleanup()

	service.RunFailed("auth failed")
	service.RunFailed("auth failed")
	assert.Empty(t, notifier.calls)

	service.RunFailed("auth failed")
	assert.Equal(t, []int{3}, notifier.calls)

	alert, err := service.Status()
	require.NoError(t, err)
	require.NotNil(t, alert)
	assert.Equal(t, 3, alert.ConsecutiveFailures)
	assert.Equal(t, "auth failed", alert.LastError)
	assert.NotNil(t, alert.LastNotifiedAt)
}

func TestService_NotificationsAreRateLimited(t *testing.T) {
	service, notifier, _, cleanup := setupTestService(t, 1)
	defer cleanup()

	service.RunFailed("boom")
	service.RunFailed("boom again")
	// The second failure is inside the notification interval.
	assert.Equal(t, []int{1}, notifier.calls)
}

func TestService_NotifiesAgainAfterInterval(t *testing.T) {
	service, notifier, db, cleanup := setupTestService(t, 1)
	defer cleanup()

	service.RunFailed("boom")
	require.Len(t, notifier.calls, 1)

	longAgo := time.Now().Add(-24 * time.Hour)
	require.NoError(t, db.Model(&entities.SyncFailureAlert{}).
		Where("connection_key = ?", ConnectionKey).
		Update("last_notified_at", longAgo).Error)

	service.RunFailed("still broken")
	assert.Equal(t, []int{1, 2}, notifier.calls)
}

func TestService_SuccessResetsStreak(t *testing.T) {
	service, notifier, _, cleanup := setupTestService(t, 2)
	defer cleanup()

	service.RunFailed("boom")
	service.RunSucceeded()
	service.RunFailed("boom")
	assert.Empty(t, notifier.calls, "streak restarted after success")

	alert, err := service.Status()
	require.NoError(t, err)
	assert.Equal(t, 1, alert.ConsecutiveFailures)
}

func TestService_Acknowledge(t *testing.T) {
	service, _, _, cleanup := setupTestService(t, 1)
	defer cleanup()

	_, err := service.Acknowledge()
	assert.ErrorIs(t, err, ErrNoActiveAlert)

	service.RunFailed("boom")
	alert, err := service.Acknowledge()
	require.NoError(t, err)
	assert.NotNil(t, alert.AcknowledgedAt)

	// The next failure clears the acknowledgment.
	service.RunFailed("boom")
	alert, err = service.Status()
	require.NoError(t, err)
	assert.Nil(t, alert.AcknowledgedAt)
}
