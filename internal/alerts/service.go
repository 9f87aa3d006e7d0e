// Package alerts escalates repeated run-level sync failures. Record-
// level errors never reach it: a run with a long error ledger that
// still completes counts as a success here.
package alerts

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/rentfolio/rentfolio/internal/entities"
	"github.com/rentfolio/rentfolio/internal/settingsstore"
)

// ConnectionKey identifies the single provider connection this
// deployment syncs against.
const ConnectionKey = "propertyware"

// DefaultFailureThreshold is how many consecutive failures trigger a
// notification.
const DefaultFailureThreshold = 3

// ErrNoActiveAlert is returned when acknowledging while nothing has
// failed.
var ErrNoActiveAlert = errors.New("no active failure alert")

// Notifier delivers one escalation. The default implementation writes
// a structured log line; a chat or email notifier can replace it.
type Notifier interface {
	NotifySyncFailure(connectionKey string, consecutiveFailures int, lastError string) error
}

// LogNotifier writes escalations to the application log.
type LogNotifier struct {
	Log *logrus.Logger
}

func (n *LogNotifier) NotifySyncFailure(connectionKey string, consecutiveFailures int, lastError string) error {
	n.Log.WithFields(logrus.Fields{
		"connection": connectionKey,
		"failures":   consecutiveFailures,
		"last_error": lastError,
	}).Error("sync has been failing repeatedly")
	return nil
}

// Service tracks consecutive failures per connection and decides when
// to notify. It implements the ingestion engine's RunObserver.
type Service struct {
	db        *gorm.DB
	store     *settingsstore.SettingsStore
	notifier  Notifier
	threshold int
	log       *logrus.Logger
}

func NewService(db *gorm.DB, store *settingsstore.SettingsStore, notifier Notifier, threshold int, log *logrus.Logger) *Service {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	return &Service{db: db, store: store, notifier: notifier, threshold: threshold, log: log}
}

// RunFailed records one run-level failure and notifies when the
// consecutive count reaches the threshold. Notifications are rate
// limited by the configured interval; a fresh failure clears any
// standing acknowledgment.
func (s *Service) RunFailed(summary string) {
	if err := s.recordFailure(summary); err != nil {
		s.log.WithError(err).Error("recording sync failure alert")
	}
}

// RunSucceeded resets the consecutive-failure counter.
func (s *Service) RunSucceeded() {
	alert, err := s.current()
	if err != nil {
		s.log.WithError(err).Error("loading sync failure alert")
		return
	}
	if alert == nil || alert.ConsecutiveFailures == 0 {
		return
	}
	alert.ConsecutiveFailures = 0
	alert.AcknowledgedAt = nil
	if err := s.db.Save(alert).Error; err != nil {
		s.log.WithError(err).Error("resetting sync failure alert")
	}
}

// Acknowledge suppresses notifications until the next failure.
func (s *Service) Acknowledge() (*entities.SyncFailureAlert, error) {
	alert, err := s.current()
	if err != nil {
		return nil, err
	}
	if alert == nil || alert.ConsecutiveFailures == 0 {
		return nil, ErrNoActiveAlert
	}
	now := time.Now()
	alert.AcknowledgedAt = &now
	if err := s.db.Save(alert).Error; err != nil {
		return nil, err
	}
	return alert, nil
}

// Status returns the alert row for the connection, nil when it has
// never failed.
func (s *Service) Status() (*entities.SyncFailureAlert, error) {
	return s.current()
}

func (s *Service) recordFailure(summary string) error {
	alert, err := s.current()
	if err != nil {
		return err
	}
	if alert == nil {
		alert = &entities.SyncFailureAlert{ConnectionKey: ConnectionKey}
	}
	now := time.Now()
	alert.ConsecutiveFailures++
	alert.LastError = summary
	alert.LastFailureAt = &now
	alert.AcknowledgedAt = nil

	if s.shouldNotify(alert, now) {
		if err := s.notifier.NotifySyncFailure(alert.ConnectionKey, alert.ConsecutiveFailures, alert.LastError); err != nil {
			s.log.WithError(err).Error("delivering sync failure notification")
		} else {
			alert.LastNotifiedAt = &now
		}
	}
	if err := s.db.Save(alert).Error; err != nil {
		return fmt.Errorf("saving failure alert: %w", err)
	}
	return nil
}

func (s *Service) shouldNotify(alert *entities.SyncFailureAlert, now time.Time) bool {
	if alert.ConsecutiveFailures < s.threshold {
		return false
	}
	if alert.LastNotifiedAt == nil {
		return true
	}
	return now.Sub(*alert.LastNotifiedAt) >= s.store.GetAlertInterval()
}

func (s *Service) current() (*entities.SyncFailureAlert, error) {
	var alert entities.SyncFailureAlert
	err := s.db.Where("connection_key = ?", ConnectionKey).First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &alert, nil
}
