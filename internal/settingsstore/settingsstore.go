// Package settingsstore exposes typed accessors over the key-value
// settings collaborator.
//
// Resolution priority for every setting: database > environment >
// default. Credentials are intentionally not cached: the client reads
// them through this store at the start of each sync run, so rotated
// secrets take effect immediately.
package settingsstore

import (
	"os"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rentfolio/rentfolio/internal/database/settings"
	"github.com/rentfolio/rentfolio/internal/entities"
	"github.com/rentfolio/rentfolio/internal/propertyware"
)

const (
	defaultSyncSchedule   = "0 */6 * * *"
	defaultDedupThreshold = 0.8
	defaultDedupLimit     = 50
	defaultAlertInterval  = 4 * time.Hour
)

type SettingsStore struct {
	repo *settings.Repository
}

func New(repo *settings.Repository) *SettingsStore {
	return &SettingsStore{repo: repo}
}

func (s *SettingsStore) value(key, envVar string) string {
	if v := s.repo.GetValue(key); v != "" {
		return v
	}
	return os.Getenv(envVar)
}

// GetAPICredentials returns the provider credentials, or
// propertyware.ErrMissingCredentials when any part is unset.
func (s *SettingsStore) GetAPICredentials() (propertyware.Credentials, error) {
	creds := propertyware.Credentials{
		ClientID:     s.value(entities.SettingKeyAPIClientID, "PW_CLIENT_ID"),
		ClientSecret: s.value(entities.SettingKeyAPIClientSecret, "PW_CLIENT_SECRET"),
		OrgID:        s.value(entities.SettingKeyAPIOrgID, "PW_ORG_ID"),
	}
	if !creds.Valid() {
		return propertyware.Credentials{}, propertyware.ErrMissingCredentials
	}
	return creds, nil
}

func (s *SettingsStore) SetAPICredentials(creds propertyware.Credentials) error {
	if err := s.repo.SetSetting(entities.SettingKeyAPIClientID, creds.ClientID); err != nil {
		return err
	}
	if err := s.repo.SetSetting(entities.SettingKeyAPIClientSecret, creds.ClientSecret); err != nil {
		return err
	}
	return s.repo.SetSetting(entities.SettingKeyAPIOrgID, creds.OrgID)
}

// SyncConfig is the effective scheduled-sync configuration.
type SyncConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule"`
}

func (s *SettingsStore) GetSyncConfig() SyncConfig {
	enabled := false
	if v := s.value(entities.SettingKeySyncEnabled, "SYNC_ENABLED"); v != "" {
		enabled, _ = strconv.ParseBool(v)
	}
	schedule := s.value(entities.SettingKeySyncSchedule, "SYNC_SCHEDULE")
	if schedule == "" {
		schedule = defaultSyncSchedule
	}
	return SyncConfig{Enabled: enabled, Schedule: schedule}
}

func (s *SettingsStore) SetSyncEnabled(enabled bool) error {
	return s.repo.SetSetting(entities.SettingKeySyncEnabled, strconv.FormatBool(enabled))
}

func (s *SettingsStore) SetSyncSchedule(schedule string) error {
	if err := ValidateCronSchedule(schedule); err != nil {
		return err
	}
	return s.repo.SetSetting(entities.SettingKeySyncSchedule, schedule)
}

// GetSyncLastAt returns the incremental-sync watermark, the start
// time of the last successful run. Nil means never synced.
func (s *SettingsStore) GetSyncLastAt() *time.Time {
	v := s.repo.GetValue(entities.SettingKeySyncLastAt)
	if v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil
	}
	return &t
}

// SetSyncOutcome records the terminal state of the most recent run.
// The watermark only advances on success and is set to the run's
// start time so records modified mid-run are picked up next time.
func (s *SettingsStore) SetSyncOutcome(status, message string, watermark time.Time) error {
	if err := s.repo.SetSetting(entities.SettingKeySyncLastStatus, status); err != nil {
		return err
	}
	if err := s.repo.SetSetting(entities.SettingKeySyncLastMessage, message); err != nil {
		return err
	}
	if status == string(entities.SyncRunStatusCompleted) {
		return s.repo.SetSetting(entities.SettingKeySyncLastAt, watermark.UTC().Format(time.RFC3339))
	}
	return nil
}

func (s *SettingsStore) GetSyncLastStatus() (status, message string) {
	return s.repo.GetValue(entities.SettingKeySyncLastStatus), s.repo.GetValue(entities.SettingKeySyncLastMessage)
}

// GetDedupDefaults returns the default threshold and limit for
// duplicate analyses.
func (s *SettingsStore) GetDedupDefaults() (threshold float64, limit int) {
	threshold = defaultDedupThreshold
	if v := s.repo.GetValue(entities.SettingKeyDedupThreshold); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil && parsed > 0 && parsed <= 1 {
			threshold = parsed
		}
	}
	limit = defaultDedupLimit
	if v := s.repo.GetValue(entities.SettingKeyDedupLimit); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	return threshold, limit
}

// GetAlertInterval returns the minimum spacing between failure
// notifications.
func (s *SettingsStore) GetAlertInterval() time.Duration {
	if v := s.repo.GetValue(entities.SettingKeyAlertInterval); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return defaultAlertInterval
}

// ValidateCronSchedule validates a cron schedule string.
func ValidateCronSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	_, err := parser.Parse(schedule)
	return err
}

// NextRunTime calculates when the schedule fires next.
func NextRunTime(schedule string) (*time.Time, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		return nil, err
	}
	next := sched.Next(time.Now())
	return &next, nil
}
