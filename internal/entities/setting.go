package entities

import (
	"time"
)

type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"uniqueIndex;size:100" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

// Known setting keys
const (
	// Provider API credentials. Read at the start of every sync run so
	// rotated secrets take effect without a restart.
	SettingKeyAPIClientID     = "api_client_id"
	SettingKeyAPIClientSecret = "api_client_secret"
	SettingKeyAPIOrgID        = "api_org_id"

	// Scheduled sync settings
	SettingKeySyncEnabled     = "sync_enabled"
	SettingKeySyncSchedule    = "sync_schedule"
	SettingKeySyncLastAt      = "sync_last_at"
	SettingKeySyncLastStatus  = "sync_last_status"
	SettingKeySyncLastMessage = "sync_last_message"

	// Vendor dedup defaults
	SettingKeyDedupThreshold = "dedup_threshold"
	SettingKeyDedupLimit     = "dedup_limit"

	// Failure alerting
	SettingKeyAlertInterval = "alert_interval"
)
