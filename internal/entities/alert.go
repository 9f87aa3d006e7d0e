package entities

import (
	"time"
)

// SyncFailureAlert tracks consecutive run-level failures for one
// provider connection. Notifications are rate limited and an
// acknowledgment suppresses them until the next failure clears it.
type SyncFailureAlert struct {
	ID                  uint       `gorm:"primaryKey" json:"id"`
	ConnectionKey       string     `gorm:"uniqueIndex;size:64" json:"connection_key"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastError           string     `gorm:"type:text" json:"last_error,omitempty"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
	LastNotifiedAt      *time.Time `json:"last_notified_at,omitempty"`
	AcknowledgedAt      *time.Time `json:"acknowledged_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

func (SyncFailureAlert) TableName() string {
	return "sync_failure_alerts"
}
