package entities

import (
	"time"
)

// Resource type names used across raw events, run metrics and the API
// client. The order of ResourceSyncOrder is the order a run processes
// resource types, so parents are written before children.
const (
	ResourceProperty    = "property"
	ResourceUnit        = "unit"
	ResourcePerson      = "person"
	ResourceLease       = "lease"
	ResourceTransaction = "ledger_transaction"
	ResourceWorkOrder   = "work_order"
	ResourceVendor      = "vendor"
	ResourceBill        = "bill"
)

var ResourceSyncOrder = []string{
	ResourceProperty,
	ResourceUnit,
	ResourcePerson,
	ResourceLease,
	ResourceTransaction,
	ResourceVendor,
	ResourceWorkOrder,
	ResourceBill,
}

// RawEvent is one fetched payload, persisted before normalization is
// attempted so a crashed run can be replayed. ProcessedAt is set
// exactly once by the normalization step that consumed the event and
// never mutated afterward. Rows are retained indefinitely.
type RawEvent struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	SyncRunID    uint       `gorm:"index" json:"sync_run_id"`
	ResourceType string     `gorm:"size:32;index:idx_raw_events_unprocessed" json:"resource_type"`
	ExternalID   int64      `gorm:"index" json:"external_id"`
	Payload      []byte     `gorm:"type:blob" json:"payload"`
	PulledAt     time.Time  `json:"pulled_at"`
	ProcessedAt  *time.Time `gorm:"index:idx_raw_events_unprocessed" json:"processed_at,omitempty"`
}

func (RawEvent) TableName() string {
	return "raw_events"
}
