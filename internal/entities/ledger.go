package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerTransaction is a single tenant-ledger entry (charge, payment,
// credit) from the provider's rent roll endpoints.
type LedgerTransaction struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	ExternalID      int64           `gorm:"uniqueIndex" json:"external_id"`
	LeaseID         *uint           `gorm:"index" json:"lease_id,omitempty"`
	PropertyID      *uint           `gorm:"index" json:"property_id,omitempty"`
	Type            string          `gorm:"size:64" json:"type"`
	Amount          decimal.Decimal `gorm:"type:decimal(12,2)" json:"amount"`
	PostedOn        time.Time       `json:"posted_on"`
	Description     string          `gorm:"size:512" json:"description"`
	ReferenceNumber string          `gorm:"size:128" json:"reference_number"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (LedgerTransaction) TableName() string {
	return "ledger_transactions"
}

type WorkOrderStatus string

const (
	WorkOrderStatusOpen       WorkOrderStatus = "open"
	WorkOrderStatusInProgress WorkOrderStatus = "in_progress"
	WorkOrderStatusCompleted  WorkOrderStatus = "completed"
	WorkOrderStatusCancelled  WorkOrderStatus = "cancelled"
)

// WorkOrder is a maintenance request, optionally assigned to a vendor.
type WorkOrder struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	ExternalID  int64           `gorm:"uniqueIndex" json:"external_id"`
	PropertyID  *uint           `gorm:"index" json:"property_id,omitempty"`
	UnitID      *uint           `gorm:"index" json:"unit_id,omitempty"`
	VendorID    *uint           `gorm:"index" json:"vendor_id,omitempty"`
	Status      WorkOrderStatus `gorm:"size:32" json:"status"`
	Priority    string          `gorm:"size:32" json:"priority"`
	Description string          `gorm:"type:text" json:"description"`
	OpenedOn    time.Time       `json:"opened_on"`
	CompletedOn *time.Time      `json:"completed_on,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (WorkOrder) TableName() string {
	return "work_orders"
}
