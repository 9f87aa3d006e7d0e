package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

type PersonType string

const (
	PersonTypeTenant  PersonType = "tenant"
	PersonTypeOwner   PersonType = "owner"
	PersonTypeContact PersonType = "contact"
)

// Person is a tenant, owner or other contact from the provider's
// people directory.
type Person struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	ExternalID int64      `gorm:"uniqueIndex" json:"external_id"`
	Type       PersonType `gorm:"size:32;index" json:"type"`
	FirstName  string     `gorm:"size:128" json:"first_name"`
	LastName   string     `gorm:"size:128" json:"last_name"`
	Email      string     `gorm:"size:255" json:"email"`
	Phone      string     `gorm:"size:64" json:"phone"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (Person) TableName() string {
	return "people"
}

type LeaseStatus string

const (
	LeaseStatusActive  LeaseStatus = "active"
	LeaseStatusEnded   LeaseStatus = "ended"
	LeaseStatusPending LeaseStatus = "pending"
	LeaseStatusUnknown LeaseStatus = "unknown"
)

// Lease ties a tenant to a unit for a date range.
type Lease struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	ExternalID int64           `gorm:"uniqueIndex" json:"external_id"`
	UnitID     uint            `gorm:"index" json:"unit_id"`
	TenantID   *uint           `gorm:"index" json:"tenant_id,omitempty"`
	Status     LeaseStatus     `gorm:"size:32" json:"status"`
	Rent       decimal.Decimal `gorm:"type:decimal(12,2)" json:"rent"`
	StartDate  time.Time       `json:"start_date"`
	EndDate    *time.Time      `json:"end_date,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (Lease) TableName() string {
	return "leases"
}
