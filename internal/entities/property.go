package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Property is a managed building or complex pulled from the
// property-management API. ExternalID is the provider's numeric
// identifier and is the natural key for upserts.
type Property struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ExternalID int64     `gorm:"uniqueIndex" json:"external_id"`
	Name       string    `gorm:"size:255" json:"name"`
	Address    string    `gorm:"size:512" json:"address"`
	City       string    `gorm:"size:128" json:"city"`
	State      string    `gorm:"size:64" json:"state"`
	PostalCode string    `gorm:"size:32" json:"postal_code"`
	Type       string    `gorm:"size:64" json:"type"`
	UnitCount  int       `json:"unit_count"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Property) TableName() string {
	return "properties"
}

// Unit is a rentable unit belonging to a Property.
type Unit struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	ExternalID int64           `gorm:"uniqueIndex" json:"external_id"`
	PropertyID uint            `gorm:"index" json:"property_id"`
	Name       string          `gorm:"size:128" json:"name"`
	Bedrooms   int             `json:"bedrooms"`
	Bathrooms  float64         `json:"bathrooms"`
	SquareFeet int             `json:"square_feet"`
	MarketRent decimal.Decimal `gorm:"type:decimal(12,2)" json:"market_rent"`
	Active     bool            `json:"active"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (Unit) TableName() string {
	return "units"
}
