package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// BillDetail is one line item of a vendor bill. Rows are immutable
// source data: utility classification is derived from them into
// UtilityExpense and can always be rebuilt.
type BillDetail struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	ExternalID      int64           `gorm:"uniqueIndex" json:"external_id"`
	VendorID        *uint           `gorm:"index" json:"vendor_id,omitempty"`
	PropertyID      *uint           `gorm:"index" json:"property_id,omitempty"`
	GLAccountNumber string          `gorm:"size:64;index" json:"gl_account_number"`
	Amount          decimal.Decimal `gorm:"type:decimal(12,2)" json:"amount"`
	BillDate        time.Time       `gorm:"index" json:"bill_date"`
	Description     string          `gorm:"size:512" json:"description"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (BillDetail) TableName() string {
	return "bill_details"
}

// UtilityExpense is a derived classification of a BillDetail whose GL
// account maps to a utility type. Derived rows are deleted and rebuilt
// by the reclassification engine; they are never edited in place.
type UtilityExpense struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	BillDetailID    uint            `gorm:"uniqueIndex" json:"bill_detail_id"`
	PropertyID      *uint           `gorm:"index" json:"property_id,omitempty"`
	UtilityType     string          `gorm:"size:64;index" json:"utility_type"`
	GLAccountNumber string          `gorm:"size:64;index" json:"gl_account_number"`
	Amount          decimal.Decimal `gorm:"type:decimal(12,2)" json:"amount"`
	ExpenseDate     time.Time       `gorm:"index" json:"expense_date"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (UtilityExpense) TableName() string {
	return "utility_expenses"
}

// UtilityAccount maps a GL account number to a utility type and drives
// classification of bill lines into utility expenses.
type UtilityAccount struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	GLAccountNumber string    `gorm:"uniqueIndex;size:64" json:"gl_account_number"`
	UtilityType     string    `gorm:"size:64" json:"utility_type"`
	Description     string    `gorm:"size:255" json:"description"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (UtilityAccount) TableName() string {
	return "utility_accounts"
}
