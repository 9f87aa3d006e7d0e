package entities

import (
	"time"
)

// Vendor is a service provider paid through accounts payable.
//
// CanonicalVendorID implements the duplicate graph: a vendor with a
// non-nil reference is a duplicate of the referenced canonical vendor.
// Chains are always collapsed to depth one: the target of the
// reference never has a canonical reference of its own. The field is
// owned by the dedup engine and is never written by normalization.
type Vendor struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	ExternalID        int64     `gorm:"uniqueIndex" json:"external_id"`
	Name              string    `gorm:"size:255;index" json:"name"`
	Email             string    `gorm:"size:255" json:"email"`
	Phone             string    `gorm:"size:64" json:"phone"`
	Category          string    `gorm:"size:128" json:"category"`
	Active            bool      `json:"active"`
	CanonicalVendorID *uint     `gorm:"index" json:"canonical_vendor_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (Vendor) TableName() string {
	return "vendors"
}

type AnalysisStatus string

const (
	AnalysisStatusPending    AnalysisStatus = "pending"
	AnalysisStatusProcessing AnalysisStatus = "processing"
	AnalysisStatusCompleted  AnalysisStatus = "completed"
	AnalysisStatusFailed     AnalysisStatus = "failed"
)

// DuplicatePair is one scored candidate pair from a duplicate analysis.
type DuplicatePair struct {
	VendorID     uint     `json:"vendor_id"`
	CandidateID  uint     `json:"candidate_id"`
	Score        float64  `json:"score"`
	MatchReasons []string `json:"match_reasons"`
}

// VendorDuplicateAnalysis is one asynchronous pairwise scan over the
// vendor set. Pairwise comparison is quadratic, so the scan runs as a
// background job and reports progress through the counters below.
type VendorDuplicateAnalysis struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Status          AnalysisStatus  `gorm:"size:32;index" json:"status"`
	Threshold       float64         `json:"threshold"`
	Limit           int             `json:"limit"`
	VendorsScanned  int             `json:"vendors_scanned"`
	ComparisonsMade int             `json:"comparisons_made"`
	DuplicatesFound int             `json:"duplicates_found"`
	Results         []DuplicatePair `gorm:"serializer:json" json:"results,omitempty"`
	Error           string          `gorm:"type:text" json:"error,omitempty"`
	StartedAt       *time.Time      `json:"started_at,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func (VendorDuplicateAnalysis) TableName() string {
	return "vendor_duplicate_analyses"
}
