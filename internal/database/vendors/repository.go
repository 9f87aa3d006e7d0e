// Package vendors provides vendor queries, the canonical-duplicate
// graph mutations and duplicate-analysis job rows.
//
// The canonical graph is self-referential: a vendor with a non-nil
// CanonicalVendorID is a duplicate of the referenced vendor. The graph
// is only ever mutated through Link and Unlink, which run inside a
// transaction under row-level locks so concurrent relinking cannot
// interleave.
package vendors

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rentfolio/rentfolio/internal/entities"
)

var (
	// ErrSelfLink indicates an attempt to link a vendor to itself.
	ErrSelfLink = errors.New("vendor cannot be its own duplicate")

	// ErrCyclicLink indicates a link that would close a cycle in the
	// canonical graph.
	ErrCyclicLink = errors.New("link would create a canonical cycle")

	// ErrNotLinked indicates an unlink of a vendor that has no
	// canonical reference.
	ErrNotLinked = errors.New("vendor is not linked to a canonical vendor")
)

// Repository handles vendor and duplicate-analysis database
// operations.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Get(id uint) (*entities.Vendor, error) {
	var vendor entities.Vendor
	if err := r.db.First(&vendor, id).Error; err != nil {
		return nil, err
	}
	return &vendor, nil
}

// Canonicals returns all vendors that are not linked as duplicates,
// ordered by id for deterministic pairwise scans.
func (r *Repository) Canonicals() ([]entities.Vendor, error) {
	var vendors []entities.Vendor
	err := r.db.Where("canonical_vendor_id IS NULL").Order("id").Find(&vendors).Error
	return vendors, err
}

// DuplicatesOf returns the vendors linked to the given canonical
// vendor.
func (r *Repository) DuplicatesOf(canonicalID uint) ([]entities.Vendor, error) {
	var vendors []entities.Vendor
	err := r.db.Where("canonical_vendor_id = ?", canonicalID).Order("id").Find(&vendors).Error
	return vendors, err
}

// Link marks vendorID as a duplicate of canonicalID. The target is
// first resolved to its own canonical, so chains always collapse to
// depth one. Self links and cycles are rejected without mutating
// state. Any vendors previously pointing at vendorID are re-pointed at
// the resolved root to preserve the depth-one invariant.
func (r *Repository) Link(vendorID, canonicalID uint) error {
	if vendorID == canonicalID {
		return ErrSelfLink
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		var vendor entities.Vendor
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&vendor, vendorID).Error; err != nil {
			return fmt.Errorf("load vendor %d: %w", vendorID, err)
		}

		var target entities.Vendor
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&target, canonicalID).Error; err != nil {
			return fmt.Errorf("load canonical vendor %d: %w", canonicalID, err)
		}

		rootID := target.ID
		if target.CanonicalVendorID != nil {
			rootID = *target.CanonicalVendorID
		}
		if rootID == vendorID {
			return ErrCyclicLink
		}

		if err := tx.Model(&entities.Vendor{}).
			Where("id = ?", vendorID).
			Update("canonical_vendor_id", rootID).Error; err != nil {
			return err
		}

		// Re-parent this vendor's own duplicates so no chain ever
		// reaches depth two.
		return tx.Model(&entities.Vendor{}).
			Where("canonical_vendor_id = ?", vendorID).
			Update("canonical_vendor_id", rootID).Error
	})
}

// Unlink clears the vendor's canonical reference, making it canonical
// again. Former duplicates of the vendor are not re-parented.
func (r *Repository) Unlink(vendorID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		var vendor entities.Vendor
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&vendor, vendorID).Error; err != nil {
			return fmt.Errorf("load vendor %d: %w", vendorID, err)
		}
		if vendor.CanonicalVendorID == nil {
			return ErrNotLinked
		}
		return tx.Model(&entities.Vendor{}).
			Where("id = ?", vendorID).
			Update("canonical_vendor_id", nil).Error
	})
}

// CreateAnalysis inserts a pending duplicate-analysis job.
func (r *Repository) CreateAnalysis(threshold float64, limit int) (*entities.VendorDuplicateAnalysis, error) {
	analysis := &entities.VendorDuplicateAnalysis{
		Status:    entities.AnalysisStatusPending,
		Threshold: threshold,
		Limit:     limit,
	}
	if err := r.db.Create(analysis).Error; err != nil {
		return nil, err
	}
	return analysis, nil
}

func (r *Repository) GetAnalysis(id uint) (*entities.VendorDuplicateAnalysis, error) {
	var analysis entities.VendorDuplicateAnalysis
	if err := r.db.First(&analysis, id).Error; err != nil {
		return nil, err
	}
	return &analysis, nil
}

// StartAnalysis transitions a pending job to processing.
func (r *Repository) StartAnalysis(analysis *entities.VendorDuplicateAnalysis) error {
	if analysis.Status != entities.AnalysisStatusPending {
		return fmt.Errorf("analysis %d is %s, not pending", analysis.ID, analysis.Status)
	}
	now := time.Now()
	analysis.Status = entities.AnalysisStatusProcessing
	analysis.StartedAt = &now
	return r.db.Save(analysis).Error
}

// SaveAnalysisProgress persists the job's progress counters.
func (r *Repository) SaveAnalysisProgress(analysis *entities.VendorDuplicateAnalysis) error {
	return r.db.Save(analysis).Error
}

// CompleteAnalysis stores the results and marks the job completed.
func (r *Repository) CompleteAnalysis(analysis *entities.VendorDuplicateAnalysis, results []entities.DuplicatePair) error {
	now := time.Now()
	analysis.Status = entities.AnalysisStatusCompleted
	analysis.Results = results
	analysis.DuplicatesFound = len(results)
	analysis.CompletedAt = &now
	return r.db.Save(analysis).Error
}

// FailAnalysis marks the job failed with an error message.
func (r *Repository) FailAnalysis(analysis *entities.VendorDuplicateAnalysis, cause error) error {
	now := time.Now()
	analysis.Status = entities.AnalysisStatusFailed
	analysis.Error = cause.Error()
	analysis.CompletedAt = &now
	return r.db.Save(analysis).Error
}
