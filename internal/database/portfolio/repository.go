// Package portfolio provides natural-key upserts for the entity
// records fed by ingestion.
//
// Every entity type is keyed by the provider's external id, unique
// within its type. Upserts either insert a new row or update every
// mapped field of the existing one, so replaying the same payload twice
// yields identical state and never a duplicate row. There is no hidden
// persistence inside domain objects: callers pass the desired state
// and receive an explicit result.
package portfolio

import (
	"errors"

	"gorm.io/gorm"

	"github.com/rentfolio/rentfolio/internal/entities"
)

// UpsertResult classifies the outcome of one upsert.
type UpsertResult string

const (
	ResultCreated UpsertResult = "created"
	ResultUpdated UpsertResult = "updated"
	ResultSkipped UpsertResult = "skipped"
)

// ErrParentNotFound indicates a foreign-key target (for example a
// unit's property) has no local row yet. The ingestion engine defers
// and retries such records within the same run.
var ErrParentNotFound = errors.New("parent record not found")

// Repository handles upserts and external-id lookups for all synced
// entity types.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// DB exposes the underlying handle for read-only collaborators.
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// UpsertProperty inserts or updates a property by external id.
func (r *Repository) UpsertProperty(input *entities.Property) (UpsertResult, error) {
	var existing entities.Property
	err := r.db.Where("external_id = ?", input.ExternalID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := r.db.Create(input).Error; err != nil {
			return ResultSkipped, err
		}
		return ResultCreated, nil
	}
	if err != nil {
		return ResultSkipped, err
	}

	existing.Name = input.Name
	existing.Address = input.Address
	existing.City = input.City
	existing.State = input.State
	existing.PostalCode = input.PostalCode
	existing.Type = input.Type
	existing.UnitCount = input.UnitCount
	existing.Active = input.Active
	if err := r.db.Save(&existing).Error; err != nil {
		return ResultSkipped, err
	}
	input.ID = existing.ID
	return ResultUpdated, nil
}

// UpsertUnit inserts or updates a unit by external id. The caller must
// have resolved PropertyID already.
func (r *Repository) UpsertUnit(input *entities.Unit) (UpsertResult, error) {
	var existing entities.Unit
	err := r.db.Where("external_id = ?", input.ExternalID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := r.db.Create(input).Error; err != nil {
			return ResultSkipped, err
		}
		return ResultCreated, nil
	}
	if err != nil {
		return ResultSkipped, err
	}

	existing.PropertyID = input.PropertyID
	existing.Name = input.Name
	existing.Bedrooms = input.Bedrooms
	existing.Bathrooms = input.Bathrooms
	existing.SquareFeet = input.SquareFeet
	existing.MarketRent = input.MarketRent
	existing.Active = input.Active
	if err := r.db.Save(&existing).Error; err != nil {
		return ResultSkipped, err
	}
	input.ID = existing.ID
	return ResultUpdated, nil
}

// UpsertPerson inserts or updates a person by external id.
func (r *Repository) UpsertPerson(input *entities.Person) (UpsertResult, error) {
	var existing entities.Person
	err := r.db.Where("external_id = ?", input.ExternalID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := r.db.Create(input).Error; err != nil {
			return ResultSkipped, err
		}
		return ResultCreated, nil
	}
	if err != nil {
		return ResultSkipped, err
	}

	existing.Type = input.Type
	existing.FirstName = input.FirstName
	existing.LastName = input.LastName
	existing.Email = input.Email
	existing.Phone = input.Phone
	if err := r.db.Save(&existing).Error; err != nil {
		return ResultSkipped, err
	}
	input.ID = existing.ID
	return ResultUpdated, nil
}

// UpsertLease inserts or updates a lease by external id.
func (r *Repository) UpsertLease(input *entities.Lease) (UpsertResult, error) {
	var existing entities.Lease
	err := r.db.Where("external_id = ?", input.ExternalID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := r.db.Create(input).Error; err != nil {
			return ResultSkipped, err
		}
		return ResultCreated, nil
	}
	if err != nil {
		return ResultSkipped, err
	}

	existing.UnitID = input.UnitID
	existing.TenantID = input.TenantID
	existing.Status = input.Status
	existing.Rent = input.Rent
	existing.StartDate = input.StartDate
	existing.EndDate = input.EndDate
	if err := r.db.Save(&existing).Error; err != nil {
		return ResultSkipped, err
	}
	input.ID = existing.ID
	return ResultUpdated, nil
}

// UpsertLedgerTransaction inserts or updates a ledger transaction by
// external id.
func (r *Repository) UpsertLedgerTransaction(input *entities.LedgerTransaction) (UpsertResult, error) {
	var existing entities.LedgerTransaction
	err := r.db.Where("external_id = ?", input.ExternalID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := r.db.Create(input).Error; err != nil {
			return ResultSkipped, err
		}
		return ResultCreated, nil
	}
	if err != nil {
		return ResultSkipped, err
	}

	existing.LeaseID = input.LeaseID
	existing.PropertyID = input.PropertyID
	existing.Type = input.Type
	existing.Amount = input.Amount
	existing.PostedOn = input.PostedOn
	existing.Description = input.Description
	existing.ReferenceNumber = input.ReferenceNumber
	if err := r.db.Save(&existing).Error; err != nil {
		return ResultSkipped, err
	}
	input.ID = existing.ID
	return ResultUpdated, nil
}

// UpsertWorkOrder inserts or updates a work order by external id.
func (r *Repository) UpsertWorkOrder(input *entities.WorkOrder) (UpsertResult, error) {
	var existing entities.WorkOrder
	err := r.db.Where("external_id = ?", input.ExternalID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := r.db.Create(input).Error; err != nil {
			return ResultSkipped, err
		}
		return ResultCreated, nil
	}
	if err != nil {
		return ResultSkipped, err
	}

	existing.PropertyID = input.PropertyID
	existing.UnitID = input.UnitID
	existing.VendorID = input.VendorID
	existing.Status = input.Status
	existing.Priority = input.Priority
	existing.Description = input.Description
	existing.OpenedOn = input.OpenedOn
	existing.CompletedOn = input.CompletedOn
	if err := r.db.Save(&existing).Error; err != nil {
		return ResultSkipped, err
	}
	input.ID = existing.ID
	return ResultUpdated, nil
}

// UpsertVendor inserts or updates a vendor by external id.
// CanonicalVendorID is owned by the dedup engine and is deliberately
// left untouched on update.
func (r *Repository) UpsertVendor(input *entities.Vendor) (UpsertResult, error) {
	var existing entities.Vendor
	err := r.db.Where("external_id = ?", input.ExternalID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := r.db.Create(input).Error; err != nil {
			return ResultSkipped, err
		}
		return ResultCreated, nil
	}
	if err != nil {
		return ResultSkipped, err
	}

	existing.Name = input.Name
	existing.Email = input.Email
	existing.Phone = input.Phone
	existing.Category = input.Category
	existing.Active = input.Active
	if err := r.db.Save(&existing).Error; err != nil {
		return ResultSkipped, err
	}
	input.ID = existing.ID
	return ResultUpdated, nil
}

// UpsertBillDetail inserts or updates a bill line by external id.
func (r *Repository) UpsertBillDetail(input *entities.BillDetail) (UpsertResult, error) {
	var existing entities.BillDetail
	err := r.db.Where("external_id = ?", input.ExternalID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := r.db.Create(input).Error; err != nil {
			return ResultSkipped, err
		}
		return ResultCreated, nil
	}
	if err != nil {
		return ResultSkipped, err
	}

	existing.VendorID = input.VendorID
	existing.PropertyID = input.PropertyID
	existing.GLAccountNumber = input.GLAccountNumber
	existing.Amount = input.Amount
	existing.BillDate = input.BillDate
	existing.Description = input.Description
	if err := r.db.Save(&existing).Error; err != nil {
		return ResultSkipped, err
	}
	input.ID = existing.ID
	return ResultUpdated, nil
}

// PropertyIDByExternalID resolves a provider property id to the local
// surrogate key. Returns ErrParentNotFound when the row is missing.
func (r *Repository) PropertyIDByExternalID(externalID int64) (uint, error) {
	return r.localID(&entities.Property{}, externalID)
}

func (r *Repository) UnitIDByExternalID(externalID int64) (uint, error) {
	return r.localID(&entities.Unit{}, externalID)
}

func (r *Repository) PersonIDByExternalID(externalID int64) (uint, error) {
	return r.localID(&entities.Person{}, externalID)
}

func (r *Repository) LeaseIDByExternalID(externalID int64) (uint, error) {
	return r.localID(&entities.Lease{}, externalID)
}

func (r *Repository) VendorIDByExternalID(externalID int64) (uint, error) {
	return r.localID(&entities.Vendor{}, externalID)
}

func (r *Repository) localID(model any, externalID int64) (uint, error) {
	var id uint
	err := r.db.Model(model).
		Select("id").
		Where("external_id = ?", externalID).
		Limit(1).
		Scan(&id).Error
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, ErrParentNotFound
	}
	return id, nil
}
