package ingest

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rentfolio/rentfolio/internal/database/portfolio"
	"github.com/rentfolio/rentfolio/internal/entities"
)

// errDeferred marks a record whose foreign-key target has no local row
// yet. Deferred records are retried later in the same run once more
// parents have been written.
var errDeferred = errors.New("parent not yet synced")

// normalize decodes one raw event and upserts the corresponding entity
// row. Unparsable field values yield ResultSkipped with a nil error;
// undecodable payloads and missing ids yield an error the caller turns
// into an error-ledger entry.
func (e *Engine) normalize(event *entities.RawEvent) (portfolio.UpsertResult, error) {
	switch event.ResourceType {
	case entities.ResourceProperty:
		return e.normalizeProperty(event.Payload)
	case entities.ResourceUnit:
		return e.normalizeUnit(event.Payload)
	case entities.ResourcePerson:
		return e.normalizePerson(event.Payload)
	case entities.ResourceLease:
		return e.normalizeLease(event.Payload)
	case entities.ResourceTransaction:
		return e.normalizeTransaction(event.Payload)
	case entities.ResourceVendor:
		return e.normalizeVendor(event.Payload)
	case entities.ResourceWorkOrder:
		return e.normalizeWorkOrder(event.Payload)
	case entities.ResourceBill:
		return e.normalizeBill(event.Payload)
	default:
		return portfolio.ResultSkipped, fmt.Errorf("unknown resource type %q", event.ResourceType)
	}
}

func (e *Engine) normalizeProperty(payload []byte) (portfolio.UpsertResult, error) {
	var p propertyPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return portfolio.ResultSkipped, fmt.Errorf("decode property: %w", err)
	}
	if p.ID == 0 {
		return portfolio.ResultSkipped, errors.New("property payload missing id")
	}
	name := p.Name
	if name == "" {
		name = fmt.Sprintf("Property %d", p.ID)
	}
	return e.portfolio.UpsertProperty(&entities.Property{
		ExternalID: p.ID,
		Name:       name,
		Address:    p.Address,
		City:       p.City,
		State:      p.State,
		PostalCode: p.PostalCode,
		Type:       p.Type,
		UnitCount:  p.UnitCount,
		Active:     boolOrDefault(p.Active, true),
	})
}

func (e *Engine) normalizeUnit(payload []byte) (portfolio.UpsertResult, error) {
	var u unitPayload
	if err := json.Unmarshal(payload, &u); err != nil {
		return portfolio.ResultSkipped, fmt.Errorf("decode unit: %w", err)
	}
	if u.ID == 0 {
		return portfolio.ResultSkipped, errors.New("unit payload missing id")
	}
	if u.PropertyID == 0 {
		return portfolio.ResultSkipped, errors.New("unit payload missing property id")
	}
	propertyID, err := e.portfolio.PropertyIDByExternalID(u.PropertyID)
	if errors.Is(err, portfolio.ErrParentNotFound) {
		return portfolio.ResultSkipped, errDeferred
	}
	if err != nil {
		return portfolio.ResultSkipped, err
	}
	rent, ok := parseAmount(u.MarketRent)
	if !ok {
		e.log.WithField("unit", u.ID).Debug("skipping unit with unparsable market rent")
		return portfolio.ResultSkipped, nil
	}
	return e.portfolio.UpsertUnit(&entities.Unit{
		ExternalID: u.ID,
		PropertyID: propertyID,
		Name:       u.Name,
		Bedrooms:   u.Bedrooms,
		Bathrooms:  u.Bathrooms,
		SquareFeet: u.SquareFeet,
		MarketRent: rent,
		Active:     boolOrDefault(u.Active, true),
	})
}

func (e *Engine) normalizePerson(payload []byte) (portfolio.UpsertResult, error) {
	var p personPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return portfolio.ResultSkipped, fmt.Errorf("decode person: %w", err)
	}
	if p.ID == 0 {
		return portfolio.ResultSkipped, errors.New("person payload missing id")
	}
	personType := entities.PersonType(p.Type)
	switch personType {
	case entities.PersonTypeTenant, entities.PersonTypeOwner, entities.PersonTypeContact:
	default:
		personType = entities.PersonTypeContact
	}
	return e.portfolio.UpsertPerson(&entities.Person{
		ExternalID: p.ID,
		Type:       personType,
		FirstName:  p.FirstName,
		LastName:   p.LastName,
		Email:      p.Email,
		Phone:      p.Phone,
	})
}

func (e *Engine) normalizeLease(payload []byte) (portfolio.UpsertResult, error) {
	var l leasePayload
	if err := json.Unmarshal(payload, &l); err != nil {
		return portfolio.ResultSkipped, fmt.Errorf("decode lease: %w", err)
	}
	if l.ID == 0 {
		return portfolio.ResultSkipped, errors.New("lease payload missing id")
	}
	if l.UnitID == 0 {
		return portfolio.ResultSkipped, errors.New("lease payload missing unit id")
	}
	unitID, err := e.portfolio.UnitIDByExternalID(l.UnitID)
	if errors.Is(err, portfolio.ErrParentNotFound) {
		return portfolio.ResultSkipped, errDeferred
	}
	if err != nil {
		return portfolio.ResultSkipped, err
	}
	var tenantID *uint
	if l.TenantID != 0 {
		id, err := e.portfolio.PersonIDByExternalID(l.TenantID)
		if errors.Is(err, portfolio.ErrParentNotFound) {
			return portfolio.ResultSkipped, errDeferred
		}
		if err != nil {
			return portfolio.ResultSkipped, err
		}
		tenantID = &id
	}
	startDate, ok := parseDate(l.StartDate)
	if !ok {
		e.log.WithField("lease", l.ID).Debug("skipping lease with unparsable start date")
		return portfolio.ResultSkipped, nil
	}
	endDate, ok := parseOptionalDate(l.EndDate)
	if !ok {
		e.log.WithField("lease", l.ID).Debug("skipping lease with unparsable end date")
		return portfolio.ResultSkipped, nil
	}
	rent, ok := parseAmount(l.Rent)
	if !ok {
		e.log.WithField("lease", l.ID).Debug("skipping lease with unparsable rent")
		return portfolio.ResultSkipped, nil
	}
	status := entities.LeaseStatus(l.Status)
	switch status {
	case entities.LeaseStatusActive, entities.LeaseStatusEnded, entities.LeaseStatusPending:
	default:
		status = entities.LeaseStatusUnknown
	}
	return e.portfolio.UpsertLease(&entities.Lease{
		ExternalID: l.ID,
		UnitID:     unitID,
		TenantID:   tenantID,
		Status:     status,
		Rent:       rent,
		StartDate:  startDate,
		EndDate:    endDate,
	})
}

func (e *Engine) normalizeTransaction(payload []byte) (portfolio.UpsertResult, error) {
	var t transactionPayload
	if err := json.Unmarshal(payload, &t); err != nil {
		return portfolio.ResultSkipped, fmt.Errorf("decode ledger transaction: %w", err)
	}
	if t.ID == 0 {
		return portfolio.ResultSkipped, errors.New("ledger transaction payload missing id")
	}
	var leaseID *uint
	if t.LeaseID != 0 {
		id, err := e.portfolio.LeaseIDByExternalID(t.LeaseID)
		if errors.Is(err, portfolio.ErrParentNotFound) {
			return portfolio.ResultSkipped, errDeferred
		}
		if err != nil {
			return portfolio.ResultSkipped, err
		}
		leaseID = &id
	}
	var propertyID *uint
	if t.PropertyID != 0 {
		id, err := e.portfolio.PropertyIDByExternalID(t.PropertyID)
		if errors.Is(err, portfolio.ErrParentNotFound) {
			return portfolio.ResultSkipped, errDeferred
		}
		if err != nil {
			return portfolio.ResultSkipped, err
		}
		propertyID = &id
	}
	amount, ok := parseAmount(t.Amount)
	if !ok {
		e.log.WithField("transaction", t.ID).Debug("skipping transaction with unparsable amount")
		return portfolio.ResultSkipped, nil
	}
	postedOn, ok := parseDate(t.PostedOn)
	if !ok {
		e.log.WithField("transaction", t.ID).Debug("skipping transaction with unparsable posted date")
		return portfolio.ResultSkipped, nil
	}
	return e.portfolio.UpsertLedgerTransaction(&entities.LedgerTransaction{
		ExternalID:      t.ID,
		LeaseID:         leaseID,
		PropertyID:      propertyID,
		Type:            t.Type,
		Amount:          amount,
		PostedOn:        postedOn,
		Description:     t.Description,
		ReferenceNumber: t.ReferenceNumber,
	})
}

func (e *Engine) normalizeVendor(payload []byte) (portfolio.UpsertResult, error) {
	var v vendorPayload
	if err := json.Unmarshal(payload, &v); err != nil {
		return portfolio.ResultSkipped, fmt.Errorf("decode vendor: %w", err)
	}
	if v.ID == 0 {
		return portfolio.ResultSkipped, errors.New("vendor payload missing id")
	}
	name := v.Name
	if name == "" {
		name = fmt.Sprintf("Vendor %d", v.ID)
	}
	return e.portfolio.UpsertVendor(&entities.Vendor{
		ExternalID: v.ID,
		Name:       name,
		Email:      v.Email,
		Phone:      v.Phone,
		Category:   v.Category,
		Active:     boolOrDefault(v.Active, true),
	})
}

func (e *Engine) normalizeWorkOrder(payload []byte) (portfolio.UpsertResult, error) {
	var w workOrderPayload
	if err := json.Unmarshal(payload, &w); err != nil {
		return portfolio.ResultSkipped, fmt.Errorf("decode work order: %w", err)
	}
	if w.ID == 0 {
		return portfolio.ResultSkipped, errors.New("work order payload missing id")
	}
	var propertyID, unitID, vendorID *uint
	if w.PropertyID != 0 {
		id, err := e.portfolio.PropertyIDByExternalID(w.PropertyID)
		if errors.Is(err, portfolio.ErrParentNotFound) {
			return portfolio.ResultSkipped, errDeferred
		}
		if err != nil {
			return portfolio.ResultSkipped, err
		}
		propertyID = &id
	}
	if w.UnitID != 0 {
		id, err := e.portfolio.UnitIDByExternalID(w.UnitID)
		if errors.Is(err, portfolio.ErrParentNotFound) {
			return portfolio.ResultSkipped, errDeferred
		}
		if err != nil {
			return portfolio.ResultSkipped, err
		}
		unitID = &id
	}
	if w.VendorID != 0 {
		id, err := e.portfolio.VendorIDByExternalID(w.VendorID)
		if errors.Is(err, portfolio.ErrParentNotFound) {
			return portfolio.ResultSkipped, errDeferred
		}
		if err != nil {
			return portfolio.ResultSkipped, err
		}
		vendorID = &id
	}
	openedOn, ok := parseDate(w.OpenedOn)
	if !ok {
		e.log.WithField("work_order", w.ID).Debug("skipping work order with unparsable opened date")
		return portfolio.ResultSkipped, nil
	}
	completedOn, ok := parseOptionalDate(w.CompletedOn)
	if !ok {
		e.log.WithField("work_order", w.ID).Debug("skipping work order with unparsable completed date")
		return portfolio.ResultSkipped, nil
	}
	status := entities.WorkOrderStatus(w.Status)
	switch status {
	case entities.WorkOrderStatusOpen, entities.WorkOrderStatusInProgress,
		entities.WorkOrderStatusCompleted, entities.WorkOrderStatusCancelled:
	default:
		status = entities.WorkOrderStatusOpen
	}
	return e.portfolio.UpsertWorkOrder(&entities.WorkOrder{
		ExternalID:  w.ID,
		PropertyID:  propertyID,
		UnitID:      unitID,
		VendorID:    vendorID,
		Status:      status,
		Priority:    w.Priority,
		Description: w.Description,
		OpenedOn:    openedOn,
		CompletedOn: completedOn,
	})
}

func (e *Engine) normalizeBill(payload []byte) (portfolio.UpsertResult, error) {
	var b billPayload
	if err := json.Unmarshal(payload, &b); err != nil {
		return portfolio.ResultSkipped, fmt.Errorf("decode bill: %w", err)
	}
	if b.ID == 0 {
		return portfolio.ResultSkipped, errors.New("bill payload missing id")
	}
	var vendorID, propertyID *uint
	if b.VendorID != 0 {
		id, err := e.portfolio.VendorIDByExternalID(b.VendorID)
		if errors.Is(err, portfolio.ErrParentNotFound) {
			return portfolio.ResultSkipped, errDeferred
		}
		if err != nil {
			return portfolio.ResultSkipped, err
		}
		vendorID = &id
	}
	if b.PropertyID != 0 {
		id, err := e.portfolio.PropertyIDByExternalID(b.PropertyID)
		if errors.Is(err, portfolio.ErrParentNotFound) {
			return portfolio.ResultSkipped, errDeferred
		}
		if err != nil {
			return portfolio.ResultSkipped, err
		}
		propertyID = &id
	}
	amount, ok := parseAmount(b.Amount)
	if !ok {
		e.log.WithField("bill", b.ID).Debug("skipping bill with unparsable amount")
		return portfolio.ResultSkipped, nil
	}
	billDate, ok := parseDate(b.BillDate)
	if !ok {
		e.log.WithField("bill", b.ID).Debug("skipping bill with unparsable date")
		return portfolio.ResultSkipped, nil
	}
	return e.portfolio.UpsertBillDetail(&entities.BillDetail{
		ExternalID:      b.ID,
		VendorID:        vendorID,
		PropertyID:      propertyID,
		GLAccountNumber: b.GLAccount,
		Amount:          amount,
		BillDate:        billDate,
		Description:     b.Description,
	})
}

func boolOrDefault(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}
