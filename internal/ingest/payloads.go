package ingest

// Wire shapes for provider search results. Dates and currency amounts
// arrive as strings and are parsed defensively during normalization.

type propertyPayload struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Type       string `json:"type"`
	UnitCount  int    `json:"unit_count"`
	Active     *bool  `json:"active"`
}

type unitPayload struct {
	ID         int64   `json:"id"`
	PropertyID int64   `json:"property_id"`
	Name       string  `json:"name"`
	Bedrooms   int     `json:"bedrooms"`
	Bathrooms  float64 `json:"bathrooms"`
	SquareFeet int     `json:"square_feet"`
	MarketRent string  `json:"market_rent"`
	Active     *bool   `json:"active"`
}

type personPayload struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

type leasePayload struct {
	ID        int64  `json:"id"`
	UnitID    int64  `json:"unit_id"`
	TenantID  int64  `json:"tenant_id"`
	Status    string `json:"status"`
	Rent      string `json:"rent"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type transactionPayload struct {
	ID              int64  `json:"id"`
	LeaseID         int64  `json:"lease_id"`
	PropertyID      int64  `json:"property_id"`
	Type            string `json:"type"`
	Amount          string `json:"amount"`
	PostedOn        string `json:"posted_on"`
	Description     string `json:"description"`
	ReferenceNumber string `json:"reference_number"`
}

type workOrderPayload struct {
	ID          int64  `json:"id"`
	PropertyID  int64  `json:"property_id"`
	UnitID      int64  `json:"unit_id"`
	VendorID    int64  `json:"vendor_id"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
	Description string `json:"description"`
	OpenedOn    string `json:"opened_on"`
	CompletedOn string `json:"completed_on"`
}

type vendorPayload struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Category string `json:"category"`
	Active   *bool  `json:"active"`
}

type billPayload struct {
	ID          int64  `json:"id"`
	VendorID    int64  `json:"vendor_id"`
	PropertyID  int64  `json:"property_id"`
	GLAccount   string `json:"gl_account"`
	Amount      string `json:"amount"`
	BillDate    string `json:"bill_date"`
	Description string `json:"description"`
}
