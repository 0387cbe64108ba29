package domain

import (
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Filter is the closed set of list predicates. Only set fields are
// encoded; a typo'd criterion cannot exist by construction.
type Filter struct {
	Status    *ReceiptStatus
	Category  *Category
	DateFrom  *time.Time
	DateTo    *time.Time
	AmountMin *decimal.Decimal
	AmountMax *decimal.Decimal
	Vendor    string
	Search    string
}

func (f Filter) IsZero() bool {
	return f == Filter{}
}

// Encode writes the set predicates into query parameters using the
// remote service's parameter names.
func (f Filter) Encode(values url.Values) {
	if f.Status != nil {
		values.Set("status", string(*f.Status))
	}
	if f.Category != nil {
		values.Set("category", string(*f.Category))
	}
	if f.DateFrom != nil {
		values.Set("dateFrom", f.DateFrom.UTC().Format(time.RFC3339))
	}
	if f.DateTo != nil {
		values.Set("dateTo", f.DateTo.UTC().Format(time.RFC3339))
	}
	if f.AmountMin != nil {
		values.Set("amountMin", f.AmountMin.String())
	}
	if f.AmountMax != nil {
		values.Set("amountMax", f.AmountMax.String())
	}
	if f.Vendor != "" {
		values.Set("vendor", f.Vendor)
	}
	if f.Search != "" {
		values.Set("search", f.Search)
	}
}

type SortField string

const (
	SortByDate      SortField = "date"
	SortByAmount    SortField = "amount"
	SortByVendor    SortField = "vendor"
	SortByCreatedAt SortField = "created_at"
)

func ParseSortField(raw string) (SortField, bool) {
	switch SortField(raw) {
	case SortByDate, SortByAmount, SortByVendor, SortByCreatedAt:
		return SortField(raw), true
	default:
		return "", false
	}
}

type Sort struct {
	Field SortField
	Desc  bool
}

func DefaultSort() Sort {
	return Sort{Field: SortByDate, Desc: true}
}

func (s Sort) Encode(values url.Values) {
	field := s.Field
	if field == "" {
		field = SortByDate
	}
	values.Set("sortBy", string(field))
	if s.Desc {
		values.Set("sortDir", "desc")
	} else {
		values.Set("sortDir", "asc")
	}
}

// EncodePage adds 1-based page parameters.
func EncodePage(values url.Values, page, pageSize int) {
	values.Set("page", strconv.Itoa(page))
	values.Set("pageSize", strconv.Itoa(pageSize))
}

// Patch is the closed update shape sent on review edits and approval.
// Nil fields are omitted from the wire payload.
type Patch struct {
	Vendor         *string          `json:"vendor,omitempty"`
	Amount         *decimal.Decimal `json:"amount,omitempty"`
	Date           *time.Time       `json:"date,omitempty"`
	Category       *Category        `json:"category,omitempty"`
	BusinessNumber *string          `json:"business_number,omitempty"`
	Status         *ReceiptStatus   `json:"status,omitempty"`
}

// Applied projects the patch onto a receipt copy without touching
// server-owned fields (id, image, timestamps).
func (p Patch) Applied(r Receipt) Receipt {
	if p.Vendor != nil {
		r.Vendor = *p.Vendor
	}
	if p.Amount != nil {
		r.Amount = *p.Amount
	}
	if p.Date != nil {
		r.Date = *p.Date
	}
	if p.Category != nil {
		r.Category = *p.Category
	}
	if p.BusinessNumber != nil {
		r.BusinessNumber = *p.BusinessNumber
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	return r
}

// Page is the store's current in-memory slice of the server-side list
// plus paging metadata. Owned exclusively by the store.
type Page struct {
	Items   []Receipt `json:"items"`
	Total   int       `json:"total"`
	HasMore bool      `json:"hasMore"`
}
