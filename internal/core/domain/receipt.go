package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ReceiptStatus string

const (
	StatusPending    ReceiptStatus = "pending"
	StatusProcessing ReceiptStatus = "processing"
	StatusApproved   ReceiptStatus = "approved"
	StatusFailed     ReceiptStatus = "failed"
)

func ParseStatus(raw string) (ReceiptStatus, bool) {
	switch ReceiptStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusPending:
		return StatusPending, true
	case StatusProcessing:
		return StatusProcessing, true
	case StatusApproved:
		return StatusApproved, true
	case StatusFailed:
		return StatusFailed, true
	default:
		return "", false
	}
}

// CanTransition reports whether a client-initiated move between two
// lifecycle states is legal. Server-observed statuses are applied
// verbatim and bypass this check; the server is authoritative.
func CanTransition(from, to ReceiptStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusApproved || to == StatusFailed
	case StatusFailed:
		return to == StatusProcessing
	default:
		return false
	}
}

// Terminal reports whether no further server-driven transition is
// expected. failed is terminal-but-recoverable via an explicit retry.
func (s ReceiptStatus) Terminal() bool {
	return s == StatusApproved || s == StatusFailed
}

type Category string

const (
	CategoryFood      Category = "food"
	CategoryTransport Category = "transport"
	CategoryOffice    Category = "office"
	CategoryEquipment Category = "equipment"
	CategoryServices  Category = "services"
	CategoryTravel    Category = "travel"
	CategoryOther     Category = "other"
)

var allCategories = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryOffice,
	CategoryEquipment,
	CategoryServices,
	CategoryTravel,
	CategoryOther,
}

func Categories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

func ParseCategory(raw string) (Category, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	for _, cat := range allCategories {
		if normalized == string(cat) {
			return cat, true
		}
	}
	return CategoryOther, false
}

// Receipt is one purchase record: the uploaded image reference, the
// fields interpreted from it, and its lifecycle status. IDs are
// assigned by the remote service and never reused.
type Receipt struct {
	ID             string          `json:"id"`
	Vendor         string          `json:"vendor,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	Date           time.Time       `json:"date"`
	Category       Category        `json:"category,omitempty"`
	BusinessNumber string          `json:"business_number,omitempty"`
	ImageRef       string          `json:"image_ref,omitempty"`
	Status         ReceiptStatus   `json:"status"`
	Error          string          `json:"error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Credentials is the volatile access/refresh token pair. It is never
// written to durable storage; a process restart always starts
// unauthenticated.
type Credentials struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

func (c Credentials) Valid() bool {
	return c.AccessToken != "" && c.RefreshToken != ""
}
