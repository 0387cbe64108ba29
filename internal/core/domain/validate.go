package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	// MaxAmount is the sanity ceiling against fat-finger entry.
	MaxAmount = 1_000_000
	// RetentionYears bounds how far back a transaction date may lie.
	RetentionYears = 7
	// BusinessNumberDigits is the exact digit count of an Israeli
	// business registration number.
	BusinessNumberDigits = 9

	minVendorLength = 2
)

var maxAmount = decimal.NewFromInt(MaxAmount)

// ValidateAmount requires a positive amount no greater than the sanity
// ceiling.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return &FieldError{Field: "amount", Reason: "must be greater than zero"}
	}
	if amount.GreaterThan(maxAmount) {
		return &FieldError{Field: "amount", Reason: "exceeds maximum of 1,000,000"}
	}
	return nil
}

// ValidateDate requires a transaction date no later than now and no
// earlier than the retention horizon.
func ValidateDate(date, now time.Time) error {
	if date.IsZero() {
		return &FieldError{Field: "date", Reason: "is required"}
	}
	if date.After(now) {
		return &FieldError{Field: "date", Reason: "is in the future"}
	}
	if date.Before(now.AddDate(-RetentionYears, 0, 0)) {
		return &FieldError{Field: "date", Reason: "predates the retention horizon"}
	}
	return nil
}

// ValidateVendor counts characters, not bytes: vendor names are mostly
// Hebrew and a single multibyte letter is still one character.
func ValidateVendor(vendor string) error {
	if utf8.RuneCountInString(strings.TrimSpace(vendor)) < minVendorLength {
		return &FieldError{Field: "vendor", Reason: "must be at least 2 characters"}
	}
	return nil
}

// ValidateBusinessNumber checks the optional registration number: if
// present it must contain exactly 9 digits after stripping separators.
func ValidateBusinessNumber(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	digits := 0
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if digits != BusinessNumberDigits {
		return &FieldError{Field: "business_number", Reason: "must contain exactly 9 digits"}
	}
	return nil
}

// ValidateForApproval runs every approval predicate against the receipt
// as it would look with the patch applied. The first violation is
// returned wrapped under ErrValidation; a failing predicate means no
// network call is made at all.
func ValidateForApproval(r Receipt, p Patch, now time.Time) error {
	candidate := p.Applied(r)

	if err := ValidateVendor(candidate.Vendor); err != nil {
		return WrapError(ErrValidation, "approve", err)
	}
	if err := ValidateAmount(candidate.Amount); err != nil {
		return WrapError(ErrValidation, "approve", err)
	}
	if err := ValidateDate(candidate.Date, now); err != nil {
		return WrapError(ErrValidation, "approve", err)
	}
	if candidate.Category == "" {
		return WrapError(ErrValidation, "approve", &FieldError{Field: "category", Reason: "is required"})
	}
	if err := ValidateBusinessNumber(candidate.BusinessNumber); err != nil {
		return WrapError(ErrValidation, "approve", err)
	}
	return nil
}
