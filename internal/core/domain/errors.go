package domain

import (
	"errors"
	"fmt"
)

// Error kinds map one-to-one onto the transport's failure classification
// plus the local-only validation and upload categories.
var (
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrAuthExpired        = errors.New("authentication expired")
	ErrAccessDenied       = errors.New("access denied")
	ErrNotFound           = errors.New("not found")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrServerError        = errors.New("server error")
	ErrRequestFailed      = errors.New("request failed")
	ErrValidation         = errors.New("validation failed")
	ErrUploadFailed       = errors.New("upload failed")
	ErrConflict           = errors.New("mutation already in flight")
	ErrRetryExhausted     = errors.New("interpretation retry limit reached")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// FieldError identifies the receipt field that failed a validation
// predicate. Always wrapped under ErrValidation.
type FieldError struct {
	Field  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field %s: %s", e.Field, e.Reason)
}

// ViolatedField extracts the failing field name from a validation
// error, or "" if err is not a validation failure.
func ViolatedField(err error) string {
	var fieldErr *FieldError
	if errors.As(err, &fieldErr) {
		return fieldErr.Field
	}
	return ""
}
