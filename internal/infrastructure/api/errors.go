package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/hadassahlevi/tiktax-client/internal/core/domain"
)

// HTTPStatusError carries the raw status and a bounded slice of the
// response body for any non-2xx reply.
type HTTPStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "http status error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("%s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("%s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

// classifyStatus maps a non-2xx, non-401 status to its error kind. The
// mapping is a compatibility contract with the remote service and must
// not change. 401 is handled by the refresh path before this runs.
func classifyStatus(statusCode int) error {
	switch {
	case statusCode == http.StatusForbidden:
		return domain.ErrAccessDenied
	case statusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case statusCode == http.StatusServiceUnavailable:
		return domain.ErrServiceUnavailable
	case statusCode >= http.StatusInternalServerError:
		return domain.ErrServerError
	default:
		return domain.ErrRequestFailed
	}
}

// breakerFailure reports outcomes that indicate the remote itself is
// unhealthy. Client-side rejections (403, 404, validation) never trip
// the breaker.
func breakerFailure(err error) bool {
	return domain.IsKind(err, domain.ErrNetworkUnavailable) ||
		domain.IsKind(err, domain.ErrServerError) ||
		domain.IsKind(err, domain.ErrServiceUnavailable)
}

// errorClass is the low-cardinality metric label for an outcome.
func errorClass(err error) string {
	switch {
	case err == nil:
		return "ok"
	case domain.IsKind(err, domain.ErrNetworkUnavailable):
		return "network"
	case domain.IsKind(err, domain.ErrAuthExpired):
		return "auth_expired"
	case domain.IsKind(err, domain.ErrAccessDenied):
		return "access_denied"
	case domain.IsKind(err, domain.ErrNotFound):
		return "not_found"
	case domain.IsKind(err, domain.ErrServiceUnavailable):
		return "service_unavailable"
	case domain.IsKind(err, domain.ErrServerError):
		return "server_error"
	default:
		return "request_failed"
	}
}
