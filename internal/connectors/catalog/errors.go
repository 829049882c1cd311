package catalog

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/custodia-labs/catalog-sync/internal/core/domain"
)

// ErrInvalidCursor indicates the cursor format is invalid.
var ErrInvalidCursor = errors.New("catalog: invalid cursor format")

// FetchError describes a failed catalog request.
// It unwraps to its class (domain.ErrFatalFetch or domain.ErrTransientFetch)
// and to the underlying cause, if any.
type FetchError struct {
	// Op is the client operation, e.g. "list page".
	Op string

	// StatusCode is the HTTP status, 0 for transport failures.
	StatusCode int

	// Message is a truncated response body or transport error text.
	Message string

	// Class is domain.ErrFatalFetch or domain.ErrTransientFetch.
	Class error

	// Err is the underlying cause, if any.
	Err error
}

func (e *FetchError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("catalog: %s: %s", e.Op, e.Message)
	}
	if e.Message == "" {
		return fmt.Sprintf("catalog: %s: HTTP %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("catalog: %s: HTTP %d: %s", e.Op, e.StatusCode, e.Message)
}

// Unwrap exposes the class sentinel and the cause to errors.Is/As.
func (e *FetchError) Unwrap() []error {
	errs := []error{e.Class}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// classifyStatus maps a non-2xx HTTP status to its fetch class.
// 404 is classified by the caller because its meaning depends on the operation.
func classifyStatus(code int) error {
	switch {
	case code == http.StatusRequestTimeout,
		code == http.StatusTooEarly,
		code == http.StatusTooManyRequests,
		code >= 500:
		return domain.ErrTransientFetch
	default:
		return domain.ErrFatalFetch
	}
}

// newStatusError builds a FetchError for an HTTP error response.
func newStatusError(op string, code int, body []byte) *FetchError {
	msg := ""
	if len(body) > 0 {
		if len(body) > 200 {
			msg = string(body[:200]) + "..."
		} else {
			msg = string(body)
		}
	}
	return &FetchError{
		Op:         op,
		StatusCode: code,
		Message:    msg,
		Class:      classifyStatus(code),
	}
}

// newTransportError builds a transient FetchError for a failure below HTTP.
func newTransportError(op string, err error) *FetchError {
	return &FetchError{
		Op:      op,
		Message: err.Error(),
		Class:   domain.ErrTransientFetch,
		Err:     err,
	}
}

// IsUnauthorized checks if the error indicates an authentication failure.
func IsUnauthorized(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.StatusCode == http.StatusUnauthorized || fe.StatusCode == http.StatusForbidden
	}
	return false
}

// IsRateLimited checks if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.StatusCode == http.StatusTooManyRequests
	}
	return false
}
