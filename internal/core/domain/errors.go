package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	// The remote catalog client also returns it when a record has been
	// removed upstream.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSyncInProgress indicates a sync is already running.
	ErrSyncInProgress = errors.New("sync in progress")

	// Fetch Errors.

	// ErrFatalFetch indicates a remote call failed in a way retrying cannot fix
	// (authentication, authorisation, malformed request).
	ErrFatalFetch = errors.New("fatal fetch error")

	// ErrTransientFetch indicates a network or server failure. Clients retry it
	// internally; when it reaches the caller the retries are exhausted.
	ErrTransientFetch = errors.New("transient fetch error")
)

// IsRetryable reports whether err is a transient fetch failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientFetch)
}

// IsFatal reports whether err is a non-retryable fetch failure.
func IsFatal(err error) bool {
	return errors.Is(err, ErrFatalFetch)
}
