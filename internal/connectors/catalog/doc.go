// Package catalog implements the remote catalog client.
//
// The client lists records page by page and fetches single record details
// over a JSON HTTP API. It enforces the catalog's rate ceiling with a token
// bucket plus the catalog's rate limit headers, and retries transient
// failures (network errors, 5xx, 408, 429, garbled bodies) with exponential
// backoff before surfacing them.
//
// # Error Classes
//
//   - domain.ErrFatalFetch: 4xx responses and invalid cursors; never retried
//   - domain.ErrTransientFetch: retried; returned only once retries are exhausted
//   - domain.ErrNotFound: a detail request for a record the catalog no longer has
package catalog
