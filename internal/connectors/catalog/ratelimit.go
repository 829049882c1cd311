package catalog

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// MinBuffer is the minimum remaining requests before waiting for reset.
	MinBuffer = 5

	// DefaultRetryAfter is the backoff applied to a 429 without Retry-After.
	DefaultRetryAfter = 60 * time.Second

	// HeaderRateRemaining is the remaining requests header.
	HeaderRateRemaining = "X-RateLimit-Remaining"

	// HeaderRateReset is the reset timestamp header (Unix seconds).
	HeaderRateReset = "X-RateLimit-Reset"

	// HeaderRetryAfter is the retry-after header (seconds).
	HeaderRetryAfter = "Retry-After"
)

// RateLimiter enforces the catalog's request ceiling.
// A token bucket throttles proactively; the catalog's rate limit headers
// and 429 responses add reactive waits on top.
type RateLimiter struct {
	mu        sync.Mutex
	bucket    *rate.Limiter
	remaining int       // From API header, -1 until seen
	resetTime time.Time // From API header
	retryAt   time.Time // From 429 responses
	minBuffer int
}

// NewRateLimiter creates a rate limiter allowing requestsPerSecond sustained
// requests with the given burst.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		bucket:    rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		remaining: -1,
		minBuffer: MinBuffer,
	}
}

// Wait blocks until it's safe to make a request.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	retryAt := r.retryAt
	remaining := r.remaining
	resetTime := r.resetTime
	r.mu.Unlock()

	// Backoff from a previous 429
	if err := sleepUntil(ctx, retryAt); err != nil {
		return err
	}

	// Quota nearly exhausted: wait for the window to reset
	if remaining >= 0 && remaining < r.minBuffer {
		if err := sleepUntil(ctx, resetTime); err != nil {
			return err
		}
	}

	return r.bucket.Wait(ctx)
}

// UpdateFromResponse updates rate limit state from response headers.
func (r *RateLimiter) UpdateFromResponse(resp *http.Response) {
	if resp == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if remaining := resp.Header.Get(HeaderRateRemaining); remaining != "" {
		if val, err := strconv.Atoi(remaining); err == nil {
			r.remaining = val
		}
	}

	if reset := resp.Header.Get(HeaderRateReset); reset != "" {
		if val, err := strconv.ParseInt(reset, 10, 64); err == nil {
			r.resetTime = time.Unix(val, 0)
		}
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		backoff := DefaultRetryAfter
		if retryAfter := resp.Header.Get(HeaderRetryAfter); retryAfter != "" {
			if seconds, err := strconv.Atoi(retryAfter); err == nil && seconds >= 0 {
				backoff = time.Duration(seconds) * time.Second
			}
		}
		r.retryAt = time.Now().Add(backoff)
	}
}

// Remaining returns the last reported remaining requests, -1 if unknown.
func (r *RateLimiter) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.remaining
}

// RetryAt returns when requests may resume after a 429.
func (r *RateLimiter) RetryAt() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.retryAt
}

func sleepUntil(ctx context.Context, t time.Time) error {
	if !time.Now().Before(t) {
		return nil
	}
	timer := time.NewTimer(time.Until(t))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
