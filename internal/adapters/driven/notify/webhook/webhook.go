// Package webhook posts a JSON run summary to a configured URL.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/custodia-labs/catalog-sync/internal/core/domain"
	"github.com/custodia-labs/catalog-sync/internal/core/ports/driven"
)

const (
	// DefaultTimeout bounds a single delivery attempt.
	DefaultTimeout = 10 * time.Second

	maxAttempts  = 3
	initialDelay = 500 * time.Millisecond
)

// Ensure Notifier implements the interface.
var _ driven.Notifier = (*Notifier)(nil)

// Payload is the JSON body sent for each run.
type Payload struct {
	RunID      string    `json:"run_id"`
	Mode       string    `json:"mode"`
	Phase      string    `json:"phase"`
	Processed  int       `json:"processed"`
	Created    int       `json:"created"`
	Updated    int       `json:"updated"`
	Errors     []string  `json:"errors"`
	Cancelled  bool      `json:"cancelled"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	DurationMS int64     `json:"duration_ms"`
}

// NewPayload summarises a run.
func NewPayload(run *domain.SyncRun) Payload {
	errs := run.Errors
	if errs == nil {
		errs = []string{}
	}
	return Payload{
		RunID:      run.ID,
		Mode:       run.Mode.String(),
		Phase:      string(run.Phase),
		Processed:  run.Processed,
		Created:    run.Created,
		Updated:    run.Updated,
		Errors:     errs,
		Cancelled:  run.Cancelled,
		StartedAt:  run.StartedAt,
		FinishedAt: run.FinishedAt,
		DurationMS: run.Duration().Milliseconds(),
	}
}

// Notifier delivers run summaries by HTTP POST.
type Notifier struct {
	url        string
	httpClient *http.Client
	delay      time.Duration
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(n *Notifier) {
		if hc != nil {
			n.httpClient = hc
		}
	}
}

// WithRetryDelay overrides the initial backoff between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.delay = d
		}
	}
}

// New creates a webhook notifier for url.
func New(url string, opts ...Option) *Notifier {
	n := &Notifier{
		url:        url,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		delay:      initialDelay,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify posts the run summary. Server errors and transport failures are
// retried; other non-2xx responses fail immediately.
func (n *Notifier) Notify(ctx context.Context, run *domain.SyncRun) error {
	if run == nil {
		return fmt.Errorf("%w: nil run", domain.ErrInvalidInput)
	}
	body, err := json.Marshal(NewPayload(run))
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	backoff := retry.WithMaxRetries(maxAttempts-1, retry.NewExponential(n.delay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		return n.post(ctx, body)
	})
}

func (n *Notifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "catalog-sync/1.0")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return retry.RetryableError(fmt.Errorf("webhook post: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return retry.RetryableError(fmt.Errorf("webhook post: status %d", resp.StatusCode))
	default:
		return fmt.Errorf("webhook post: status %d", resp.StatusCode)
	}
}
