package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/oauth2"

	"github.com/custodia-labs/catalog-sync/internal/core/domain"
	"github.com/custodia-labs/catalog-sync/internal/core/ports/driven"
	"github.com/custodia-labs/catalog-sync/internal/logger"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// MaxRetries is the maximum number of retries for transient errors.
	MaxRetries = 3

	// RetryDelay is the initial delay between retries. It doubles per retry.
	RetryDelay = time.Second

	// maxErrorBody caps how much of an error response is read.
	maxErrorBody = 4096
)

// Ensure Client implements the interface.
var _ driven.CatalogClient = (*Client)(nil)

// Config holds the connection settings for a catalog.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.catalog.example.com/v1".
	BaseURL string

	// Token is sent as a bearer token when non-empty.
	Token string

	// PerPage is the listing page size.
	PerPage int

	// RatePerSecond and Burst configure the request ceiling.
	RatePerSecond float64
	Burst         int
}

// ConfigFromSettings builds a client config from user settings.
func ConfigFromSettings(s domain.CatalogSettings) Config {
	return Config{
		BaseURL:       s.BaseURL,
		Token:         s.Token,
		PerPage:       s.PerPage,
		RatePerSecond: s.RatePerSecond,
		Burst:         s.Burst,
	}
}

// Client is a rate-limited, retrying HTTP client for the remote catalog.
// It is safe for concurrent use.
type Client struct {
	baseURL     string
	perPage     int
	httpClient  *http.Client
	rateLimiter *RateLimiter
	maxRetries  int
	retryDelay  time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom http.Client (for testing or custom transports).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRetryPolicy overrides the retry ceiling and initial backoff.
func WithRetryPolicy(maxRetries int, delay time.Duration) Option {
	return func(c *Client) {
		if maxRetries >= 0 {
			c.maxRetries = maxRetries
		}
		if delay > 0 {
			c.retryDelay = delay
		}
	}
}

// WithRateLimiter replaces the rate limiter built from Config.
func WithRateLimiter(rl *RateLimiter) Option {
	return func(c *Client) {
		if rl != nil {
			c.rateLimiter = rl
		}
	}
}

// NewClient creates a catalog client.
// When cfg.Token is set, requests carry it through an oauth2 static token source.
func NewClient(ctx context.Context, cfg Config, opts ...Option) *Client {
	perPage := cfg.PerPage
	if perPage <= 0 {
		perPage = domain.DefaultPerPage
	}
	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = domain.DefaultRatePerSecond
	}

	var hc *http.Client
	if cfg.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
		hc = oauth2.NewClient(ctx, ts)
		hc.Timeout = DefaultTimeout
	} else {
		hc = &http.Client{Timeout: DefaultTimeout}
	}

	c := &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		perPage:     perPage,
		httpClient:  hc,
		rateLimiter: NewRateLimiter(rps, cfg.Burst),
		maxRetries:  MaxRetries,
		retryDelay:  RetryDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListPage fetches one page of the record enumeration.
func (c *Client) ListPage(ctx context.Context, cursor string) (*domain.Page, error) {
	const op = "list page"

	cur, err := DecodeCursor(cursor)
	if err != nil {
		return nil, &FetchError{Op: op, Message: err.Error(), Class: domain.ErrFatalFetch, Err: err}
	}

	q := url.Values{}
	q.Set("page", strconv.Itoa(cur.Page))
	q.Set("per_page", strconv.Itoa(c.perPage))
	endpoint := c.baseURL + "/records?" + q.Encode()

	var body listResponse
	err = c.withRetry(ctx, op, func(ctx context.Context) error {
		body = listResponse{}
		return c.getJSON(ctx, op, endpoint, &body)
	})
	if err != nil {
		// A missing listing endpoint is a configuration problem
		if errors.Is(err, domain.ErrNotFound) {
			return nil, &FetchError{Op: op, StatusCode: http.StatusNotFound, Class: domain.ErrFatalFetch, Err: err}
		}
		return nil, err
	}

	page := &domain.Page{
		Records: make([]domain.RemoteRecord, 0, len(body.Records)),
		Total:   body.Pagination.Items,
	}
	for _, w := range body.Records {
		if w.ID == "" {
			logger.Warn("catalog: skipping listed record without id on page %d", cur.Page)
			continue
		}
		page.Records = append(page.Records, w.toDomain())
	}
	if body.Pagination.Page < body.Pagination.Pages {
		page.NextCursor = cur.Next().Encode()
	}

	logger.Debug("catalog: listed page %d/%d (%d records)", cur.Page, body.Pagination.Pages, len(page.Records))
	return page, nil
}

// FetchDetail fetches the full payload for one record.
// Returns domain.ErrNotFound, unwrapped, when the catalog no longer has it.
func (c *Client) FetchDetail(ctx context.Context, id string) (*domain.DetailRecord, error) {
	const op = "fetch detail"

	if id == "" {
		return nil, fmt.Errorf("%w: empty record id", domain.ErrInvalidInput)
	}
	endpoint := c.baseURL + "/records/" + url.PathEscape(id)

	var body detailResponse
	err := c.withRetry(ctx, op, func(ctx context.Context) error {
		body = detailResponse{}
		return c.getJSON(ctx, op, endpoint, &body)
	})
	if err != nil {
		return nil, err
	}
	return body.toDomain(id), nil
}

// withRetry runs fn, retrying transient failures with exponential backoff.
// Once retries are exhausted the last transient error is returned.
func (c *Client) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	backoff := retry.WithMaxRetries(uint64(c.maxRetries), retry.NewExponential(c.retryDelay))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := fn(ctx)
		if err != nil && domain.IsRetryable(err) {
			logger.Debug("catalog: %s attempt %d failed: %v", op, attempt, err)
			if IsRateLimited(err) {
				logger.Info("catalog: rate limited, requests resume at %s",
					c.rateLimiter.RetryAt().Format(time.TimeOnly))
			}
			return retry.RetryableError(err)
		}
		return err
	})
}

// getJSON performs one rate-limited GET and decodes a JSON body into out.
// 404 responses return domain.ErrNotFound.
func (c *Client) getJSON(ctx context.Context, op, endpoint string, out any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &FetchError{Op: op, Message: err.Error(), Class: domain.ErrFatalFetch, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "catalog-sync/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return newTransportError(op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.rateLimiter.UpdateFromResponse(resp)
	if rem := c.rateLimiter.Remaining(); rem >= 0 && rem < MinBuffer {
		logger.Debug("catalog: %d requests left in the current window", rem)
	}

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newStatusError(op, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		// Truncated or garbled bodies are usually transport hiccups
		return newTransportError(op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
