package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/catalog-sync/internal/core/domain"
	"github.com/custodia-labs/catalog-sync/internal/logger"
)

// newTestClient creates a client against srv with fast retries and no throttling.
func newTestClient(t *testing.T, srv *httptest.Server, cfg Config) *Client {
	t.Helper()
	cfg.BaseURL = srv.URL
	if cfg.RatePerSecond == 0 {
		cfg.RatePerSecond = 1000
		cfg.Burst = 100
	}
	return NewClient(context.Background(), cfg, WithRetryPolicy(2, time.Millisecond))
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestClient_ListPage_FirstPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/records", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "50", r.URL.Query().Get("per_page"))
		writeJSON(t, w, map[string]any{
			"pagination": map[string]any{"page": 1, "pages": 2, "per_page": 50, "items": 3},
			"records": []map[string]any{
				{"id": "a", "title": "Kind of Blue", "artist": "Miles Davis", "year": 1959,
					"format": "LP", "condition": "VG+", "price": "25.00", "status": "For Sale",
					"modified": "2024-03-01T10:00:00Z"},
				{"id": "b", "title": "Blue Train", "artist": "John Coltrane", "year": 1957},
			},
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv, Config{PerPage: 50})

	page, err := client.ListPage(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	assert.Equal(t, 3, page.Total)
	assert.True(t, page.HasMore())

	a := page.Records[0]
	assert.Equal(t, "a", a.ID)
	assert.Equal(t, domain.Summary{
		Title: "Kind of Blue", Artist: "Miles Davis", Year: 1959,
		Format: "LP", Condition: "VG+", Price: "25.00", Status: "For Sale",
	}, a.Summary)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), a.Modified)
	assert.True(t, page.Records[1].Modified.IsZero())

	cur, err := DecodeCursor(page.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, 2, cur.Page)
}

func TestClient_ListPage_LastPageHasNoCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		writeJSON(t, w, map[string]any{
			"pagination": map[string]any{"page": 2, "pages": 2, "items": 3},
			"records":    []map[string]any{{"id": "c"}, {"id": ""}},
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv, Config{})

	page, err := client.ListPage(context.Background(), NewCursor(2).Encode())
	require.NoError(t, err)
	assert.False(t, page.HasMore())
	require.Len(t, page.Records, 1, "records without id are skipped")
	assert.Equal(t, "c", page.Records[0].ID)
}

func TestClient_ListPage_InvalidCursorIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("no request expected")
	}))
	defer srv.Close()

	client := newTestClient(t, srv, Config{})

	_, err := client.ListPage(context.Background(), "%%%")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFatalFetch)
	assert.ErrorIs(t, err, ErrInvalidCursor)
}

func TestClient_ListPage_UnauthorizedIsFatalAndNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad token", http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := newTestClient(t, srv, Config{})

	_, err := client.ListPage(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFatalFetch)
	assert.True(t, IsUnauthorized(err))
	assert.Contains(t, err.Error(), "HTTP 401")
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_ListPage_NotFoundIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	client := newTestClient(t, srv, Config{})

	_, err := client.ListPage(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrFatalFetch)
}

func TestClient_ListPage_TransientRetriedThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		writeJSON(t, w, map[string]any{
			"pagination": map[string]any{"page": 1, "pages": 1},
			"records":    []map[string]any{{"id": "a"}},
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv, Config{})

	page, err := client.ListPage(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, page.Records, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_ListPage_TransientExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(t, srv, Config{})

	_, err := client.ListPage(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransientFetch)
	assert.False(t, domain.IsFatal(err))
	// One attempt plus two retries
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_ListPage_MalformedBodyIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("{not json"))
	}))
	defer srv.Close()

	client := newTestClient(t, srv, Config{})

	_, err := client.ListPage(context.Background(), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransientFetch)
}

func TestClient_FetchDetail_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/records/r 1", r.URL.Path)
		writeJSON(t, w, map[string]any{
			"id":        "r 1",
			"genres":    []string{"Jazz"},
			"styles":    []string{"Modal"},
			"tracklist": []map[string]any{{"position": "A1", "title": "So What", "duration": "9:22"}},
			"images":    []map[string]any{{"type": "primary", "uri": "https://img/1.jpg", "width": 600, "height": 600}},
			"notes":     "First press",
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv, Config{})

	rec, err := client.FetchDetail(context.Background(), "r 1")
	require.NoError(t, err)
	assert.Equal(t, "r 1", rec.ID)
	assert.Equal(t, []string{"Jazz"}, rec.Detail.Genres)
	assert.Equal(t, []string{"Modal"}, rec.Detail.Styles)
	assert.Equal(t, []domain.Track{{Position: "A1", Title: "So What", Duration: "9:22"}}, rec.Detail.Tracklist)
	require.Len(t, rec.Detail.Images, 1)
	assert.Equal(t, 600, rec.Detail.Images[0].Width)
	assert.Equal(t, "First press", rec.Detail.Notes)
}

func TestClient_FetchDetail_NotFoundIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := newTestClient(t, srv, Config{})

	_, err := client.FetchDetail(context.Background(), "gone")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Equal(t, "not found", err.Error())
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_FetchDetail_EmptyID(t *testing.T) {
	client := NewClient(context.Background(), Config{BaseURL: "http://127.0.0.1:1"})

	_, err := client.FetchDetail(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestClient_FetchDetail_RateLimitedIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set(HeaderRetryAfter, "0")
			http.Error(w, "slow down", http.StatusTooManyRequests)
			return
		}
		writeJSON(t, w, map[string]any{"id": "a"})
	}))
	defer srv.Close()

	var logs bytes.Buffer
	logger.SetOutput(&logs)
	logger.SetVerbose(true)
	defer func() {
		logger.SetOutput(os.Stderr)
		logger.SetVerbose(false)
	}()

	client := newTestClient(t, srv, Config{})

	rec, err := client.FetchDetail(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "a", rec.ID)
	assert.Equal(t, int32(2), calls.Load())
	assert.Contains(t, logs.String(), "rate limited, requests resume at")
}

func TestClient_SendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		writeJSON(t, w, map[string]any{"id": "a"})
	}))
	defer srv.Close()

	client := newTestClient(t, srv, Config{Token: "secret-token"})

	_, err := client.FetchDetail(context.Background(), "a")
	require.NoError(t, err)
}

func TestClient_CancelledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(t, w, map[string]any{"id": "a"})
	}))
	defer srv.Close()

	client := newTestClient(t, srv, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchDetail(ctx, "a")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConfigFromSettings(t *testing.T) {
	s := domain.DefaultSettings().Catalog
	s.Token = "tok"

	cfg := ConfigFromSettings(s)
	assert.Equal(t, s.BaseURL, cfg.BaseURL)
	assert.Equal(t, "tok", cfg.Token)
	assert.Equal(t, s.PerPage, cfg.PerPage)
	assert.InDelta(t, s.RatePerSecond, cfg.RatePerSecond, 0.0001)
	assert.Equal(t, s.Burst, cfg.Burst)
}
