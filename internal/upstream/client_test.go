package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap/zaptest"

	"goflare.io/gridiron/internal/retrier"
)

func newTestClient(t *testing.T, h http.HandlerFunc, opts ...ClientOption) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]ClientOption{
		WithBaseURL(srv.URL),
		WithAPIKey("key-123"),
		WithRateLimit(0, 0),
		WithLogger(zaptest.NewLogger(t)),
	}, opts...)
	return NewClient(opts...), srv
}

func TestFetchBuildsRequest(t *testing.T) {
	var gotPath, gotQuery, gotUser, gotPass, gotAccept string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotUser, gotPass, _ = r.BasicAuth()
		gotAccept = r.Header.Get("Accept")
		w.Write([]byte(`{"games":[{"id":1}]}`))
	})

	payload, err := c.Fetch(context.Background(), Schedule, "2025", url.Values{"week": {"3"}})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if gotPath != "/pull/nfl/2025-regular/schedule.json" {
		t.Errorf("path = %q", gotPath)
	}
	if gotQuery != "week=3" {
		t.Errorf("query = %q", gotQuery)
	}
	if gotUser != "key-123" || gotPass != Password {
		t.Errorf("basic auth = %q/%q", gotUser, gotPass)
	}
	if gotAccept != "application/json" {
		t.Errorf("Accept = %q", gotAccept)
	}

	obj, ok := payload.(map[string]any)
	if !ok {
		t.Fatalf("payload type = %T", payload)
	}
	games := obj["games"].([]any)
	id := games[0].(map[string]any)["id"]
	if _, ok := id.(json.Number); !ok {
		t.Errorf("numbers should decode as json.Number, got %T", id)
	}
}

func TestResourceFiles(t *testing.T) {
	c := NewClient(WithBaseURL("https://example.test/v2.1/"))
	tests := map[Resource]string{
		Schedule:    "https://example.test/v2.1/pull/nfl/2024-regular/schedule.json",
		TeamStats:   "https://example.test/v2.1/pull/nfl/2024-regular/team_stats_totals.json",
		PlayerStats: "https://example.test/v2.1/pull/nfl/2024-regular/player_stats_totals.json",
	}
	for res, want := range tests {
		if got := c.URL(res, "2024"); got != want {
			t.Errorf("URL(%s) = %q, want %q", res, got, want)
		}
	}
}

func TestFetchStatusError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	})

	_, err := c.Fetch(context.Background(), TeamStats, "2025", nil)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error = %v, want *RequestError", err)
	}
	if reqErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d", reqErr.StatusCode)
	}
	if reqErr.Body != "bad key" {
		t.Errorf("Body = %q", reqErr.Body)
	}
	if reqErr.Resource != TeamStats {
		t.Errorf("Resource = %q", reqErr.Resource)
	}
	if reqErr.Temporary() {
		t.Error("401 should not be temporary")
	}
}

func TestFetchDecodeError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>oops</html>`))
	})

	_, err := c.Fetch(context.Background(), Schedule, "2025", nil)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error = %v, want *RequestError", err)
	}
	if reqErr.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0 for decode failures", reqErr.StatusCode)
	}
}

func TestFetchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := NewClient(WithBaseURL(base), WithRateLimit(0, 0))
	_, err := c.Fetch(context.Background(), Schedule, "2025", nil)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error = %v, want *RequestError", err)
	}
	if !reqErr.Temporary() {
		t.Error("connection refused should be temporary")
	}
}

func TestTemporaryStatuses(t *testing.T) {
	tests := []struct {
		status int
		want   bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusNotFound, false},
		{http.StatusForbidden, false},
	}
	for _, tt := range tests {
		if got := statusError(Schedule, "u", tt.status, "").Temporary(); got != tt.want {
			t.Errorf("status %d Temporary() = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestFetchRetriesTemporaryFailures(t *testing.T) {
	var calls atomic.Int32
	r, err := retrier.NewRetrier(retrier.Settings{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		Factor:      2,
	})
	if err != nil {
		t.Fatal(err)
	}
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"teamStatsTotals":[]}`))
	}, WithRetrier(r))

	if _, err := c.Fetch(context.Background(), TeamStats, "2025", nil); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestFetchSingleAttemptByDefault(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	if _, err := c.Fetch(context.Background(), TeamStats, "2025", nil); err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}, WithBreakerSettings(DefaultBreakerSettings()))

	ctx := context.Background()
	for i := 0; i < 6; i++ {
		c.Fetch(ctx, PlayerStats, "2025", nil)
	}
	if got := c.Breaker(PlayerStats).State(); got != gobreaker.StateOpen {
		t.Fatalf("breaker state = %v, want open", got)
	}

	_, err := c.Fetch(ctx, PlayerStats, "2025", nil)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("error = %v, want ErrOpenState", err)
	}
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Errorf("open breaker error should be a *RequestError")
	}
	if got := calls.Load(); got != 6 {
		t.Errorf("calls = %d, want 6", got)
	}

	if got := c.Breaker(Schedule).State(); got != gobreaker.StateClosed {
		t.Errorf("other resources should keep a closed breaker, got %v", got)
	}
}

func TestBreakerIgnoresClientErrors(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}, WithBreakerSettings(DefaultBreakerSettings()))

	for i := 0; i < 10; i++ {
		c.Fetch(context.Background(), Schedule, "1999", nil)
	}
	if got := c.Breaker(Schedule).State(); got != gobreaker.StateClosed {
		t.Errorf("breaker state = %v, want closed", got)
	}
}

type recordingObserver struct {
	calls    atomic.Int32
	lastCode atomic.Int32
}

func (o *recordingObserver) ObserveUpstream(_ string, status int, _ time.Duration, _ error) {
	o.calls.Add(1)
	o.lastCode.Store(int32(status))
}

func TestObserverSeesEveryAttempt(t *testing.T) {
	obs := &recordingObserver{}
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}, WithObserver(obs))

	c.Fetch(context.Background(), Schedule, "2025", nil)
	c.Fetch(context.Background(), Schedule, "2025", nil)
	if got := obs.calls.Load(); got != 2 {
		t.Errorf("observer calls = %d, want 2", got)
	}
	if got := obs.lastCode.Load(); got != http.StatusOK {
		t.Errorf("last status = %d", got)
	}
}

func TestFetchCanceledContext(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Fetch(ctx, Schedule, "2025", nil)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error = %v, want *RequestError", err)
	}
	if reqErr.Temporary() {
		t.Error("caller cancellation should not be temporary")
	}
}
