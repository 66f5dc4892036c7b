package augment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"coolcar/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(limiter *FixedWindow) *Client {
	return NewClient(ClientConfig{
		HTTP:    &http.Client{},
		Limiter: limiter,
		Retry:   RetryPolicy{MaxRetries: 2, Backoff: time.Millisecond, AttemptTimeout: time.Second},
		Logger:  testLogger(),
	})
}

func get(url string) func(ctx context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
}

func discard(*http.Response) error { return nil }

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	if err := testClient(nil).Do(context.Background(), "test", get(srv.URL), discard); err != nil {
		t.Fatalf("expected success on third attempt: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	if err := testClient(nil).Do(context.Background(), "test", get(srv.URL), discard); err == nil {
		t.Fatal("expected failure")
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 1 try + 2 retries, got %d", calls.Load())
	}
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	if err := testClient(nil).Do(context.Background(), "test", get(srv.URL), discard); err == nil {
		t.Fatal("expected failure")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestClient_AttemptTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{
		HTTP:   &http.Client{},
		Retry:  RetryPolicy{MaxRetries: 1, Backoff: time.Millisecond, AttemptTimeout: 20 * time.Millisecond},
		Logger: testLogger(),
	})
	start := time.Now()
	if err := c.Do(context.Background(), "slow", get(srv.URL), discard); err == nil {
		t.Fatal("expected timeout")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("attempt timeout not enforced, took %v", time.Since(start))
	}
}

func TestClient_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c := testClient(NewFixedWindow(1, time.Minute))
	if err := c.Do(context.Background(), "test", get(srv.URL), discard); err != nil {
		t.Fatalf("first call: %v", err)
	}
	err := c.Do(context.Background(), "test", get(srv.URL), discard)
	if !errors.Is(err, ErrRateLimited) || !errors.Is(err, domain.ErrUnavailable) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
}
