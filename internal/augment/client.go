// Package augment reaches outside the garage for better answers: web search
// over trusted automotive sites and hosted language models.
package augment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"coolcar/internal/domain"
	"coolcar/internal/metrics"
)

// ErrRateLimited is returned when the per-minute call budget is spent.
var ErrRateLimited = fmt.Errorf("%w: rate limit exceeded", domain.ErrUnavailable)

const userAgent = "CoolCarAssistant/1.0"

// RetryPolicy bounds how long one logical call may take.
type RetryPolicy struct {
	MaxRetries     int
	Backoff        time.Duration // fixed delay between attempts
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy makes up to three attempts, one second apart.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 2, Backoff: time.Second, AttemptTimeout: 10 * time.Second}

// Client wraps every outbound augmentation call with the shared rate limit,
// a per-attempt timeout and bounded retries.
type Client struct {
	http    *http.Client
	limiter *FixedWindow
	retry   RetryPolicy
	logger  *slog.Logger
}

type ClientConfig struct {
	HTTP    *http.Client
	Limiter *FixedWindow // nil disables rate limiting
	Retry   RetryPolicy
	Logger  *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.HTTP == nil {
		cfg.HTTP = SharedHTTPClient()
	}
	if cfg.Retry.AttemptTimeout <= 0 {
		cfg.Retry.AttemptTimeout = DefaultRetryPolicy.AttemptTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{http: cfg.HTTP, limiter: cfg.Limiter, retry: cfg.Retry, logger: cfg.Logger}
}

// SharedHTTPClient returns a pooled client. Attempt deadlines come from the
// request context, so the client itself carries only a generous ceiling.
func SharedHTTPClient() *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{Timeout: 60 * time.Second, Transport: transport}
}

// statusError is a non-2xx reply.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string { return fmt.Sprintf("HTTP %d: %s", e.code, e.body) }

func (e *statusError) retryable() bool {
	return e.code >= 500 || e.code == http.StatusTooManyRequests
}

// Do runs build and handle for one logical call named kind. handle sees
// only 2xx responses and its error is final. Network errors, 5xx and 429
// are retried after a fixed backoff.
func (c *Client) Do(ctx context.Context, kind string, build func(ctx context.Context) (*http.Request, error), handle func(*http.Response) error) error {
	if c.limiter != nil && !c.limiter.Allow() {
		metrics.AugmentCalls.WithLabelValues(kind, "rate_limited").Inc()
		c.logger.Warn("augmentation call skipped, rate limit reached", "kind", kind)
		return ErrRateLimited
	}

	start := time.Now()
	err := c.attempts(ctx, kind, build, handle)
	metrics.AugmentLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.AugmentCalls.WithLabelValues(kind, "error").Inc()
		return err
	}
	metrics.AugmentCalls.WithLabelValues(kind, "ok").Inc()
	return nil
}

func (c *Client) attempts(ctx context.Context, kind string, build func(ctx context.Context) (*http.Request, error), handle func(*http.Response) error) error {
	var lastErr error
	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying augmentation call", "kind", kind, "attempt", attempt+1, "backoff", c.retry.Backoff, "err", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.retry.Backoff):
			}
		}

		retry, err := c.once(ctx, build, handle)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
	}
	return fmt.Errorf("%s failed: %w", kind, lastErr)
}

// once makes a single attempt and reports whether a failure may be retried.
func (c *Client) once(ctx context.Context, build func(ctx context.Context) (*http.Request, error), handle func(*http.Response) error) (bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.retry.AttemptTimeout)
	defer cancel()

	req, err := build(attemptCtx)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		se := &statusError{code: resp.StatusCode, body: string(body)}
		return se.retryable(), se
	}
	if err := handle(resp); err != nil {
		// A body cut off by the attempt deadline is worth another try.
		return errors.Is(err, context.DeadlineExceeded), err
	}
	return false, nil
}
