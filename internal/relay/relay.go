// Package relay forwards website form submissions to the operator's form
// endpoint (a Formspree-style service that emails the garage).
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"coolcar/internal/metrics"
)

// ErrSubmission is the one error visitors see: the form did not go through.
var ErrSubmission = errors.New("form submission failed, please try again")

type Form string

const (
	FormContact Form = "contact"
	FormBooking Form = "booking"
)

type Config struct {
	ContactEndpoint string
	BookingEndpoint string
	Timeout         time.Duration
	HTTP            *http.Client
	Logger          *slog.Logger
}

type Relay struct {
	endpoints map[Form]string
	http      *http.Client
	logger    *slog.Logger
}

func New(cfg Config) *Relay {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.HTTP == nil {
		cfg.HTTP = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Relay{
		endpoints: map[Form]string{FormContact: cfg.ContactEndpoint, FormBooking: cfg.BookingEndpoint},
		http:      cfg.HTTP,
		logger:    cfg.Logger,
	}
}

// Configured reports whether form has an endpoint.
func (r *Relay) Configured(form Form) bool {
	return r != nil && r.endpoints[form] != ""
}

// Submit POSTs fields as a flat JSON object. Any 2xx is success; every other
// outcome, including a missing endpoint, wraps ErrSubmission.
func (r *Relay) Submit(ctx context.Context, form Form, fields map[string]string) error {
	err := r.submit(ctx, form, fields)
	result := "ok"
	if err != nil {
		result = "error"
		r.logger.Warn("form relay failed", "form", form, "err", err)
	}
	metrics.RelaySubmissions.WithLabelValues(string(form), result).Inc()
	return err
}

func (r *Relay) submit(ctx context.Context, form Form, fields map[string]string) error {
	endpoint := r.endpoints[form]
	if endpoint == "" {
		return fmt.Errorf("%w: no %s endpoint configured", ErrSubmission, form)
	}
	body, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: HTTP %d", ErrSubmission, resp.StatusCode)
	}
	return nil
}
