package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.WorkflowTrigger = (*Webhook)(nil)

const (
	userAgent = "AI-Tools-Search/1.0"

	// defaultRetryAfter applies when a 429 carries no usable Retry-After
	defaultRetryAfter = 30 * time.Second
)

// Config holds webhook trigger configuration
type Config struct {
	URL      string
	APIToken string

	// RequestsPerSecond and Burst shape the token bucket in front of the webhook
	RequestsPerSecond float64
	Burst             int

	// Timeout bounds one HTTP exchange; callers usually pass a shorter ctx
	Timeout time.Duration
}

// Webhook implements WorkflowTrigger by POSTing the dispatch payload to an
// HTTP webhook. A 2xx response is the acknowledgement; the workflow outcome
// arrives later through the callback endpoint.
type Webhook struct {
	url     string
	token   string
	client  *http.Client
	limiter *rate.Limiter

	mu      sync.Mutex
	retryAt time.Time
}

// NewWebhook creates a webhook trigger
func NewWebhook(cfg Config) (*Webhook, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("workflow webhook URL is required: %w", domain.ErrInvalidInput)
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Webhook{
		url:     cfg.URL,
		token:   cfg.APIToken,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
	}, nil
}

// Dispatch sends req and returns once the webhook acknowledged it.
// Every failure wraps domain.ErrDispatchFailed.
func (w *Webhook) Dispatch(ctx context.Context, req *domain.DispatchRequest) error {
	if err := w.wait(ctx); err != nil {
		return fmt.Errorf("%w: rate limited: %v", domain.ErrDispatchFailed, err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%w: failed to marshal payload: %v", domain.ErrDispatchFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", domain.ErrDispatchFailed, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	if w.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+w.token)
	}

	resp, err := w.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: request failed: %v", domain.ErrDispatchFailed, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode == http.StatusTooManyRequests {
		w.backoff(resp.Header.Get("Retry-After"))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: webhook returned status %d", domain.ErrDispatchFailed, resp.StatusCode)
	}
	return nil
}

// wait honours a pending 429 backoff and then the token bucket.
// A backoff that outlasts ctx fails immediately instead of sleeping.
func (w *Webhook) wait(ctx context.Context) error {
	w.mu.Lock()
	retryAt := w.retryAt
	w.mu.Unlock()

	if delay := time.Until(retryAt); delay > 0 {
		if deadline, ok := ctx.Deadline(); ok && time.Now().Add(delay).After(deadline) {
			return fmt.Errorf("webhook backing off for %s", delay.Round(time.Second))
		}
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return w.limiter.Wait(ctx)
}

func (w *Webhook) backoff(retryAfter string) {
	delay := defaultRetryAfter
	if secs, err := strconv.Atoi(retryAfter); err == nil && secs > 0 {
		delay = time.Duration(secs) * time.Second
	}

	w.mu.Lock()
	w.retryAt = time.Now().Add(delay)
	w.mu.Unlock()
}
