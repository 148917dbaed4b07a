// Package poller resolves a search session by polling the result store under
// a bounded time budget and reports a four-state progress model.
package poller

import (
	"context"
	"math"
	"time"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/domain"
)

// Default timing
const (
	DefaultInterval     = time.Second
	DefaultBudget       = 30 * time.Second
	DefaultErrorBackoff = 2 * time.Second
	DefaultExpected     = 5 * time.Second

	maxEstimatedProgress = 90
	processingThreshold  = 30
)

// Fetcher reads the current result for a session.
// found=false with a nil error means "not ready yet"; a non-nil error is a transport error.
type Fetcher interface {
	Fetch(ctx context.Context, sessionID string) (*domain.ResultPayload, bool, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, sessionID string) (*domain.ResultPayload, bool, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, sessionID string) (*domain.ResultPayload, bool, error) {
	return f(ctx, sessionID)
}

// Update is a progress notification.
type Update struct {
	State    domain.PollState
	Progress int
	Attempt  int
	Elapsed  time.Duration
}

// Outcome is the terminal result of a poll loop. Payload is set only when completed.
type Outcome struct {
	State     domain.PollState
	Payload   *domain.ResultPayload
	Err       *domain.PollError
	Attempts  int
	Elapsed   time.Duration
	Cancelled bool
}

// Resolver polls a Fetcher for one session.
// Attempt k runs Interval after the previous attempt, or ErrorBackoff after a
// transport error. At most ceil(Budget/Interval) attempts run and none after
// the budget deadline.
type Resolver struct {
	Fetcher      Fetcher
	Interval     time.Duration
	Budget       time.Duration
	ErrorBackoff time.Duration
	// Expected is the typical processing time driving the progress estimate
	Expected time.Duration
	// OnUpdate receives progress notifications from the polling goroutine (optional)
	OnUpdate func(Update)
}

func (r *Resolver) withDefaults() Resolver {
	c := *r
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.Budget <= 0 {
		c.Budget = DefaultBudget
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = DefaultErrorBackoff
	}
	if c.Expected <= 0 {
		c.Expected = DefaultExpected
	}
	return c
}

// MaxAttempts returns ceil(Budget/Interval).
func (r *Resolver) MaxAttempts() int {
	c := r.withDefaults()
	return int(math.Ceil(float64(c.Budget) / float64(c.Interval)))
}

// Run polls until a result is found, an error is reported, the budget is
// exhausted or ctx is cancelled.
func (r *Resolver) Run(ctx context.Context, sessionID string) Outcome {
	c := r.withDefaults()
	maxAttempts := c.MaxAttempts()

	start := time.Now()
	deadline := start.Add(c.Budget)

	state := domain.PollWaiting
	progress := 0
	c.emit(Update{State: state})

	scheduled := start
	wait := c.Interval
	attempts := 0
	var lastErr error

	for attempts < maxAttempts {
		next := scheduled.Add(wait)
		if now := time.Now(); next.Before(now) {
			next = now
		}
		if next.After(deadline) {
			// No further attempt fits in the budget; give up at the deadline, not before
			if !sleepUntil(ctx, deadline) {
				return c.cancelled(attempts, start)
			}
			break
		}
		if !sleepUntil(ctx, next) {
			return c.cancelled(attempts, start)
		}
		scheduled = next
		attempts++

		elapsed := time.Since(start)
		p := c.estimate(elapsed)
		nextState := state
		if state == domain.PollWaiting && p > processingThreshold {
			nextState = domain.PollProcessing
		}
		if p != progress || nextState != state {
			progress, state = p, nextState
			c.emit(Update{State: state, Progress: progress, Attempt: attempts, Elapsed: elapsed})
		}

		attemptCtx, cancel := context.WithDeadline(ctx, maxTime(deadline, time.Now().Add(c.Interval)))
		payload, found, err := c.Fetcher.Fetch(attemptCtx, sessionID)
		cancel()

		if ctx.Err() != nil {
			return c.cancelled(attempts, start)
		}
		if err != nil {
			lastErr = err
			wait = c.ErrorBackoff
			continue
		}
		lastErr = nil
		wait = c.Interval

		if !found || payload == nil {
			continue
		}

		elapsed = time.Since(start)
		if payload.Status == domain.ResultError {
			return c.finish(Outcome{
				State:    domain.PollFailed,
				Attempts: attempts,
				Elapsed:  elapsed,
				Err: &domain.PollError{
					Kind:     domain.PollReported,
					Attempts: attempts,
					Elapsed:  elapsed,
					Budget:   c.Budget,
					Cause:    reportedError(payload.Error),
				},
			}, 100)
		}
		return c.finish(Outcome{
			State:    domain.PollCompleted,
			Payload:  payload,
			Attempts: attempts,
			Elapsed:  elapsed,
		}, 100)
	}

	elapsed := time.Since(start)
	kind := domain.PollTimeout
	if lastErr != nil {
		kind = domain.PollTransport
	}
	return c.finish(Outcome{
		State:    domain.PollFailed,
		Attempts: attempts,
		Elapsed:  elapsed,
		Err: &domain.PollError{
			Kind:     kind,
			Attempts: attempts,
			Elapsed:  elapsed,
			Budget:   c.Budget,
			Cause:    lastErr,
		},
	}, progress)
}

// estimate is linear up to 90% over the expected processing time.
func (r *Resolver) estimate(elapsed time.Duration) int {
	p := int(float64(elapsed) / float64(r.Expected) * maxEstimatedProgress)
	if p > maxEstimatedProgress {
		return maxEstimatedProgress
	}
	return p
}

func (r *Resolver) emit(u Update) {
	if r.OnUpdate != nil {
		r.OnUpdate(u)
	}
}

func (r *Resolver) finish(o Outcome, progress int) Outcome {
	r.emit(Update{State: o.State, Progress: progress, Attempt: o.Attempts, Elapsed: o.Elapsed})
	return o
}

func (r *Resolver) cancelled(attempts int, start time.Time) Outcome {
	return Outcome{
		Cancelled: true,
		Attempts:  attempts,
		Elapsed:   time.Since(start),
	}
}

type reportedError string

func (e reportedError) Error() string {
	if e == "" {
		return "workflow reported an error"
	}
	return string(e)
}

// sleepUntil waits for t and reports false if ctx was cancelled first.
func sleepUntil(ctx context.Context, t time.Time) bool {
	timer := time.NewTimer(time.Until(t))
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
