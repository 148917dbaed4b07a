package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrSupervisorClosed is returned by Start after Close.
var ErrSupervisorClosed = errors.New("poll supervisor closed")

// Supervisor runs at most one poll loop per consumer. Starting a new poll for
// a consumer cancels its previous one, and a superseded poll never delivers
// its outcome.
type Supervisor struct {
	template Resolver
	logger   *slog.Logger

	mu     sync.Mutex
	polls  map[string]*activePoll
	closed bool
	wg     sync.WaitGroup
}

type activePoll struct {
	sessionID string
	cancel    context.CancelFunc
}

// NewSupervisor creates a supervisor whose polls are configured from template.
func NewSupervisor(template Resolver, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		template: template,
		logger:   logger,
		polls:    make(map[string]*activePoll),
	}
}

// Start begins polling sessionID on behalf of consumer. onUpdate receives
// progress while the poll is current; onDone receives the outcome of a poll
// that was not superseded or stopped. Both callbacks are optional and run on
// the poll goroutine. The returned channel is closed once the loop has exited
// and no callback will run again.
func (s *Supervisor) Start(ctx context.Context, consumer, sessionID string, onUpdate func(Update), onDone func(Outcome)) (<-chan struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSupervisorClosed
	}
	if prev, ok := s.polls[consumer]; ok {
		prev.cancel()
		s.logger.Debug("superseded poll", "consumer", consumer, "session_id", prev.sessionID)
	}

	pollCtx, cancel := context.WithCancel(ctx)
	p := &activePoll{sessionID: sessionID, cancel: cancel}
	s.polls[consumer] = p

	r := s.template
	r.OnUpdate = func(u Update) {
		if onUpdate != nil && pollCtx.Err() == nil {
			onUpdate(u)
		}
	}

	exited := make(chan struct{})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(exited)
		defer cancel()

		out := r.Run(pollCtx, sessionID)
		if !s.release(consumer, p) || out.Cancelled {
			return
		}
		if onDone != nil {
			onDone(out)
		}
	}()
	return exited, nil
}

// release drops p if it is still the consumer's current poll.
func (s *Supervisor) release(consumer string, p *activePoll) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.polls[consumer] != p {
		return false
	}
	delete(s.polls, consumer)
	return true
}

// Stop cancels the consumer's poll. It reports whether one was running.
func (s *Supervisor) Stop(consumer string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polls[consumer]
	if !ok {
		return false
	}
	p.cancel()
	delete(s.polls, consumer)
	return true
}

// Active returns the number of running polls.
func (s *Supervisor) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.polls)
}

// Close cancels every poll and waits for the loops to exit.
func (s *Supervisor) Close() {
	s.mu.Lock()
	s.closed = true
	for consumer, p := range s.polls {
		p.cancel()
		delete(s.polls, consumer)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
