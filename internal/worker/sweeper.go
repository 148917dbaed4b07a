package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/Petrpejsek/nejnovejsi-aktualni-srovnavac-ai-sub004/internal/core/ports/driven"
)

const (
	defaultSweepInterval = 5 * time.Minute
	defaultTaskRetention = 7 * 24 * time.Hour
)

// Purger physically removes expired entries. ResultStore and the Postgres
// session store satisfy it.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// SweeperConfig holds configuration for the sweeper.
type SweeperConfig struct {
	// Purgers are swept every Interval, keyed by a name used in logs
	Purgers map[string]Purger
	// TaskQueue has finished tasks older than TaskRetention purged (optional)
	TaskQueue     driven.TaskQueue
	TaskRetention time.Duration
	Interval      time.Duration
	Logger        *slog.Logger
}

// Sweeper periodically purges expired results, sessions and finished tasks.
type Sweeper struct {
	purgers       map[string]Purger
	taskQueue     driven.TaskQueue
	taskRetention time.Duration
	interval      time.Duration
	logger        *slog.Logger
}

// NewSweeper creates a new sweeper.
func NewSweeper(cfg SweeperConfig) *Sweeper {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	retention := cfg.TaskRetention
	if retention <= 0 {
		retention = defaultTaskRetention
	}
	return &Sweeper{
		purgers:       cfg.Purgers,
		taskQueue:     cfg.TaskQueue,
		taskRetention: retention,
		interval:      interval,
		logger:        logger,
	}
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one purge pass and returns the number of removed entries per name.
// Failures are logged and do not stop the other purgers.
func (s *Sweeper) Sweep(ctx context.Context) map[string]int {
	removed := make(map[string]int, len(s.purgers)+1)

	for name, p := range s.purgers {
		n, err := p.PurgeExpired(ctx)
		if err != nil {
			s.logger.Warn("purge failed", "target", name, "error", err)
			continue
		}
		removed[name] = n
		if n > 0 {
			s.logger.Info("purged expired entries", "target", name, "count", n)
		}
	}

	if s.taskQueue != nil {
		n, err := s.taskQueue.PurgeTasks(ctx, s.taskRetention)
		if err != nil {
			s.logger.Warn("purge failed", "target", "tasks", "error", err)
		} else {
			removed["tasks"] = n
			if n > 0 {
				s.logger.Info("purged finished tasks", "count", n)
			}
		}
	}

	return removed
}
