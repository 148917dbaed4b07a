package registration

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Refresher reloads the active registration. runtime.AgentDirectory satisfies it.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Watcher refreshes a Refresher whenever a deployment's current.json changes.
// Rename-based swaps show up as a Create on the pointer name, so the
// deployment directory is watched rather than the file itself.
type Watcher struct {
	store      *FileStore
	deployment string
	target     Refresher
	logger     *slog.Logger
}

// NewWatcher creates a watcher for one deployment of store
func NewWatcher(store *FileStore, deployment string, target Refresher, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		store:      store,
		deployment: deployment,
		target:     target,
		logger:     logger,
	}
}

// Run watches until ctx is cancelled. It returns an error only if the
// watch could not be set up.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer fsw.Close()

	pointerPath := w.store.PointerPath(w.deployment)
	dir := filepath.Dir(pointerPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create registration directory: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	w.logger.Info("watching agent registration pointer", "path", pointerPath)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(pointerPath) {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if err := w.target.Refresh(ctx); err != nil {
				w.logger.Warn("agent refresh after pointer change failed",
					"deployment", w.deployment, "error", err)
			}

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("registration watcher error", "error", err)
		}
	}
}
