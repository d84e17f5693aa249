// Package watch triggers a reload when files in a directory change.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"qahub/internal/log"
)

const DefaultDebounce = 500 * time.Millisecond

// Watcher calls Reload once per burst of changes in Dir. Hidden files and
// chmod-only events are ignored.
type Watcher struct {
	Dir      string
	Debounce time.Duration
	Reload   func(ctx context.Context) error
	Logger   *log.Logger
}

// Run blocks until ctx is cancelled or the underlying watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.Dir, err)
	}
	logger := w.Logger
	if logger == nil {
		logger = log.Nop()
	}
	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	timer := time.NewTimer(debounce)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !Relevant(ev) {
				continue
			}
			logger.Debug("change detected", "path", ev.Name, "op", ev.Op.String())
			timer.Reset(debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)
		case <-timer.C:
			if err := w.Reload(ctx); err != nil {
				logger.Error("reload failed", "dir", w.Dir, "error", err)
			}
		}
	}
}

// Relevant reports whether ev should trigger a reload.
func Relevant(ev fsnotify.Event) bool {
	if strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return false
	}
	return ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write) ||
		ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename)
}
