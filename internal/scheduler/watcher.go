package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/MrSnakeDoc/mailmarks/internal/logger"
)

// DefaultWatchDebounce groups bursts of file events (one message can write
// several bookmarks) into a single trigger.
const DefaultWatchDebounce = 500 * time.Millisecond

// ContentWatcher calls a trigger when markdown files in the content
// directory are created, changed, renamed or removed.
type ContentWatcher struct {
	dir      string
	ext      string
	trigger  func()
	logger   logger.Logger
	debounce time.Duration
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewContentWatcher creates a watcher over dir for files ending in ext.
func NewContentWatcher(dir, ext string, trigger func(), log logger.Logger) *ContentWatcher {
	if log == nil {
		log = logger.NewNop()
	}
	return &ContentWatcher{
		dir:      dir,
		ext:      ext,
		trigger:  trigger,
		logger:   log,
		debounce: DefaultWatchDebounce,
		done:     make(chan struct{}),
	}
}

// Start begins watching. The directory is created when missing so the
// first ingested bookmark is noticed.
func (w *ContentWatcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create content directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(w.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.watcher = watcher

	w.logger.Info("watching content directory", logger.String("dir", w.dir))

	go w.loop(ctx)
	return nil
}

func (w *ContentWatcher) loop(ctx context.Context) {
	defer close(w.done)

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("content changed",
				logger.String("path", ev.Name),
				logger.String("op", ev.Op.String()))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			pending = timer.C

		case <-pending:
			pending = nil
			w.trigger()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("content watcher error", logger.Error(err))

		case <-ctx.Done():
			return
		}
	}
}

func (w *ContentWatcher) relevant(ev fsnotify.Event) bool {
	if !strings.HasSuffix(ev.Name, w.ext) {
		return false
	}
	// Atomic writers create dot-prefixed temp files first.
	if strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) ||
		ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename)
}

// Stop closes the underlying watcher and waits for the loop to exit
func (w *ContentWatcher) Stop() {
	if w.watcher == nil {
		return
	}
	_ = w.watcher.Close()
	<-w.done
}
