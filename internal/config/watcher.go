package config

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/Enriquefft/signal-receiver/internal/logging"
)

// Watcher reloads the config file when it changes and hands the new runtime
// options to a callback. Edits to the connection entry are reported but not
// applied.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	debounce time.Duration
	onChange func(Options)
	logger   *logrus.Entry

	// running is the connection entry the receiver was started with.
	running SignalConfig

	// reloadMu orders reloads and their callbacks.
	reloadMu sync.Mutex

	mu      sync.Mutex
	current *Config
	timer   *time.Timer
}

// NewWatcher watches path, whose currently running configuration is current.
// The file's directory is watched rather than the file itself so editors that
// replace the file on save are seen.
func NewWatcher(path string, current *Config, debounce time.Duration, onChange func(Options)) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, err
	}

	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}

	return &Watcher{
		watcher:  watcher,
		path:     abs,
		debounce: debounce,
		onChange: onChange,
		logger:   logging.NewLogger("config-watcher"),
		running:  current.Signal,
		current:  current,
	}, nil
}

// Start processes file events until ctx is cancelled or the watcher is
// closed.
func (w *Watcher) Start(ctx context.Context) {
	defer w.watcher.Close()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.logger.Debugf("fsnotify event: %s op=%v", event.Name, event.Op)
				w.schedule()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorf("watcher error: %v", err)
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return
		}
	}
}

// schedule coalesces bursts of writes into one reload.
func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	w.reloadMu.Lock()
	defer w.reloadMu.Unlock()

	next, err := Load(w.path)
	if err != nil {
		w.logger.WithError(err).Warn("config reload failed, keeping current options")
		return
	}

	next.Signal.ConnectionType = strings.ToLower(strings.TrimSpace(next.Signal.ConnectionType))

	w.mu.Lock()
	prev := w.current
	if w.running.ConnectionType == ConnectionREST {
		if err := next.Options.Validate(); err != nil {
			w.mu.Unlock()
			w.logger.WithError(err).Error("rejected options change")
			return
		}
	}
	w.current = next
	w.mu.Unlock()

	if next.Signal != prev.Signal && next.Signal != w.running {
		w.logger.Warn("connection settings changed; restart to apply")
	}
	if next.Options != prev.Options && w.onChange != nil {
		w.onChange(next.Options)
	}
}

// Close stops watching.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
