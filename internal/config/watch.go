package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for writes to settle before
// reloading. Editors often emit several events for a single save.
const DefaultDebounce = 500 * time.Millisecond

// Watcher reloads sps.toml when the file changes on disk.
//
// Reloads merge the file over built-in defaults and SPS_* environment
// variables, then validate; the callback fires only for clean loads, so a
// broken edit keeps the previous configuration live.
type Watcher struct {
	path     string
	debounce time.Duration
	onReload func(*Config)

	fw       *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher creates a watcher for the config file at path. onReload
// receives the resolved configuration after every settled, valid change.
// A non-positive debounce uses DefaultDebounce.
func NewWatcher(path string, debounce time.Duration, onReload func(*Config)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	return &Watcher{
		path:     abs,
		debounce: debounce,
		onReload: onReload,
		fw:       fw,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. The parent directory is watched rather than the
// file itself so editors that save by rename-and-replace stay observed.
func (w *Watcher) Start() error {
	dir := filepath.Dir(w.path)
	if err := w.fw.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	go w.loop()
	return nil
}

// Stop stops the watcher. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.fw.Close()
	})
}

// loop debounces events for the config file and reloads once the window
// expires with no further writes.
func (w *Watcher) loop() {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			w.reload()

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			log.Warn("config watcher error", "err", err)
		}
	}
}

// reload parses, resolves, and validates the file, invoking the callback
// only for a clean load.
func (w *Watcher) reload() {
	fileCfg, md, err := LoadFromFile(w.path)
	if err != nil {
		log.Error("config reload failed", "path", w.path, "err", err)
		return
	}

	rc := Resolve(NewDefaults(), fileCfg, os.LookupEnv, nil)
	if vr := Validate(rc.Config, &md); vr.HasErrors() {
		for _, issue := range vr.Errors() {
			log.Error("config reload rejected", "field", issue.Field, "reason", issue.Message)
		}
		return
	}

	log.Info("config reloaded", "path", w.path)
	if w.onReload != nil {
		w.onReload(rc.Config)
	}
}
