package worker

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yahoon/Copr/internal/logfields"
)

// Watcher reports job files appearing in the spool root.
type Watcher struct {
	dir          string
	onJob        func(path string)
	watcher      *fsnotify.Watcher
	debounceTime time.Duration

	mu       sync.Mutex
	timers   map[string]*time.Timer
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool
}

// NewWatcher creates a watcher on dir calling onJob for every job file that
// was created, written or moved in, once it has been quiet for a short while.
func NewWatcher(dir string, onJob func(path string)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to resolve spool path: %w", err)
	}
	return &Watcher{
		dir:          absDir,
		onJob:        onJob,
		watcher:      w,
		debounceTime: 200 * time.Millisecond,
		timers:       make(map[string]*time.Timer),
		stopChan:     make(chan struct{}),
	}, nil
}

// Start begins watching the spool root.
func (w *Watcher) Start(context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch spool directory %s: %w", w.dir, err)
	}
	slog.Info("Starting spool watcher", logfields.Path(w.dir))
	w.running.Store(true)
	go w.watchLoop()
	return nil
}

// Stop stops the watcher and drops pending notifications.
func (w *Watcher) Stop(context.Context) error {
	w.stopOnce.Do(func() {
		slog.Info("Stopping spool watcher")
		close(w.stopChan)
		if err := w.watcher.Close(); err != nil {
			slog.Error("Error closing file watcher", logfields.Error(err))
		}
		w.mu.Lock()
		for name, t := range w.timers {
			t.Stop()
			delete(w.timers, name)
		}
		w.mu.Unlock()
		w.running.Store(false)
	})
	return nil
}

// IsRunning reports whether the watcher is active.
func (w *Watcher) IsRunning() bool { return w.running.Load() }

func (w *Watcher) watchLoop() {
	for {
		select {
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Dir(event.Name) != w.dir || !IsJobFile(event.Name) {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				slog.Debug("Spool job change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
				w.trigger(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Spool watcher error", logfields.Error(err))
		}
	}
}

// trigger (re)arms the debounce timer of path.
func (w *Watcher) trigger(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	select {
	case <-w.stopChan:
		return
	default:
	}
	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounceTime, func() {
		w.mu.Lock()
		delete(w.timers, path)
		w.mu.Unlock()
		w.onJob(path)
	})
}
