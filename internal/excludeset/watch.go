package excludeset

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sonroyaalmerol/indu/internal/corelog"
)

const debounceInterval = 100 * time.Millisecond

// Watcher reloads a Set's patterns from a file whenever that file changes,
// debouncing bursts of filesystem events into a single reload.
type Watcher struct {
	mu            sync.Mutex
	fsw           *fsnotify.Watcher
	set           *Set
	path          string
	log           *corelog.Logger
	debounceTimer *time.Timer
	done          chan struct{}
}

// WatchFile starts watching path for changes, reloading set on each
// settled change. Close stops the watch goroutine.
func WatchFile(log *corelog.Logger, set *Set, path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		fsw.Close()
		return nil, err
	}

	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{fsw: fsw, set: set, path: absPath, log: log, done: make(chan struct{})}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn().WithField("path", w.path).WithMessage("exclusion watcher error: " + err.Error()).Write()
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(debounceInterval, w.reload)
}

func (w *Watcher) reload() {
	patterns, err := LoadFile(w.path)
	if err != nil {
		w.log.Warn().WithField("path", w.path).WithMessage("failed to reload exclusion patterns").Write()
		return
	}
	w.set.Reload(patterns)
}

// Close stops the watch goroutine and releases the underlying fsnotify
// watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
