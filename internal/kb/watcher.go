package kb

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads the index whenever files under the knowledge base
// directory change, debouncing bursts of filesystem events from editors and
// sync tools.
type Watcher struct {
	dir     string
	index   *Index
	logger  *zap.Logger
	fsw     *fsnotify.Watcher
	done    chan struct{}
	settled time.Duration
}

// NewWatcher starts watching the directory, reloading the index on change.
// Callers populate the index up front (LoadDocuments + Replace); the watcher
// never re-reads the directory at startup. Close stops the watch goroutine.
func NewWatcher(dir string, index *Index, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create kb watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %q: %w", dir, err)
	}

	w := &Watcher{
		dir:     dir,
		index:   index,
		logger:  logger,
		fsw:     fsw,
		done:    make(chan struct{}),
		settled: 250 * time.Millisecond,
	}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.settled)
				timerC = timer.C
			} else {
				timer.Reset(w.settled)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("kb watch error", zap.Error(err))
		case <-timerC:
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	docs, err := LoadDocuments(w.dir, w.logger)
	if err != nil {
		w.logger.Error("kb reload failed", zap.Error(err))
		return
	}
	w.index.Replace(docs)
	w.logger.Info("knowledge base reloaded", zap.Int("documents", len(docs)))
}

// Close stops watching. The index keeps its last loaded contents.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
