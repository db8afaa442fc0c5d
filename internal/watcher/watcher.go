package watcher

import (
	"dropfiles/internal/logger"
	"dropfiles/internal/model"
	"dropfiles/internal/pipeline"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	DefaultLatency  = 500 * time.Millisecond
	eventBufferSize = 256
)

// Handler receives one coalesced batch per latency window. It is called from
// the watcher's delivery goroutine, never concurrently with itself.
type Handler func(changes []model.FileChange)

type Watcher struct {
	root    string
	latency time.Duration
	handler Handler

	mu      sync.Mutex
	fw      *fsnotify.Watcher
	running bool
	doneCh  chan struct{}
	wg      sync.WaitGroup
}

func New(root string, latency time.Duration, handler Handler) *Watcher {
	if latency <= 0 {
		latency = DefaultLatency
	}

	return &Watcher{
		root:    root,
		latency: latency,
		handler: handler,
	}
}

// Start begins watching the tree. Calling it on a running watcher is a no-op.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	absRoot, err := filepath.Abs(w.root)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	if _, err := os.Stat(absRoot); err != nil {
		return fmt.Errorf("source directory not found: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	w.fw = fw
	w.root = absRoot
	if err := addRecursive(fw, absRoot); err != nil {
		_ = fw.Close()
		w.fw = nil
		return err
	}

	w.doneCh = make(chan struct{})
	changeCh := make(chan model.FileChange, eventBufferSize)
	batchCh := pipeline.Coalesce(changeCh, w.latency)

	w.wg.Add(2)
	go w.run(fw, changeCh, w.doneCh)
	go w.deliver(batchCh, w.doneCh)

	w.running = true

	logger.Log.Info("watcher started",
		zap.String("dir", absRoot),
		zap.Duration("latency", w.latency))

	return nil
}

// Close stops watching, releases the fsnotify handle and waits for the
// goroutines to exit. Batches still pending are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}

	w.running = false
	root := w.root
	close(w.doneCh)
	err := w.fw.Close()
	w.mu.Unlock()

	w.wg.Wait()

	logger.Log.Info("watcher stopped",
		zap.String("dir", root))

	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}

	return nil
}

func (w *Watcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) Root() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.root
}

// addRecursive watches dir and every eligible directory below it. Only a
// failure on dir itself is returned; unreadable subdirectories are skipped.
func addRecursive(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}

			logger.Log.Warn("skipping unreadable directory",
				zap.String("path", path),
				zap.Error(err))

			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.IsDir() {
			return nil
		}

		if path != dir && !pipeline.IsEligible(d.Name()) {
			return filepath.SkipDir
		}

		if err := fw.Add(path); err != nil {
			if path == dir {
				return fmt.Errorf("failed to watch %s: %w", path, err)
			}

			logger.Log.Warn("skipping unwatchable directory",
				zap.String("path", path),
				zap.Error(err))

			return filepath.SkipDir
		}

		logger.Log.Debug("watching directory",
			zap.String("path", path))

		return nil
	})
}

func (w *Watcher) run(fw *fsnotify.Watcher, changeCh chan<- model.FileChange, doneCh <-chan struct{}) {
	defer w.wg.Done()
	defer close(changeCh)

	for {
		select {
		case <-doneCh:
			return

		case fsEvent, ok := <-fw.Events:
			if !ok {
				return
			}

			change, ok := convert(fw, fsEvent)
			if !ok {
				continue
			}

			select {
			case changeCh <- change:
			case <-doneCh:
				return
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}

			logger.Log.Warn("watcher error",
				zap.Error(err))
		}
	}
}

func (w *Watcher) deliver(batchCh <-chan []model.FileChange, doneCh <-chan struct{}) {
	defer w.wg.Done()

	for batch := range batchCh {
		select {
		case <-doneCh:
			continue
		default:
		}

		logger.Log.Debug("delivering changes",
			zap.Int("count", len(batch)))
		w.handler(batch)
	}
}

func convert(fw *fsnotify.Watcher, fsEvent fsnotify.Event) (model.FileChange, bool) {
	if !pipeline.IsEligible(filepath.Base(fsEvent.Name)) {
		return model.FileChange{}, false
	}

	kind, ok := toChangeKind(fsEvent.Op)
	if !ok {
		return model.FileChange{}, false
	}

	if kind == model.ChangeCreated {
		if info, err := os.Stat(fsEvent.Name); err == nil && info.IsDir() {
			if err := addRecursive(fw, fsEvent.Name); err != nil {
				logger.Log.Warn("failed to watch new directory",
					zap.String("path", fsEvent.Name),
					zap.Error(err))
			}
		}
	}

	return model.FileChange{Path: fsEvent.Name, Kind: kind}, true
}

// toChangeKind applies Create > Write > Remove precedence. fsnotify reports a
// rename under the old name, so it counts as a removal.
func toChangeKind(op fsnotify.Op) (model.ChangeKind, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return model.ChangeCreated, true
	case op.Has(fsnotify.Write):
		return model.ChangeModified, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return model.ChangeDeleted, true
	default:
		return "", false
	}
}
