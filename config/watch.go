package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yllada/claw-manager/common"
)

// Watcher reloads the gateway config document when it changes on disk and
// hands the fresh document to a callback. Bursts of writes are debounced.
type Watcher struct {
	store    *Store
	debounce time.Duration
	onChange func(*Document)

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWatcher creates a watcher for store. It does nothing until Start.
func NewWatcher(store *Store, debounce time.Duration, onChange func(*Document)) *Watcher {
	if debounce <= 0 {
		debounce = common.ConfigWatchDebounce
	}
	return &Watcher{store: store, debounce: debounce, onChange: onChange}
}

// Start begins watching. The parent directory is watched so that editors
// which replace the file by rename are still seen.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		return nil
	}

	dir := filepath.Dir(w.store.Path())
	if err := common.EnsureDir(dir); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return err
	}
	w.watcher = fw

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.wg.Add(1)
	go w.loop(watchCtx, fw)
	common.LogDebug("Watching %s for changes", w.store.Path())
	return nil
}

// Close stops the watcher and waits for its goroutine.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	fw := w.watcher
	w.watcher = nil
	w.mu.Unlock()

	var err error
	if fw != nil {
		err = fw.Close()
	}
	w.wg.Wait()
	return err
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	defer w.wg.Done()

	target := filepath.Clean(w.store.Path())

	var mu sync.Mutex
	var timer *time.Timer
	schedule := func() {
		mu.Lock()
		defer mu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, func() {
			if ctx.Err() != nil {
				return
			}
			doc, err := w.store.LoadConfig()
			if err != nil {
				common.LogWarn("Reloading %s failed: %v", target, err)
				return
			}
			if w.onChange != nil {
				w.onChange(doc)
			}
		})
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 {
				schedule()
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			common.LogWarn("Config watch error: %v", err)
		}
	}
}
