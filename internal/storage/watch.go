// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// =============================================================================
// HISTORY FILE WATCHER
// =============================================================================

// DefaultWatchDebounce coalesces the burst of events one atomic write emits.
const DefaultWatchDebounce = 150 * time.Millisecond

// Watcher notices when another process rewrites the history file.
//
// Two clients sharing one history file follow last-writer-wins: the watcher
// only reports the foreign write, it never merges.
type Watcher struct {
	store    *FileStore
	watcher  *fsnotify.Watcher
	debounce time.Duration
	onChange func()

	mu      sync.Mutex
	pending bool
	lastEvt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   sync.WaitGroup
}

// NewWatcher creates a watcher for the store's history file. onChange runs
// on the watcher goroutine after each foreign write.
func NewWatcher(store *FileStore, debounce time.Duration, onChange func()) (*Watcher, error) {
	if store == nil {
		return nil, errors.New("watcher needs a file store")
	}
	if debounce <= 0 {
		debounce = DefaultWatchDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create fsnotify watcher")
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		store:    store,
		watcher:  fw,
		debounce: debounce,
		onChange: onChange,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Watch starts watching. The directory is watched rather than the file,
// because an atomic write replaces the file's inode.
func (w *Watcher) Watch() error {
	if err := w.watcher.Add(filepath.Dir(w.store.Path())); err != nil {
		return errors.Wrap(err, "watch history directory")
	}

	w.done.Add(2)
	go w.processEvents()
	go w.processPending()
	return nil
}

func (w *Watcher) processEvents() {
	defer w.done.Done()
	target := filepath.Clean(w.store.Path())

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}
			w.mu.Lock()
			w.pending = true
			w.lastEvt = time.Now()
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("history watcher error")
		}
	}
}

func (w *Watcher) processPending() {
	defer w.done.Done()

	tick := w.debounce / 3
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			w.mu.Lock()
			ready := w.pending && time.Since(w.lastEvt) >= w.debounce
			if ready {
				w.pending = false
			}
			w.mu.Unlock()

			if ready && w.store.ExternallyModified() {
				log.Warn().Str("path", w.store.Path()).
					Msg("history file was modified by another process; the next save here will overwrite it")
				if w.onChange != nil {
					w.onChange()
				}
			}
		}
	}
}

// Close stops watching and waits for the goroutines to exit.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	w.done.Wait()
	return err
}
