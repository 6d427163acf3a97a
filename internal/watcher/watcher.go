// Package watcher drops cached thumbnails when a source video in the media
// directory is deleted, renamed or rewritten.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"movieview/internal/cachekey"
	"movieview/internal/logging"
	"movieview/internal/metrics"
)

// PathIndex maps a video path to the fingerprint it was last cached under.
type PathIndex interface {
	FingerprintForPath(path string) (string, bool)
	ForgetPath(path string) error
}

// Invalidator removes every cached thumbnail of a fingerprint.
type Invalidator interface {
	RemoveFingerprint(ctx context.Context, fingerprint string) error
}

// Watcher follows a directory tree with fsnotify.
type Watcher struct {
	root  string
	index PathIndex
	cache Invalidator

	fsw  *fsnotify.Watcher
	wg   sync.WaitGroup
	once sync.Once
}

// New creates a Watcher for root. Nothing is watched until Start.
func New(root string, index PathIndex, cache Invalidator) *Watcher {
	return &Watcher{root: root, index: index, cache: cache}
}

// Start adds every non-hidden directory under root and begins processing
// events in the background.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		metrics.WatcherErrors.Inc()
		return err
	}
	w.fsw = fsw

	count := w.addDirectories(w.root)
	metrics.WatchedDirectories.Set(float64(count))
	logging.Info("Media watcher started, watching %d directories", count)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.processEvents()
	}()
	return nil
}

// Stop closes the underlying watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.once.Do(func() {
		if w.fsw == nil {
			return
		}
		if err := w.fsw.Close(); err != nil {
			logging.Error("failed to close file watcher: %v", err)
		}
		w.wg.Wait()
	})
}

func (w *Watcher) addDirectories(root string) int {
	count := 0
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if addErr := w.fsw.Add(path); addErr != nil {
			logging.Warn("failed to add path to watcher %s: %v", path, addErr)
			metrics.WatcherErrors.Inc()
		} else {
			count++
		}
		return nil
	})
	if err != nil {
		logging.Error("failed to walk media directory for watcher: %v", err)
		metrics.WatcherErrors.Inc()
	}
	return count
}

func (w *Watcher) processEvents() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Error("Watcher error: %v", err)
			metrics.WatcherErrors.Inc()
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if strings.Contains(event.Name, string(filepath.Separator)+".") {
		return
	}
	metrics.WatcherEventsTotal.WithLabelValues(eventType(event.Op)).Inc()

	switch {
	case event.Has(fsnotify.Create):
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() && w.fsw != nil {
			added := w.addDirectories(event.Name)
			metrics.WatchedDirectories.Add(float64(added))
			logging.Debug("Added new directory to watcher: %s", event.Name)
		}
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.invalidate(event.Name, "")
	case event.Has(fsnotify.Write):
		current := ""
		if id, err := cachekey.ForFile(event.Name); err == nil {
			current = id.Fingerprint
		}
		w.invalidate(event.Name, current)
	}
}

// invalidate drops the thumbnails recorded for path unless its fingerprint
// is still current.
func (w *Watcher) invalidate(path, current string) {
	fp, ok := w.index.FingerprintForPath(path)
	if !ok || fp == current {
		return
	}

	if err := w.cache.RemoveFingerprint(context.Background(), fp); err != nil {
		logging.Warn("Failed to drop thumbnails of %s: %v", path, err)
		metrics.WatcherErrors.Inc()
		return
	}
	if err := w.index.ForgetPath(path); err != nil {
		logging.Debug("Failed to forget path %s: %v", path, err)
	}
	metrics.WatcherInvalidationsTotal.Inc()
	logging.Debug("Dropped cached thumbnails of %s (%s)", path, fp)
}

func eventType(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	case op.Has(fsnotify.Chmod):
		return "chmod"
	default:
		return "unknown"
	}
}
