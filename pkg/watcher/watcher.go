// Package watcher follows a project's inputs on disk and reports batched
// change events, so the build files can be regenerated as sources evolve.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kilnpkg/kiln/pkg/logging"
	"github.com/kilnpkg/kiln/pkg/manifest"
)

// ChangeType classifies what kind of project input changed
type ChangeType int

const (
	ChangeTypeSource ChangeType = iota
	ChangeTypeHeader
	ChangeTypeManifest
)

// ChangeEvent represents a batch of file system changes
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

// ProjectWatcher watches a project's manifest, sources and headers
type ProjectWatcher struct {
	watcher  *fsnotify.Watcher
	manifest *manifest.Manifest
	events   chan ChangeEvent
	done     chan struct{}
	mu       sync.Mutex
}

// NewProjectWatcher creates a watcher for the project described by m
func NewProjectWatcher(m *manifest.Manifest) (*ProjectWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	pw := &ProjectWatcher{
		watcher:  watcher,
		manifest: m,
		events:   make(chan ChangeEvent, 100),
		done:     make(chan struct{}),
	}

	return pw, nil
}

// Start begins watching for file changes
func (pw *ProjectWatcher) Start(ctx context.Context) error {
	if err := pw.watchSourceDirs(); err != nil {
		return err
	}

	// The manifest itself; fsnotify wants the containing directory so
	// editors replacing the file are still seen.
	if err := pw.watcher.Add(pw.manifest.Dir()); err != nil {
		logging.Warn("failed to watch project directory", "error", err)
	}

	logging.Info("started watching project", "path", pw.manifest.Dir())

	go pw.processEvents(ctx)

	return nil
}

// watchSourceDirs adds every directory under src/ and include/ to the
// watcher. fsnotify is not recursive, so each directory is added itself.
func (pw *ProjectWatcher) watchSourceDirs() error {
	dirs := []string{pw.manifest.SrcDir()}
	includeDir := filepath.Join(pw.manifest.Dir(), "include")
	if _, err := os.Stat(includeDir); err == nil {
		dirs = append(dirs, includeDir)
	}

	count := 0
	for _, root := range dirs {
		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil // Skip files we can't access
			}
			if !info.IsDir() {
				return nil
			}
			if err := pw.watcher.Add(path); err != nil {
				logging.Warn("failed to watch directory", "path", path, "error", err)
				return nil
			}
			count++
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to walk %s: %w", root, err)
		}
	}

	logging.Info("monitoring source directories", "count", count)
	return nil
}

// classify maps a changed path to a change type, or false for files the
// build does not care about.
func (pw *ProjectWatcher) classify(path string) (ChangeType, bool) {
	if filepath.Base(path) == manifest.FileName {
		return ChangeTypeManifest, true
	}
	ext := filepath.Ext(path)
	if _, ok := pw.manifest.SourceExts()[ext]; ok {
		return ChangeTypeSource, true
	}
	if _, ok := pw.manifest.HeaderExts()[ext]; ok {
		return ChangeTypeHeader, true
	}
	return 0, false
}

// processEvents processes file system events and batches them by type
func (pw *ProjectWatcher) processEvents(ctx context.Context) {
	batches := make(map[ChangeType][]string)

	flushTimer := time.NewTimer(100 * time.Millisecond)
	flushTimer.Stop()

	flush := func() {
		for _, ct := range []ChangeType{ChangeTypeManifest, ChangeTypeSource, ChangeTypeHeader} {
			if paths := batches[ct]; len(paths) > 0 {
				pw.events <- ChangeEvent{
					Type:      ct,
					Paths:     paths,
					Timestamp: time.Now(),
				}
				delete(batches, ct)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			pw.watcher.Close()
			close(pw.events)
			close(pw.done)
			return

		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}

			// New subdirectories under src/ need their own watch.
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = pw.watcher.Add(event.Name)
					continue
				}
			}

			ct, relevant := pw.classify(event.Name)
			if !relevant {
				continue
			}

			batches[ct] = append(batches[ct], event.Name)
			flushTimer.Reset(100 * time.Millisecond)

		case <-flushTimer.C:
			flush()

		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

// Events returns the channel of change events
func (pw *ProjectWatcher) Events() <-chan ChangeEvent {
	return pw.events
}

// Stop stops the file watcher
func (pw *ProjectWatcher) Stop() error {
	close(pw.done)
	return pw.watcher.Close()
}
