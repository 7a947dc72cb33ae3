package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"

	"localfiles/internal/filesystem"
	"localfiles/internal/logging"
	"localfiles/internal/metrics"
)

// Watcher emits files created or renamed below its roots.
type Watcher struct {
	roots []string
	fs    *filesystem.FS
}

// NewWatcher returns a Watcher over roots. Missing roots are skipped when
// the watcher starts.
func NewWatcher(fs *filesystem.FS, roots []string) *Watcher {
	return &Watcher{roots: roots, fs: fs}
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context, emit func(path string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		metrics.WatcherErrors.Inc()
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			logging.Error("failed to close file watcher: %v", err)
		}
	}()

	watchCount := 0
	for _, root := range w.roots {
		watchCount += w.addTree(watcher, root)
	}
	logging.Info("File watcher started, watching %d directories", watchCount)
	metrics.WatchedDirectories.Set(float64(watchCount))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(watcher, event, emit)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.Error("Watcher error: %v", err)
			metrics.WatcherErrors.Inc()
		}
	}
}

// addTree adds root and every non-hidden directory below it.
func (w *Watcher) addTree(watcher *fsnotify.Watcher, root string) int {
	if _, err := w.fs.Stat(root); err != nil {
		logging.Debug("Skipping watch root %s: %v", root, err)
		return 0
	}

	count := 0
	err := afero.Walk(w.fs.Afero(), root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && hidden(info.Name()) {
			return filepath.SkipDir
		}
		if addErr := watcher.Add(path); addErr != nil {
			logging.Warn("failed to add path to watcher %s: %v", path, addErr)
			metrics.WatcherErrors.Inc()
			return nil
		}
		count++
		return nil
	})
	if err != nil {
		logging.Error("failed to walk %s for watcher: %v", root, err)
		metrics.WatcherErrors.Inc()
	}
	return count
}

func (w *Watcher) handleEvent(watcher *fsnotify.Watcher, event fsnotify.Event, emit func(string)) {
	if hidden(filepath.Base(event.Name)) {
		return
	}

	metrics.WatcherEventsTotal.WithLabelValues(eventType(event.Op)).Inc()

	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	// a rename event names the old path; the new one arrives as a create
	info, err := w.fs.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		added := w.addTree(watcher, event.Name)
		metrics.WatchedDirectories.Add(float64(added))
		logging.Debug("Added new directory to watcher: %s (%d)", event.Name, added)
		w.emitTree(event.Name, emit)
		return
	}

	metrics.DiscoveryCandidatesTotal.WithLabelValues("watch").Inc()
	emit(event.Name)
}

// emitTree emits files already present in a directory that appeared
// before its watch was registered.
func (w *Watcher) emitTree(dir string, emit func(string)) {
	_ = afero.Walk(w.fs.Afero(), dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			if path != dir && hidden(info.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		metrics.DiscoveryCandidatesTotal.WithLabelValues("watch").Inc()
		emit(path)
		return nil
	})
}

func eventType(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create != 0:
		return "create"
	case op&fsnotify.Write != 0:
		return "write"
	case op&fsnotify.Remove != 0:
		return "remove"
	case op&fsnotify.Rename != 0:
		return "rename"
	case op&fsnotify.Chmod != 0:
		return "chmod"
	default:
		return "unknown"
	}
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
