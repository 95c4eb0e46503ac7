// Package watch monitors directories for new FITS files.
package watch

import (
	"log/slog"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	"skyproc/internal/fsutil"
)

// Event represents a file system change on a FITS file.
type Event struct {
	Path      string    `json:"path"`
	Operation string    `json:"operation"` // "created", "modified", "deleted"
	Time      time.Time `json:"time"`
	Size      int64     `json:"size"`
}

// Watcher monitors directories for FITS file changes.
type Watcher struct {
	watcher   *fsnotify.Watcher
	Events    chan Event
	watchDirs []string
	log       *slog.Logger
	done      chan struct{}
}

// New creates a watcher over the given directories.
func New(watchPaths []string, log *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:   fw,
		Events:    make(chan Event, 100),
		watchDirs: watchPaths,
		log:       log,
		done:      make(chan struct{}),
	}, nil
}

// Start begins monitoring the configured directories.
func (w *Watcher) Start() error {
	for _, dir := range w.watchDirs {
		if err := w.watcher.Add(dir); err != nil {
			return err
		}
		w.log.Info("watching directory", "dir", dir)
	}
	go w.processEvents()
	return nil
}

// Stop stops the watcher. The Events channel closes once the event loop
// has drained, so only the loop ever sends on it.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.watcher.Close()
}

func (w *Watcher) processEvents() {
	defer close(w.Events)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			var operation string
			switch {
			case event.Op&fsnotify.Create == fsnotify.Create:
				operation = "created"
			case event.Op&fsnotify.Write == fsnotify.Write:
				operation = "modified"
			case event.Op&fsnotify.Remove == fsnotify.Remove:
				operation = "deleted"
			case event.Op&fsnotify.Rename == fsnotify.Rename:
				operation = "renamed"
			default:
				continue
			}

			if !fsutil.IsFITS(event.Name) {
				continue
			}

			var size int64
			if operation != "deleted" {
				if info, err := os.Stat(event.Name); err == nil {
					size = info.Size()
				}
			}

			ev := Event{
				Path:      event.Name,
				Operation: operation,
				Time:      time.Now(),
				Size:      size,
			}
			select {
			case w.Events <- ev:
			default:
				w.log.Warn("event channel full, dropping event", "path", ev.Path)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}
