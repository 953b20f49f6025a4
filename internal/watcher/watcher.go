// Package watcher observes the artifact tree for out-of-band changes. The
// server assumes artifacts only change through the pipeline; deletions made
// behind its back are logged so operators can explain why a range suddenly
// re-extracts.
package watcher

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher follows the artifact root and every directory beneath it.
// fsnotify watches are not recursive, so directories are added as they
// appear.
type Watcher struct {
	fs     *fsnotify.Watcher
	root   string
	logger *slog.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a watcher over the artifact root.
func New(root string, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fs:     fsw,
		root:   root,
		logger: logger,
	}, nil
}

// Start registers the existing directory tree and begins processing events.
func (w *Watcher) Start() error {
	err := filepath.WalkDir(w.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.fs.Add(path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	w.wg.Add(1)
	go w.run()

	if w.logger != nil {
		w.logger.Info("artifact watcher started", "root", w.root)
	}
	return nil
}

// Close stops event processing and releases the underlying watcher.
func (w *Watcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		err = w.fs.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Warn("artifact watcher error", "error", err)
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	switch {
	case event.Op.Has(fsnotify.Create):
		// New directories need their own watch before events inside them fire.
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.fs.Add(event.Name); err != nil && w.logger != nil {
				w.logger.Warn("failed to watch new directory", "path", event.Name, "error", err)
			}
		}
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		if isArtifactPath(event.Name) && w.logger != nil {
			w.logger.Warn("artifact removed out of band",
				"path", event.Name,
				"op", event.Op.String(),
			)
		}
	}
}

// isArtifactPath reports whether a path belongs to the persisted artifact
// layout, as opposed to temp files and unrelated clutter.
func isArtifactPath(path string) bool {
	base := filepath.Base(path)
	switch {
	case base == "coverage.json":
		return true
	case base == "full-content.txt":
		return true
	case strings.HasSuffix(base, ".mp3"):
		return true
	case strings.HasSuffix(base, "-alignment.json"):
		return true
	case strings.HasSuffix(base, "-benchmarks.json"):
		return true
	case strings.HasPrefix(base, "page_") && strings.HasSuffix(base, ".png"):
		return true
	default:
		return false
	}
}
