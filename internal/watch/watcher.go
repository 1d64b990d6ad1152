// Package watch monitors the book source tree and reruns the build when
// sources change. Rapid bursts of events (editor save, image export) coalesce
// into one rebuild through a debounce window.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// relevantExts lists the file suffixes that can affect build output.
var relevantExts = map[string]bool{
	".tex":  true,
	".sty":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".svg":  true,
	".pdf":  true,
	".ttf":  true,
	".otf":  true,
	".yaml": true,
	".yml":  true,
}

// Watcher monitors a set of directory trees and invokes the rebuild callback
// after the debounce window closes.
type Watcher struct {
	dirs     []string
	onChange func(context.Context)
	watcher  *fsnotify.Watcher
	debounce time.Duration
	log      *slog.Logger

	trigger  chan struct{}
	stopChan chan struct{}
	stopOnce sync.Once
}

// New creates a Watcher over the given directory trees. Empty entries are
// ignored so callers can pass optional config paths directly.
func New(dirs []string, debounce time.Duration, onChange func(context.Context), log *slog.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	return &Watcher{
		dirs:     dirs,
		onChange: onChange,
		watcher:  fw,
		debounce: debounce,
		log:      log,
		trigger:  make(chan struct{}, 1),
		stopChan: make(chan struct{}),
	}, nil
}

// Start registers the directory trees and begins monitoring.
func (w *Watcher) Start(ctx context.Context) error {
	watched := 0
	for _, d := range w.dirs {
		if d == "" {
			continue
		}
		n, err := w.addRecursive(d)
		if err != nil {
			w.log.Warn("cannot watch directory", "dir", d, "error", err)
			continue
		}
		watched += n
	}
	if watched == 0 {
		return fmt.Errorf("no watchable directories among %v", w.dirs)
	}
	w.log.Info("watching for changes", "directories", watched, "debounce", w.debounce)

	go w.watchLoop(ctx)
	go w.rebuildLoop(ctx)
	return nil
}

// Stop shuts the watcher down. Safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		if err := w.watcher.Close(); err != nil {
			w.log.Error("error closing file watcher", "error", err)
		}
	})
}

// addRecursive watches dir and every subdirectory beneath it.
func (w *Watcher) addRecursive(dir string) (int, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return 0, err
	}
	count := 0
	err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != abs {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}

func (w *Watcher) watchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			// New subdirectories join the watch set so files created
			// inside them still trigger rebuilds. A plain file walks to
			// nothing here, which is fine.
			if event.Op&fsnotify.Create == fsnotify.Create {
				_, _ = w.addRecursive(event.Name)
			}
			if !relevantExts[strings.ToLower(filepath.Ext(event.Name))] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.log.Debug("source change detected", "file", event.Name, "op", event.Op.String())
			select {
			case w.trigger <- struct{}{}:
			default:
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("file watcher error", "error", err)
		}
	}
}

// rebuildLoop waits for a trigger, lets the debounce window close, then runs
// the callback. Triggers arriving inside the window restart it.
func (w *Watcher) rebuildLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case <-w.trigger:
		}

		timer := time.NewTimer(w.debounce)
	drain:
		for {
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-w.stopChan:
				timer.Stop()
				return
			case <-w.trigger:
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(w.debounce)
			case <-timer.C:
				break drain
			}
		}
		w.onChange(ctx)
	}
}
