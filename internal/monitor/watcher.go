package monitor

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchedExtensions are the source file suffixes that trigger checks.
var watchedExtensions = map[string]bool{
	".go":   true,
	".py":   true,
	".js":   true,
	".jsx":  true,
	".ts":   true,
	".tsx":  true,
	".java": true,
	".rb":   true,
	".rs":   true,
}

// FileWatcher watches a directory tree for source changes and runs the
// configured check commands after a quiet period. Bursts of saves collapse
// into a single check run.
type FileWatcher struct {
	logger   *slog.Logger
	root     string
	debounce time.Duration
	commands []string
	runner   *ProcessRunner
}

// NewFileWatcher creates a watcher over root.
func NewFileWatcher(logger *slog.Logger, root string, debounce time.Duration, commands []string, runner *ProcessRunner) *FileWatcher {
	return &FileWatcher{
		logger:   logger,
		root:     root,
		debounce: debounce,
		commands: commands,
		runner:   runner,
	}
}

// Run watches until the context is cancelled.
func (w *FileWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := w.addTree(watcher, w.root); err != nil {
		return err
	}

	w.logger.Info("watching for changes",
		"root", w.root,
		"debounce", w.debounce,
		"commands", len(w.commands))

	// the timer stays stopped until the first relevant change
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				// new directories need their own watch
				if err := w.addTree(watcher, event.Name); err == nil {
					w.logger.Debug("watching new path", "path", event.Name)
				}
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("change detected", "path", event.Name, "op", event.Op.String())
			timer.Reset(w.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)

		case <-timer.C:
			w.runChecks(ctx)
		}
	}
}

// addTree registers path and every directory below it. Hidden directories
// and node_modules are skipped.
func (w *FileWatcher) addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		name := d.Name()
		if path != root && (strings.HasPrefix(name, ".") || name == "node_modules" || name == "vendor") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

func (w *FileWatcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
		return false
	}
	return watchedExtensions[strings.ToLower(filepath.Ext(event.Name))]
}

func (w *FileWatcher) runChecks(ctx context.Context) {
	for _, command := range w.commands {
		detected, err := w.runner.Run(ctx, command)
		if err != nil {
			return
		}
		if len(detected) > 0 {
			w.logger.Info("check reported errors", "command", command, "detections", len(detected))
		}
	}
}
