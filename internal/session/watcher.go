package session

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads store whenever its file changes on disk, so a login or
// logout in another terminal is picked up by a running client. It watches
// the parent directory because editors and atomic writers replace the file.
// Watch returns once the watcher is running; it stops when ctx is done.
func Watch(ctx context.Context, store *FileStore, onChange func(Data)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file system watcher: %w", err)
	}

	dir := filepath.Dir(store.Path())
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch session directory %s: %w", dir, err)
	}

	go watchFile(ctx, watcher, store, onChange)
	return nil
}

func watchFile(ctx context.Context, watcher *fsnotify.Watcher, store *FileStore, onChange func(Data)) {
	defer watcher.Close()

	target := filepath.Clean(store.Path())
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if err := store.Reload(); err != nil {
				slog.Warn("Failed to reload session after change", "path", target, "error", err)
				continue
			}
			if onChange != nil {
				onChange(store.Data())
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Session watcher error", "error", err)
		}
	}
}
