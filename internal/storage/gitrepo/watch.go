package gitrepo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/go-git/go-git/v5"
	"go.uber.org/zap"
)

// Watch notifies when the repository refs change, which is what happens on
// every appended commit. Notifications are coalesced: a receiver that is busy
// sees one pending signal no matter how many commits landed meanwhile. The
// channel is closed when ctx ends or the watcher fails.
func (r *Repository) Watch(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("gitrepo: create watcher: %w", err)
	}

	gitDir := filepath.Join(r.dir, git.GitDirName)
	heads := filepath.Join(gitDir, "refs", "heads")
	if err := os.MkdirAll(heads, 0o755); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("gitrepo: ensure %s: %w", heads, err)
	}
	for _, dir := range []string{gitDir, heads} {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("gitrepo: watch %s: %w", dir, err)
		}
	}

	changes := make(chan struct{}, 1)
	go func() {
		defer close(changes)
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				r.logger.Debug("refs changed", zap.String("event", event.Op.String()), zap.String("file", event.Name))
				select {
				case changes <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.logger.Warn("watch error", zap.Error(err))
			}
		}
	}()

	return changes, nil
}
