package knowledgebase

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const reloadDebounce = 250 * time.Millisecond

// Watch reloads the file whenever it changes until ctx is done. The parent directory is
// watched so that editors replacing the file through a rename are picked up.
func (kb *KnowledgeBase) Watch(ctx context.Context) error {
	if kb.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create knowledge base watcher: %w", err)
	}
	target := filepath.Clean(kb.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	go func() {
		defer watcher.Close()

		var timer *time.Timer
		var fire <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if timer == nil {
					timer = time.NewTimer(reloadDebounce)
				} else {
					timer.Reset(reloadDebounce)
				}
				fire = timer.C
			case <-fire:
				fire = nil
				if err := kb.Reload(); err != nil {
					kb.log.Error().Err(err).Msg("knowledge base reload failed, keeping previous entries")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				kb.log.Warn().Err(err).Msg("knowledge base watcher error")
			}
		}
	}()

	kb.log.Info().Str("path", target).Msg("watching knowledge base for changes")
	return nil
}
