package config

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDelay coalesces the burst of events an editor save produces.
const reloadDelay = 100 * time.Millisecond

// WatchRouting reloads the routing file whenever it changes and passes each
// valid version to onChange. Invalid versions are logged and skipped so the
// last good tables stay in effect. It blocks until ctx is done.
//
// The parent directory is watched rather than the file so that editors
// which replace the file by rename keep triggering reloads.
func WatchRouting(ctx context.Context, path string, onChange func(*Routing)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create routing watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve routing path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch routing directory: %w", err)
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(reloadDelay)
			fire = timer.C
		case <-fire:
			fire = nil
			r, err := LoadRouting(abs)
			if err != nil {
				log.Printf("[config] keeping previous routing tables: %v", err)
				continue
			}
			onChange(r)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("[config] routing watcher error: %v", err)
		}
	}
}
