package statestore

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch starts watching the state directory and returns a channel of
// sensor ids whose status changed. Live frame updates are reported under
// the vision sensor id. Events are debounced per key so a writer's
// temp-then-rename sequence produces a single notification.
//
// The channel closes when ctx is cancelled.
func (s *Store) Watch(ctx context.Context) (<-chan string, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch state directory: %w", err)
	}

	out := make(chan string, 8)
	go func() {
		defer watcher.Close()
		defer close(out)

		const debounce = 100 * time.Millisecond
		pending := make(map[string]bool)
		var timer *time.Timer
		var fire <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				id := keyForPath(event.Name)
				if id == "" {
					continue
				}
				pending[id] = true
				if timer == nil {
					timer = time.NewTimer(debounce)
				} else {
					timer.Reset(debounce)
				}
				fire = timer.C

			case <-fire:
				for id := range pending {
					select {
					case out <- id:
					case <-ctx.Done():
						return
					}
					delete(pending, id)
				}
				fire = nil

			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return out, nil
}

// keyForPath maps a changed file back to the sensor id it belongs to.
// Temp files and unrelated paths map to "".
func keyForPath(path string) string {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") {
		return ""
	}
	if base == liveFrameName {
		return SensorVision
	}
	if strings.HasSuffix(base, statusSuffix) {
		return strings.TrimSuffix(base, statusSuffix)
	}
	return ""
}
