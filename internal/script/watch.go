package script

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

var watchDebounce = 150 * time.Millisecond

// Watch calls fn with the re-parsed script and its warnings (parse problems
// and orphaned references) whenever the file at path changes. The parent
// directory is watched so editors that replace the file are followed. Watch
// returns when ctx is done.
func Watch(ctx context.Context, path string, lookup Lookup, fn func(*Script, []error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}
	target := filepath.Clean(path)

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			data, err := os.ReadFile(path)
			if err != nil {
				// replaced file not there yet; the create event follows
				continue
			}
			s := Parse(string(data))
			warnings := append(s.Warnings(), s.MarkOrphans(lookup)...)
			fn(s, warnings)
		}
	}
}
