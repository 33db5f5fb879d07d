package session

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"obsaudio/log"
)

// settleDelay lets editors finish writing before the file is re-read.
const settleDelay = 100 * time.Millisecond

// WatchFile reconfigures the session from path every time the file is
// written or replaced, until ctx is done. The directory is watched rather
// than the file so atomic-rename saves are seen too.
func (s *Session) WatchFile(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		watcher.Close()
		return err
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				time.Sleep(settleDelay)
				log.Info("[AudioSession] category file changed: " + abs)
				if err := s.ConfigureFile(ctx, abs); err != nil {
					log.Warnf("[AudioSession] reconfigure from %s: %v", abs, err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warnf("[AudioSession] watcher error: %v", err)
			}
		}
	}()
	return nil
}
