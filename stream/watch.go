package stream

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"streamvb/data"
)

// Watch processes every file already in the source directory, then keeps
// consuming files as they are created until ctx is cancelled. The summary
// line is written on shutdown. A short settle delay lets the writer finish
// before a new file is read.
func (l *Loop) Watch(ctx context.Context, settle time.Duration) error {
	existing, err := data.ListFiles(l.cfg.SourceDir, l.cfg.FileExt)
	if err != nil {
		return fmt.Errorf("list %s: %w", l.cfg.SourceDir, err)
	}
	seen := make(map[string]bool, len(existing))
	for _, path := range existing {
		if err := l.ProcessFile(path); err != nil {
			return err
		}
		seen[path] = true
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(l.cfg.SourceDir); err != nil {
		return err
	}
	l.log.Info("watching for new files", zap.String("dir", l.cfg.SourceDir), zap.String("ext", l.cfg.FileExt))

	for {
		select {
		case <-ctx.Done():
			return l.sink.Summary(l.total)
		case event, ok := <-watcher.Events:
			if !ok {
				return l.sink.Summary(l.total)
			}
			// Only Create announces a new file. A rename out of the
			// directory also delivers an event for the old path, which
			// must not be treated as input.
			if !event.Has(fsnotify.Create) {
				continue
			}
			path := event.Name
			if !strings.HasSuffix(path, l.cfg.FileExt) || seen[path] {
				continue
			}
			if settle > 0 {
				select {
				case <-ctx.Done():
					return l.sink.Summary(l.total)
				case <-time.After(settle):
				}
			}
			if _, err := os.Stat(path); os.IsNotExist(err) {
				// Gone before the settle delay elapsed.
				continue
			}
			if err := l.ProcessFile(path); err != nil {
				return err
			}
			seen[path] = true
		case err, ok := <-watcher.Errors:
			if !ok {
				return l.sink.Summary(l.total)
			}
			return fmt.Errorf("watch %s: %w", l.cfg.SourceDir, err)
		}
	}
}
