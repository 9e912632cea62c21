package donations

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounceInterval = 150 * time.Millisecond

// Follow prints the file, then watches it and prints it again whenever
// changes settle. The containing directory is watched so that an atomic
// replacement by Delete is observed. Follow returns when ctx is done.
func (s *Store) Follow(ctx context.Context, path string, out io.Writer) error {
	logger := s.loggerOrDefault()

	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	if err := s.printFile(path, out); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(absPath)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch directory %s: %w", dir, err)
	}
	logger.Info("Follow mode active", "path", absPath, "debounce", watchDebounceInterval.String())

	var debounceTimer *time.Timer
	for {
		var debounceC <-chan time.Time
		if debounceTimer != nil {
			debounceC = debounceTimer.C
		}

		select {
		case <-ctx.Done():
			logger.Info("Stopping follow mode", "reason", ctx.Err())
			stopTimer(&debounceTimer)
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absPath || !shouldRefresh(event.Op) {
				continue
			}
			scheduleRefresh(&debounceTimer)
		case err, ok := <-watcher.Errors:
			if !ok || err == nil {
				continue
			}
			logger.Error("Watcher error", "error", err)
		case <-debounceC:
			stopTimer(&debounceTimer)
			if err := s.printFile(path, out); err != nil {
				logger.Warn("Failed to refresh file", "path", path, "error", err)
			}
		}
	}
}

func (s *Store) printFile(path string, out io.Writer) error {
	lines, err := s.Display(path)
	if err != nil {
		return err
	}
	fmt.Fprint(out, "\n\n")
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	return nil
}

func shouldRefresh(op fsnotify.Op) bool {
	return op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}

func scheduleRefresh(timer **time.Timer) {
	if *timer == nil {
		*timer = time.NewTimer(watchDebounceInterval)
		return
	}
	if !(*timer).Stop() {
		select {
		case <-(*timer).C:
		default:
		}
	}
	(*timer).Reset(watchDebounceInterval)
}

func stopTimer(timer **time.Timer) {
	if *timer == nil {
		return
	}
	if !(*timer).Stop() {
		select {
		case <-(*timer).C:
		default:
		}
	}
	*timer = nil
}
