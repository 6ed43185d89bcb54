package harvest

import (
	"context"
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Watch harvests session files as they are written under dir, blocking
// until the context is cancelled. Each write event re-harvests the whole
// file; the resulting buffer duplicates are collapsed at commit time.
func (h *Harvester) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}

	h.logger.Info("watching session directory", "dir", dir)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !strings.HasSuffix(event.Name, ".jsonl") && !strings.HasSuffix(event.Name, ".json") {
				continue
			}

			result, err := h.HarvestFile(ctx, event.Name)
			if err != nil {
				h.logger.Warn("harvesting changed file failed", "path", event.Name, "error", err)
				continue
			}

			h.logger.Debug("harvested changed file",
				"path", event.Name,
				"appended", result.Appended,
				"malformed", result.Malformed,
			)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.logger.Warn("watcher error", "error", err)
		}
	}
}
