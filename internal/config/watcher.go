package config

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"atlassianmcp/pkg/logging"
)

// RuntimeOverrides is the subset of configuration that may change while the
// server runs. Credentials and transport settings stay fixed for the process
// lifetime; operational gates do not have to.
type RuntimeOverrides struct {
	ReadOnly     bool
	EnabledTools []string
}

// WatchRuntimeOverrides watches the YAML config file and invokes apply with
// the fresh overrides whenever it changes. The watcher stops when ctx is
// cancelled. Editors replace files rather than writing in place, so rename
// and create events on the parent directory are treated like writes.
func WatchRuntimeOverrides(ctx context.Context, path string, apply func(RuntimeOverrides)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory: the file itself disappears during atomic saves.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		target := filepath.Clean(path)
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
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				overrides, err := readRuntimeOverrides(path)
				if err != nil {
					logging.Warn("Config", "Ignoring config change, reload failed: %v", err)
					continue
				}
				logging.Info("Config", "Reloaded runtime overrides from %s (readOnly=%v, %d enabled tools)",
					path, overrides.ReadOnly, len(overrides.EnabledTools))
				apply(overrides)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warn("Config", "Config watcher error: %v", err)
			}
		}
	}()

	return nil
}

func readRuntimeOverrides(path string) (RuntimeOverrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuntimeOverrides{}, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return RuntimeOverrides{}, err
	}
	return RuntimeOverrides{
		ReadOnly:     cfg.Server.ReadOnly,
		EnabledTools: cfg.Server.EnabledTools,
	}, nil
}
