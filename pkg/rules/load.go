package rules

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pelletier/go-toml/v2"
)

// ruleFile is the on-disk TOML shape: a list of [[rules]] tables.
type ruleFile struct {
	Rules []Rule `toml:"rules"`
}

// LoadFile reads a TOML rules file and returns the rules in file order.
func LoadFile(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes raw TOML rules content.
func Parse(data []byte) ([]Rule, error) {
	var rf ruleFile
	if err := toml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse rules: %w", err)
	}
	for _, r := range rf.Rules {
		if r.ID == "" {
			return nil, fmt.Errorf("parse rules: rule with empty id")
		}
	}
	return rf.Rules, nil
}

// fallbackReloadInterval is the safety-net poll period when watching a rules
// file; fsnotify events are the primary trigger.
const fallbackReloadInterval = 60 * time.Second

// Watch reloads the rules file into the engine whenever it changes on disk,
// with a periodic fallback reload as a safety net. A reload that fails to
// parse keeps the previous rule set and reports through the engine's error
// callback. Watch blocks until ctx is cancelled.
func (e *Engine) Watch(ctx context.Context, path string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		e.watchPoll(ctx, path)
		return
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory: editors replace files, which drops a watch on the
	// file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		e.watchPoll(ctx, path)
		return
	}

	ticker := time.NewTicker(fallbackReloadInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-watcher.Events:
			if filepath.Clean(ev.Name) == filepath.Clean(path) {
				e.reload(path)
			}
		case err := <-watcher.Errors:
			if err != nil {
				e.onError(fmt.Errorf("rules watch: %w", err))
			}
		case <-ticker.C:
			e.reload(path)
		}
	}
}

// watchPoll is the fallback polling loop when fsnotify is unavailable.
func (e *Engine) watchPoll(ctx context.Context, path string) {
	ticker := time.NewTicker(fallbackReloadInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.reload(path)
		}
	}
}

func (e *Engine) reload(path string) {
	loaded, err := LoadFile(path)
	if err != nil {
		e.onError(err)
		return
	}
	e.Replace(loaded)
}
