package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// watchDebounce coalesces the write bursts editors produce for one save
// into a single reload.
const watchDebounce = 200 * time.Millisecond

// Watch hot-reloads the config file while the daemon runs. Run in a
// goroutine; it blocks until ctx is cancelled. Reloads update the in-memory
// config and run RegisterOnReload callbacks, which is how the gateway picks
// up a rotated auth token and the engine new sync cadences. The gateway
// port and platform endpoint are bound at startup and need a restart.
func Watch(ctx context.Context) {
	path := Path()
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		slog.Warn("config watch initial read failed", "path", path, "error", err)
		return
	}

	var debounce *time.Timer
	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		if filepath.Clean(e.Name) != filepath.Clean(path) {
			return
		}
		if debounce != nil {
			debounce.Stop()
		}
		debounce = time.AfterFunc(watchDebounce, func() { reload(path) })
	})
	v.WatchConfig()

	<-ctx.Done()
}

func reload(path string) {
	old := Get()
	cfg, err := Load(path)
	if err != nil {
		slog.Warn("config hot-reload load failed", "path", path, "error", err)
		return
	}

	sections := changedSections(old, cfg)
	Set(cfg)
	notifyReload(cfg)
	slog.Info("config hot-reloaded", "path", path, "changed", sections)
}

// changedSections names the top-level config sections that differ, for the
// reload log line.
func changedSections(old, fresh *Config) []string {
	if old == nil {
		return []string{"all"}
	}
	var out []string
	if old.Gateway != fresh.Gateway {
		out = append(out, "gateway")
	}
	if old.Platform != fresh.Platform {
		out = append(out, "platform")
	}
	if old.Sync != fresh.Sync {
		out = append(out, "sync")
	}
	if old.Janitor != fresh.Janitor {
		out = append(out, "janitor")
	}
	return out
}
