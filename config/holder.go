// Package config provides configuration loading and hot reload.
package config

import (
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Holder provides thread-safe access to configuration with hot reload support.
// It also watches the schema definition directory when schemas.watch is set.
type Holder struct {
	mu        sync.RWMutex
	config    *Config
	path      string
	logger    zerolog.Logger
	watcher   *fsnotify.Watcher
	onChange  []func(*Config)
	onSchemas []func()
	schemaDir string
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// NewHolder creates a new config holder and loads the initial configuration.
func NewHolder(path string, logger zerolog.Logger) (*Holder, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}

	h := &Holder{
		config: cfg,
		path:   absPath,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	return h, nil
}

// Get returns the current configuration (thread-safe).
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config
}

// Reload reloads the configuration from disk.
// Returns error if loading fails (keeps old config).
func (h *Holder) Reload() error {
	h.logger.Info().Str("path", h.path).Msg("reloading configuration")

	newCfg, err := Load(h.path)
	if err != nil {
		h.logger.Error().Err(err).Msg("config reload failed, keeping old config")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	oldCfg := h.config
	h.config = newCfg
	listeners := append([]func(*Config){}, h.onChange...)
	h.mu.Unlock()

	h.logChanges(oldCfg, newCfg)
	if oldCfg.Schemas.Dir != newCfg.Schemas.Dir {
		h.retarget(newCfg.Schemas.Dir)
	}

	// Notify listeners
	for _, fn := range listeners {
		fn(newCfg)
	}

	h.logger.Info().Msg("configuration reloaded successfully")
	return nil
}

// OnChange registers a callback to be called when config changes.
func (h *Holder) OnChange(fn func(*Config)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = append(h.onChange, fn)
}

// OnSchemasChange registers a callback to be called when a schema
// definition file changes. Requires WatchFile with schemas.watch enabled.
func (h *Holder) OnSchemasChange(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onSchemas = append(h.onSchemas, fn)
}

// WatchFile starts watching the config file for changes.
// Changes trigger automatic reload. When schemas.watch is set, the schema
// directory and its subdirectories are watched as well.
func (h *Holder) WatchFile() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// Watch the directory (more reliable for editors that do atomic saves)
	dir := filepath.Dir(h.path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}

	var schemaDir string
	if cfg := h.Get(); cfg.Schemas.Watch {
		schemaDir, err = filepath.Abs(cfg.Schemas.Dir)
		if err != nil {
			watcher.Close()
			return fmt.Errorf("absolute path: %w", err)
		}
		if err := addTree(watcher, schemaDir); err != nil {
			watcher.Close()
			return fmt.Errorf("watch schemas: %w", err)
		}
		h.logger.Info().Str("dir", schemaDir).Msg("watching schema definitions for changes")
	}

	// Published together: retarget and Stop run on other goroutines.
	h.mu.Lock()
	h.watcher = watcher
	h.schemaDir = schemaDir
	h.mu.Unlock()

	go h.watchLoop(watcher)

	h.logger.Info().Str("path", h.path).Msg("watching config file for changes")
	return nil
}

// retarget moves the schema watch to dir. It does nothing unless schema
// definitions are being watched.
func (h *Holder) retarget(dir string) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		h.logger.Error().Err(err).Str("dir", dir).Msg("schema watch not moved")
		return
	}

	h.mu.Lock()
	old, watcher := h.schemaDir, h.watcher
	if old == "" || old == abs || watcher == nil {
		h.mu.Unlock()
		return
	}
	h.schemaDir = abs
	h.mu.Unlock()

	configDir := filepath.Dir(h.path)
	for _, path := range watcher.WatchList() {
		if path != configDir && within(old, path) {
			_ = watcher.Remove(path)
		}
	}
	if err := addTree(watcher, abs); err != nil {
		h.logger.Error().Err(err).Str("dir", abs).Msg("watch schema directory")
		return
	}
	h.logger.Info().Str("old", old).Str("new", abs).Msg("schema watch moved")
}

// watchedSchemaDir returns the watched schema directory, or "" when
// definitions are not watched.
func (h *Holder) watchedSchemaDir() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.schemaDir
}

// addTree watches dir and every directory below it.
func addTree(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.Add(path)
		}
		return nil
	})
}

// WatchSignals starts listening for SIGHUP to trigger reload.
func (h *Holder) WatchSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	go func() {
		for {
			select {
			case <-sigCh:
				h.logger.Info().Msg("received SIGHUP, reloading config")
				if err := h.Reload(); err != nil {
					h.logger.Error().Err(err).Msg("SIGHUP reload failed")
				}
			case <-h.stopCh:
				signal.Stop(sigCh)
				return
			}
		}
	}()

	h.logger.Info().Msg("listening for SIGHUP to reload config")
}

// Stop stops watching for file changes and signals.
func (h *Holder) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		h.mu.RLock()
		watcher := h.watcher
		h.mu.RUnlock()
		if watcher != nil {
			watcher.Close()
		}
	})
}

func (h *Holder) watchLoop(watcher *fsnotify.Watcher) {
	filename := filepath.Base(h.path)
	configDir := filepath.Dir(h.path)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			// React to write or create (atomic save = create)
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			schemaDir := h.watchedSchemaDir()
			switch {
			case filepath.Dir(event.Name) == configDir && filepath.Base(event.Name) == filename:
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				h.logger.Debug().
					Str("event", event.Op.String()).
					Str("file", event.Name).
					Msg("config file changed")

				if err := h.Reload(); err != nil {
					h.logger.Error().Err(err).Msg("file watch reload failed")
				}

			case schemaDir != "" && isDefinition(event.Name) && within(schemaDir, event.Name):
				h.logger.Debug().
					Str("event", event.Op.String()).
					Str("file", event.Name).
					Msg("schema definition changed")
				h.notifySchemas()

			case schemaDir != "" && event.Op&fsnotify.Create != 0 && within(schemaDir, event.Name):
				// fsnotify is not recursive
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addTree(watcher, event.Name); err != nil {
						h.logger.Error().Err(err).Str("dir", event.Name).Msg("watch new schema directory")
					}
					h.notifySchemas()
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Msg("file watcher error")

		case <-h.stopCh:
			return
		}
	}
}

func (h *Holder) notifySchemas() {
	h.mu.RLock()
	listeners := append([]func(){}, h.onSchemas...)
	h.mu.RUnlock()

	for _, fn := range listeners {
		fn()
	}
}

func isDefinition(name string) bool {
	ext := filepath.Ext(name)
	return ext == ".yaml" || ext == ".yml"
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func (h *Holder) logChanges(old, new *Config) {
	if old.Logging.Level != new.Logging.Level {
		h.logger.Info().
			Str("old", old.Logging.Level).
			Str("new", new.Logging.Level).
			Msg("log level changed")
	}

	if old.Limits != new.Limits {
		h.logger.Info().
			Int("old_max_index", old.Limits.MaxIndex).
			Int("new_max_index", new.Limits.MaxIndex).
			Int("old_max_depth", old.Limits.MaxDepth).
			Int("new_max_depth", new.Limits.MaxDepth).
			Msg("limits changed")
	}

	if old.Schemas.Dir != new.Schemas.Dir {
		h.logger.Info().
			Str("old", old.Schemas.Dir).
			Str("new", new.Schemas.Dir).
			Msg("schema directory changed")
	}

	if old.Schemas.CollectErrors != new.Schemas.CollectErrors {
		h.logger.Info().
			Bool("new", new.Schemas.CollectErrors).
			Msg("error collection changed")
	}
}

// ReloadableFields returns which fields can be changed without restart.
func ReloadableFields() []string {
	return []string{
		"schemas.dir",
		"schemas.collect_errors",
		"limits.max_index",
		"limits.max_depth",
		"logging.level",
	}
}

// NonReloadableFields returns which fields require a restart.
func NonReloadableFields() []string {
	return []string{
		"schemas.watch",
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"logging.format",
		"metrics.enabled",
		"metrics.path",
	}
}
