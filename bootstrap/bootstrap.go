// Package bootstrap wires configuration, schemas and the HTTP server into
// a runnable application.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	apihttp "github.com/artpar/querywire/adapters/http"
	"github.com/artpar/querywire/adapters/metrics"
	"github.com/artpar/querywire/config"
	"github.com/artpar/querywire/core/registry"
	"github.com/artpar/querywire/core/schema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// App holds all application components.
type App struct {
	Logger     zerolog.Logger
	Registry   *registry.Registry
	Metrics    *metrics.Collector
	HTTPServer *http.Server

	holder     *config.Holder
	cfg        *config.Config
	schemasDir string

	mu       sync.RWMutex
	reloadMu sync.Mutex
}

// Options configures application startup.
type Options struct {
	// ConfigPath is the YAML config file. When it does not exist the
	// configuration comes from QUERYWIRE_* variables alone and cannot be
	// hot reloaded.
	ConfigPath string

	// SchemasDir overrides schemas.dir from the configuration.
	SchemasDir string

	// LogOutput receives log lines (default: stdout).
	LogOutput io.Writer
}

// New creates the application and loads every schema definition.
func New(opts Options) (*App, error) {
	cfg, err := config.LoadWithFallback(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	out := opts.LogOutput
	if out == nil {
		out = os.Stdout
	}
	logger, err := NewLogger(cfg.Logging, out)
	if err != nil {
		return nil, err
	}

	a := &App{
		Logger:     logger,
		Registry:   registry.New(),
		cfg:        cfg,
		schemasDir: opts.SchemasDir,
	}

	if opts.ConfigPath != "" {
		if _, err := os.Stat(opts.ConfigPath); err == nil {
			holder, err := config.NewHolder(opts.ConfigPath, logger)
			if err != nil {
				return nil, err
			}
			a.holder = holder
			a.cfg = holder.Get()
			holder.OnChange(a.applyConfig)
			holder.OnSchemasChange(func() {
				if err := a.ReloadSchemas(); err != nil {
					a.Logger.Error().Err(err).Msg("schema reload after file change failed")
				}
			})
		}
	}

	// Metrics live in their own registry so that an App can be built more
	// than once per process.
	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.Metrics = metrics.NewWithRegistry(reg)
		metricsHandler = promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
	}

	if err := a.ReloadSchemas(); err != nil {
		return nil, err
	}

	a.initHTTPServer(metricsHandler)
	return a, nil
}

func (a *App) initHTTPServer(metricsHandler http.Handler) {
	cfg := a.Config()

	handler := apihttp.NewHandler(a.Registry, a.Logger, apihttp.HandlerConfig{
		Metrics:      a.Metrics,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	})
	router := apihttp.NewRouter(handler, a.Logger, apihttp.RouterConfig{
		Metrics:        a.Metrics,
		MetricsHandler: metricsHandler,
		MetricsPath:    cfg.Metrics.Path,
		Timeout:        cfg.Server.WriteTimeout,
	})

	a.HTTPServer = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}

// Config returns the configuration currently in effect.
func (a *App) Config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg
}

// SchemasDir returns the directory schemas are loaded from.
func (a *App) SchemasDir() string {
	if a.schemasDir != "" {
		return a.schemasDir
	}
	return a.Config().Schemas.Dir
}

// SchemaOptions returns the options every loaded schema is built with.
func (a *App) SchemaOptions() []schema.SchemaOption {
	return SchemaOptions(a.Config(), a.Logger, a.Metrics)
}

// SchemaOptions derives schema options from configuration. A nil collector
// leaves schemas unobserved.
func SchemaOptions(cfg *config.Config, logger zerolog.Logger, m *metrics.Collector) []schema.SchemaOption {
	opts := []schema.SchemaOption{
		schema.WithLogger(logger),
		schema.WithLimits(cfg.Limits.Schema()),
	}
	if cfg.Schemas.CollectErrors {
		opts = append(opts, schema.WithCollectErrors())
	}
	if m != nil {
		opts = append(opts, schema.WithObserver(m))
	}
	return opts
}

// ReloadSchemas parses the schema directory and swaps the registered set.
// On failure the previous set stays in place.
func (a *App) ReloadSchemas() error {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()

	dir := a.SchemasDir()
	n, err := a.Registry.LoadDir(dir, a.SchemaOptions()...)
	if a.Metrics != nil {
		a.Metrics.ObserveReload(n, err)
	}
	if err != nil {
		a.Logger.Error().Err(err).Str("dir", dir).Msg("schema load failed")
		return err
	}

	a.Logger.Info().Str("dir", dir).Int("actions", n).Msg("schemas loaded")
	return nil
}

// applyConfig adopts a reloaded configuration.
func (a *App) applyConfig(cfg *config.Config) {
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()

	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
		zerolog.SetGlobalLevel(level)
	}

	if err := a.ReloadSchemas(); err != nil {
		a.Logger.Error().Err(err).Msg("schema reload after config change failed")
	}
}

// Run starts the HTTP server and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", a.HTTPServer.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return a.Serve(ctx, ln)
}

// Serve serves HTTP on ln until ctx is done, then shuts down gracefully.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	if a.holder != nil {
		if err := a.holder.WatchFile(); err != nil {
			a.Logger.Warn().Err(err).Msg("config file watch disabled")
		}
		a.holder.WatchSignals()
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", ln.Addr().String()).
			Msg("starting http server")
		if err := a.HTTPServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.Shutdown()
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		a.Logger.Info().Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.Config().Server.ShutdownTimeout)
	defer cancel()

	if a.holder != nil {
		a.holder.Stop()
	}

	var err error
	if a.HTTPServer != nil {
		if err = a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return err
}
