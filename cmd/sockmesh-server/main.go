// Package main provides the entry point for sockmesh-server.
//
// sockmesh-server is the session endpoint for SockMesh: it accepts
// long-lived socket connections, issues and resumes session tokens,
// and persists session state to the configured store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/yndnr/sockmesh-go/internal/core/engine"
	"github.com/yndnr/sockmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/sockmesh-go/internal/infra/confloader"
	"github.com/yndnr/sockmesh-go/internal/infra/shutdown"
	"github.com/yndnr/sockmesh-go/internal/server/config"
	"github.com/yndnr/sockmesh-go/internal/server/sockserver"
	"github.com/yndnr/sockmesh-go/internal/storage"
	"github.com/yndnr/sockmesh-go/internal/storage/badgerstore"
	"github.com/yndnr/sockmesh-go/internal/storage/memory"
	"github.com/yndnr/sockmesh-go/internal/storage/sqlstore"
	"github.com/yndnr/sockmesh-go/internal/telemetry/logger"
	"github.com/yndnr/sockmesh-go/internal/telemetry/metric"
	"github.com/yndnr/sockmesh-go/pkg/lockmap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile  = flag.String("config", "", "Path to configuration file")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("sockmesh-server %s\n", buildinfo.String())
		return nil
	}

	// Load configuration
	loader, cfg, err := loadConfig(*configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Initialize logger
	log, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	log.Info("starting sockmesh-server",
		"version", buildinfo.Version,
		"commit", buildinfo.Commit,
		"config", *configFile,
		"storage_driver", cfg.Storage.Driver,
		"dsn", config.Sanitize(cfg).Storage.DSN)

	ctx := context.Background()
	metrics := metric.NewRegistry()

	// Initialize the session store
	store, err := initStorage(ctx, cfg, metrics)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	// Socket server with one engine per connection
	srv := sockserver.New(sockServerConfig(cfg), store, log, metrics)
	if err := srv.Start(ctx); err != nil {
		_ = store.Close()
		return fmt.Errorf("start socket server: %w", err)
	}

	// Setup graceful shutdown
	shutdownHandler := shutdown.NewHandler(30 * time.Second)

	// Register shutdown hooks (reverse order of startup)
	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down session store")
		return store.Close()
	})

	shutdownHandler.OnShutdown(func(ctx context.Context) error {
		log.Info("shutting down socket server")
		return srv.Shutdown(ctx)
	})

	// Optional Prometheus endpoint
	if cfg.Metrics.Enabled {
		metricsSrv := startMetricsServer(cfg.Metrics.Addr, metrics, log)
		shutdownHandler.OnShutdown(func(ctx context.Context) error {
			log.Info("shutting down metrics server")
			return metricsSrv.Shutdown(ctx)
		})
	}

	// Watch the config file for log level changes
	if *configFile != "" {
		watcher, err := startConfigWatcher(*configFile, loader, log)
		if err != nil {
			log.Warn("config watcher unavailable", "error", err)
		} else {
			shutdownHandler.OnShutdown(func(ctx context.Context) error {
				return watcher.Stop()
			})
		}
	}

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// loadConfig loads configuration from file and environment.
func loadConfig(configFile string) (*confloader.Loader, *config.ServerConfig, error) {
	// Start with defaults
	cfg := config.Default()

	opts := []confloader.Option{}
	if configFile != "" {
		opts = append(opts, confloader.WithConfigFile(configFile))
	}

	loader := confloader.NewLoader(opts...)

	if err := loader.Load(cfg); err != nil {
		return nil, nil, err
	}

	if err := config.Verify(cfg); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return loader, cfg, nil
}

// initLogger initializes the structured logger and installs it as the
// process default.
func initLogger(cfg *config.ServerConfig) (logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return nil, err
	}

	logger.SetDefault(log)
	return log, nil
}

// initStorage constructs the session store for the configured driver.
func initStorage(ctx context.Context, cfg *config.ServerConfig, metrics *metric.Registry) (storage.Store, error) {
	switch cfg.Storage.Driver {
	case "mysql":
		return sqlstore.Open(ctx, sqlstore.Config{
			DSN:             cfg.Storage.DSN,
			MaxOpenConns:    cfg.Storage.MaxOpenConns,
			MaxIdleConns:    cfg.Storage.MaxIdleConns,
			ConnMaxIdleTime: cfg.Storage.ConnMaxIdleTime,
		})
	case "badger":
		store, err := badgerstore.Open(badgerstore.Config{
			Dir:    cfg.Storage.DataDir,
			Logger: slog.Default(),
		})
		if err != nil {
			return nil, err
		}
		return store.RegisterMetrics(metrics.Prometheus()), nil
	case "memory":
		return memory.New(), nil
	default:
		return nil, errors.New("unknown storage driver: " + cfg.Storage.Driver)
	}
}

// sockServerConfig maps the file configuration onto the socket server.
func sockServerConfig(cfg *config.ServerConfig) *sockserver.Config {
	engineCfg := engine.Config{
		TTL:            cfg.Session.TTL,
		SaveBufferSize: cfg.Session.SaveBufferSize,
		Locks:          lockmap.NewWithShards(cfg.Session.LockShards),
	}
	if cfg.Storage.Driver == "mysql" {
		// Surfaces the expected table shape in save-failure logs.
		engineCfg.SaveFailureHint = sqlstore.SchemaDDL
	}

	socketPath := ""
	if cfg.Server.Local.Enabled {
		socketPath = cfg.Server.Local.Path
	}

	return &sockserver.Config{
		Addr:         cfg.Server.Socket.Addr,
		SocketPath:   socketPath,
		RateLimit:    cfg.Server.Socket.RateLimit,
		RateBurst:    cfg.Server.Socket.RateBurst,
		MaxLineBytes: cfg.Server.Socket.MaxLineBytes,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  cfg.Server.Socket.IdleTimeout,
		Engine:       engineCfg,
	}
}

// startMetricsServer serves the Prometheus endpoint in the background.
func startMetricsServer(addr string, metrics *metric.Registry, log logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", "error", err)
		}
	}()

	return srv
}

// startConfigWatcher reloads the config file on change and applies the
// log level without restarting.
func startConfigWatcher(configFile string, loader *confloader.Loader, log logger.Logger) (*confloader.Watcher, error) {
	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := watcher.Watch(configFile); err != nil {
		return nil, err
	}

	watcher.OnChange(func(path string) {
		cfg := config.Default()
		if err := loader.Reload(cfg); err != nil {
			log.Error("config reload failed", "path", path, "error", err)
			return
		}
		if err := config.Verify(cfg); err != nil {
			log.Error("reloaded config invalid", "path", path, "error", err)
			return
		}
		if cfg.Log.Level != logger.GetLevel() {
			logger.SetLevel(cfg.Log.Level)
			log.Info("log level changed", "level", cfg.Log.Level)
		}
	})

	watcher.StartAsync()
	return watcher, nil
}
