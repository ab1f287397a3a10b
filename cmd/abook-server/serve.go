package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/abook-go/internal/core/service"
	"github.com/yndnr/abook-go/internal/infra/buildinfo"
	"github.com/yndnr/abook-go/internal/infra/confloader"
	"github.com/yndnr/abook-go/internal/infra/shutdown"
	"github.com/yndnr/abook-go/internal/server/config"
	"github.com/yndnr/abook-go/internal/server/httpserver"
	"github.com/yndnr/abook-go/internal/server/httpserver/handler"
	"github.com/yndnr/abook-go/internal/storage"
	"github.com/yndnr/abook-go/internal/storage/redisstore"
	"github.com/yndnr/abook-go/internal/telemetry/metric"
)

// metricsRegistrar is implemented by stores that export their own metrics.
type metricsRegistrar interface {
	RegisterMetrics(prometheus.Registerer) error
}

func serve(ctx context.Context, configFile string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, slogLogger, err := initLogger(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	info := buildinfo.Get()
	log.Info("starting abook-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", configFile)
	logConfig(slogLogger, cfg)

	store, err := storage.Open(ctx, storageConfig(cfg), slogLogger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	if err := ensureAdmin(ctx, store, cfg.Bootstrap, slogLogger); err != nil {
		_ = store.Close()
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	var reg *metric.Registry
	if cfg.Metrics.Enabled {
		reg = metric.NewRegistry()
	}

	cache := service.NewCache(store,
		service.WithMetrics(reg),
		service.WithLogger(slogLogger),
	)
	gate := service.NewMaintenanceGate(cache,
		service.WithInterval(cfg.Cache.MaintenanceInterval),
		service.WithGateLogger(slogLogger),
	)

	if reg != nil {
		if err := reg.Register(metric.NewCollector(cache.MetricStats)); err != nil {
			_ = store.Close()
			return fmt.Errorf("register cache metrics: %w", err)
		}
		if r, ok := store.(metricsRegistrar); ok {
			if err := r.RegisterMetrics(reg.Prometheus()); err != nil {
				_ = store.Close()
				return fmt.Errorf("register storage metrics: %w", err)
			}
		}
	}

	allow, err := allowList(cfg.Security.AdminAllowList)
	if err != nil {
		_ = store.Close()
		return err
	}
	clientIP := httpserver.ClientIP(cfg.Security.TrustProxyHeaders)

	h := handler.New(handler.Config{
		Cache:        cache,
		Gate:         gate,
		Users:        store,
		Store:        store,
		Logger:       slogLogger,
		CookieName:   cfg.Security.CookieName,
		CookieSecure: cfg.Security.CookieSecure,
		ClientIP:     clientIP,
	})

	router := httpserver.NewRouter(&httpserver.RouterConfig{
		Handler:             h,
		Sessions:            cache,
		Logger:              slogLogger,
		Metrics:             reg,
		MetricsAuthRequired: cfg.Metrics.AuthRequired,
		AdminAllowList:      allow,
		CookieName:          cfg.Security.CookieName,
		TrustProxyHeaders:   cfg.Security.TrustProxyHeaders,
		LoginRateLimit:      cfg.Security.LoginRateLimit,
		LoginBurst:          cfg.Security.LoginBurst,
		MaxBodyBytes:        cfg.Server.HTTP.MaxBodyBytes,
	})

	httpServer := httpserver.New(httpserver.Options{
		Addr:         cfg.Server.HTTP.Addr,
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		TLSCertFile:  cfg.Server.HTTP.TLSCertFile,
		TLSKeyFile:   cfg.Server.HTTP.TLSKeyFile,
	}, router)

	// Bind before announcing so a busy port fails startup.
	ln, err := net.Listen("tcp", cfg.Server.HTTP.Addr)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("listen %s: %w", cfg.Server.HTTP.Addr, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownHandler := shutdown.NewHandler(cfg.Server.ShutdownTimeout,
		shutdown.WithLogger(slogLogger))

	// Hooks run in reverse order: HTTP, final flush, store, watcher.
	if configFile != "" {
		watcher, err := startReloadWatcher(configFile, cfg, gate, slogLogger)
		if err != nil {
			log.Warn("config hot reload disabled", "error", err)
		} else {
			shutdownHandler.OnShutdown("watcher", func(context.Context) error {
				return watcher.Stop()
			})
		}
	}

	shutdownHandler.OnShutdown("store", func(context.Context) error {
		log.Info("closing storage")
		return store.Close()
	})

	if cfg.Cache.FlushOnShutdown {
		shutdownHandler.OnShutdown("flush", func(ctx context.Context) error {
			res, err := cache.FlushDirtyAddressBooks(ctx)
			if err != nil {
				return err
			}
			log.Info("final flush done", "written", res.Written, "evicted", res.Evicted)
			return nil
		})
	}

	shutdownHandler.OnShutdown("http", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return httpServer.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening",
			"addr", ln.Addr().String(),
			"tls", cfg.Server.HTTP.TLSEnabled())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	log.Info("server started, press Ctrl+C to stop")
	if err := shutdownHandler.WaitContext(runCtx); err != nil {
		log.Error("shutdown error", "error", err)
		return err
	}

	log.Info("server stopped gracefully")
	return nil
}

// storageConfig maps the storage section onto the storage package.
func storageConfig(cfg *config.ServerConfig) storage.Config {
	return storage.Config{
		Driver:  cfg.Storage.Driver,
		DSN:     cfg.Storage.DSN,
		DataDir: cfg.Storage.DataDir,
		Redis: redisstore.Options{
			Addr:      cfg.Storage.Redis.Addr,
			Password:  cfg.Storage.Redis.Password,
			DB:        cfg.Storage.Redis.DB,
			KeyPrefix: cfg.Storage.Redis.KeyPrefix,
		},
	}
}

func logConfig(log *slog.Logger, cfg *config.ServerConfig) {
	s := config.Sanitize(cfg)
	log.Info("configuration loaded",
		"http_addr", s.Server.HTTP.Addr,
		"tls", s.Server.HTTP.TLSEnabled(),
		"storage_driver", s.Storage.Driver,
		"storage_dsn", s.Storage.DSN,
		"maintenance_interval", s.Cache.MaintenanceInterval,
		"flush_on_shutdown", s.Cache.FlushOnShutdown,
		"admin_allow_list", s.Security.AdminAllowList,
		"metrics", s.Metrics.Enabled,
	)
}

// startReloadWatcher applies changes to the config file while running.
func startReloadWatcher(path string, running *config.ServerConfig, gate *service.MaintenanceGate, log *slog.Logger) (*confloader.Watcher, error) {
	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := watcher.Watch(path); err != nil {
		_ = watcher.Stop()
		return nil, err
	}

	watcher.OnChange(func(changed string) {
		reloaded, err := loadConfig(changed)
		if err != nil {
			log.Error("config reload rejected", "path", changed, "error", err)
			return
		}
		applyReload(running, reloaded, gate, log)
	})
	watcher.StartAsync()
	return watcher, nil
}
