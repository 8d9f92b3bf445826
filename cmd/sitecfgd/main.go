package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/confsys/sitecfg/pkg/api"
	"github.com/confsys/sitecfg/pkg/audit"
	"github.com/confsys/sitecfg/pkg/cache"
	"github.com/confsys/sitecfg/pkg/config"
	"github.com/confsys/sitecfg/pkg/middleware"
	"github.com/confsys/sitecfg/pkg/observability"
	"github.com/confsys/sitecfg/pkg/resolver"
	"github.com/confsys/sitecfg/pkg/storage"
	"github.com/confsys/sitecfg/pkg/storage/postgres"
	"github.com/confsys/sitecfg/pkg/storage/sqlite"
	"github.com/confsys/sitecfg/pkg/tracker"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)

	var registry *prometheus.Registry
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		registry = prometheus.NewRegistry()
		metrics = observability.NewMetrics(registry)
	}

	store, pgDB, err := buildStore(cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()
	log.Infof("Storage initialized (type=%s)", cfg.Storage.Type)

	recorder, err := buildRecorder(cfg, pgDB)
	if err != nil {
		log.Fatalf("Failed to initialize audit recorder: %v", err)
	}
	log.Infof("Audit recorder initialized (backend=%s)", cfg.Audit.Backend)

	trk := tracker.New(tracker.Options{
		Recorder:    recorder,
		Logger:      logger,
		Metrics:     metrics,
		WarmOnWrite: cfg.Storage.CacheWarmOnWrite,
	})

	// The cache checks versions against the tracker, so it is built
	// second and handed back before the tracker starts consuming writes.
	var configCache cache.Cache
	if cfg.Storage.CacheEnabled {
		configCache, err = buildCache(cfg.Storage, trk)
		if err != nil {
			log.Fatalf("Failed to initialize cache: %v", err)
		}
		defer configCache.Close()
		trk.UseCache(configCache)
	}
	trk.Attach(store)

	svc, err := resolver.New(resolver.Options{
		Store:    store,
		Cache:    configCache,
		Tracker:  trk,
		Recorder: recorder,
		Logger:   logger,
		Metrics:  metrics,
		CacheTTL: cfg.Storage.CacheTTL,
	})
	if err != nil {
		log.Fatalf("Failed to initialize resolver: %v", err)
	}

	if cfg.Observability.WarmOnStart && configCache != nil {
		if err := svc.WarmCache(context.Background()); err != nil {
			log.Warnf("Initial cache warm failed: %v", err)
		} else {
			log.Info("Cache warmed")
		}
	}

	// Optional periodic re-warm, for deployments where reads are rare
	// enough that entries would otherwise expire between them.
	var scheduler *cron.Cron
	if cfg.Observability.WarmSchedule != "" && configCache != nil {
		scheduler = cron.New()
		if _, err := scheduler.AddFunc(cfg.Observability.WarmSchedule, func() {
			if err := svc.WarmCache(context.Background()); err != nil {
				log.Warnf("Scheduled cache warm failed: %v", err)
			}
		}); err != nil {
			log.Fatalf("Failed to schedule cache warm: %v", err)
		}
		scheduler.Start()
		log.Infof("Cache warm schedule: %s", cfg.Observability.WarmSchedule)
	}

	var rateLimit *middleware.RateLimitConfig
	if cfg.Server.RateLimitEnabled {
		rateLimit = &middleware.RateLimitConfig{
			RequestsPerWindow: cfg.Server.RateLimitPerMinute,
			WindowDuration:    time.Minute,
			BurstSize:         cfg.Server.RateLimitBurst,
		}
	}

	server := api.NewServer(api.Options{
		Resolver:        svc,
		Tracker:         trk,
		Logger:          logger,
		MetricsRegistry: registry,
		RateLimit:       rateLimit,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Infof("Starting sitecfgd on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for termination signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Info("Shutting down gracefully...")

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("Server shutdown failed: %v", err)
	}

	log.Info("sitecfgd stopped")
}

// buildStore constructs the persisted store. The *sql.DB is non-nil only
// for postgres, where the audit recorder can share the connection pool.
func buildStore(cfg storage.Config) (storage.Store, *sql.DB, error) {
	switch cfg.Type {
	case "postgres":
		store, err := postgres.New(cfg)
		if err != nil {
			return nil, nil, err
		}
		return store, store.DB(), nil
	case "sqlite":
		store, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	default:
		return storage.NewMemoryStore(), nil, nil
	}
}

func buildRecorder(cfg *config.Config, pgDB *sql.DB) (audit.Recorder, error) {
	switch cfg.Audit.Backend {
	case "db":
		return audit.NewDBRecorder(pgDB)
	case "file":
		return audit.NewFileRecorder(cfg.Audit.FilePath)
	default:
		return audit.NewMemoryRecorder(), nil
	}
}

func buildCache(cfg storage.Config, versions cache.VersionSource) (cache.Cache, error) {
	if cfg.RedisURL != "" {
		return cache.NewRedisCache(cfg, versions)
	}
	return cache.NewLRUCache(cfg.L1CacheSize, versions)
}
