package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"steadystream/internal/auth"
	"steadystream/internal/config"
	"steadystream/internal/database"
	"steadystream/internal/feeds"
	"steadystream/internal/handlers"
	"steadystream/internal/logging"
	"steadystream/internal/metrics"
	"steadystream/internal/realtime"
	"steadystream/internal/services"
	"steadystream/internal/store"
	"steadystream/internal/throws"
	"steadystream/internal/worker"
	"steadystream/internal/workers"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}

	// Connect to database
	db, err := database.Connect(cfg.Database, log.WithField("component", "database"))
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer database.Close(db)

	// Run migrations
	if err := database.Migrate(db, log.WithField("component", "migrate")); err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}

	rdb := connectRedis(cfg, log)
	if rdb != nil {
		defer rdb.Close()
	}

	m := metrics.New()
	st := store.New(db)
	broker := realtime.NewBroker()

	publisher, listener := realtimeBackend(cfg, rdb, broker, log)

	var cache services.ConnectionsCache
	if rdb != nil {
		cache = services.NewRedisConnectionsCache(rdb, cfg.ConnectionsCacheTTL, log)
	} else {
		cache = services.NewMemoryConnectionsCache(cfg.ConnectionsCacheTTL)
	}

	analytics := services.NewAnalyticsService(db, cfg.AnalyticsEnabled, log)
	invites := services.NewInviteService(db, cfg.InvitesEnabled, log)
	profiles := services.NewProfileService(st, invites, analytics, log)

	feedService := feeds.NewFeedService(st, log.WithField("component", "feeds"), m, analytics)
	feedService.SlowThreshold = cfg.SlowFeedThreshold

	// Initialize and start background workers
	maintenance := workers.NewMaintenanceWorker(invites, analytics, services.DefaultEventMaxAge, log.WithField("component", "maintenance"))
	workerService := worker.NewWorkerService(listener, maintenance, log.WithField("component", "worker"))
	if err := workerService.Start(); err != nil {
		log.WithError(err).Fatal("Failed to start background workers")
	}

	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handlers.NewRouter(handlers.Dependencies{
		Verifier:   auth.NewJWTVerifier(cfg.JWTSecret, log),
		Feeds:      feedService,
		Throws:     throws.NewManager(st, publisher, analytics, m, log.WithField("component", "throws")),
		Follows:    services.NewUserFollowsService(st, cache, analytics, m, log),
		Posts:      services.NewPostService(st, analytics, log),
		Profiles:   profiles,
		Invites:    invites,
		Analytics:  analytics,
		Subscriber: broker,
		Workers:    workerService,
		Metrics:    m,
		DocsRoot:   ".",
		Log:        log.WithField("component", "http"),
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	// Wait for a shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("Received shutdown signal, gracefully shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}

	workerService.Stop()
	log.Info("Shutdown complete")
}

// connectRedis returns nil when Redis is unreachable, unless the realtime
// backend depends on it
func connectRedis(cfg *config.Config, log *logrus.Logger) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		if cfg.RealtimeBackend == config.RealtimeRedis {
			log.WithError(err).Fatal("Failed to connect to Redis")
		}
		log.WithError(err).Warn("Redis unavailable, using in-memory connections cache")
		rdb.Close()
		return nil
	}

	log.WithField("addr", cfg.RedisURL).Info("Connected to Redis")
	return rdb
}

// realtimeBackend picks where throw events are published and which listener,
// if any, feeds them into the local broker
func realtimeBackend(cfg *config.Config, rdb *redis.Client, broker *realtime.Broker, log *logrus.Logger) (realtime.Publisher, realtime.Listener) {
	switch cfg.RealtimeBackend {
	case config.RealtimeRedis:
		bus := realtime.NewRedisBus(rdb, broker, log.WithField("component", "realtime"))
		return bus, bus
	case config.RealtimePostgres:
		// the database trigger publishes, so the manager does not
		return realtime.NopPublisher{}, realtime.NewPGListener(cfg.Database.DSN(), broker, log.WithField("component", "realtime"))
	case config.RealtimeMemory:
		return broker, nil
	default:
		log.WithField("backend", cfg.RealtimeBackend).Warn("Unknown realtime backend, using memory")
		return broker, nil
	}
}
