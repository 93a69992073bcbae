package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appsync "github.com/storepulse/backend/internal/application/sync"
	syncdomain "github.com/storepulse/backend/internal/domain/sync"
	"github.com/storepulse/backend/internal/infrastructure/config"
	"github.com/storepulse/backend/internal/infrastructure/ecommerce"
	"github.com/storepulse/backend/internal/infrastructure/logger"
	"github.com/storepulse/backend/internal/infrastructure/persistence"
	"github.com/storepulse/backend/internal/infrastructure/queue"
	"github.com/storepulse/backend/internal/infrastructure/ratelimit"
	"github.com/storepulse/backend/internal/infrastructure/scheduler"
	"github.com/storepulse/backend/internal/interfaces/http/handler"
	"github.com/storepulse/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting StorePulse Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Database connection with a zap-backed GORM logger
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), 200*time.Millisecond)
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Repositories
	profileRepo := persistence.NewGormActivityProfileRepository(db.DB)
	sessionRepo := persistence.NewGormSyncSessionRepository(db.DB)

	// Platform rate limiter: Redis when available, otherwise the
	// database-backed store. Both enforce the same hourly windows.
	limits := ratelimit.Limits{
		Default:     cfg.RateLimit.DefaultHourlyLimit,
		PerPlatform: platformLimits(cfg.RateLimit.PlatformLimits),
	}
	var limiter syncdomain.RateLimiter
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := redisClient.Close(); err != nil {
				log.Error("Error closing redis client", zap.Error(err))
			}
		}()
		limiter = ratelimit.NewRedisRateLimiter(redisClient, limits, "")
		log.Info("Rate limiter using redis store", zap.String("addr", cfg.Redis.Addr()))
	} else {
		limiter = ratelimit.NewGormRateLimiter(db.DB, limits)
		log.Info("Rate limiter using database store")
	}

	// Application services
	schedulerService := appsync.NewSchedulerService(profileRepo, appsync.SchedulerOptions{
		BusinessHoursStart: cfg.Scheduler.BusinessHoursStart,
		BusinessHoursEnd:   cfg.Scheduler.BusinessHoursEnd,
		DefaultInterval:    cfg.Scheduler.DefaultInterval,
		DefaultPriority:    cfg.Scheduler.DefaultPriority,
	}, log)
	sessionService := appsync.NewSessionService(sessionRepo, log)

	// Connector gateways for the platforms configured
	gateway := ecommerce.NewGateway()
	registerConnector(gateway, syncdomain.PlatformShopify, cfg.Connectors.Shopify, log)
	registerConnector(gateway, syncdomain.PlatformMeta, cfg.Connectors.Meta, log)

	worker := appsync.NewSyncWorker(sessionService, schedulerService, limiter, gateway, log)

	// Job queue with the sync worker registered for every sync job type
	jobs, err := queue.NewJobQueue(queue.Config{
		MaxParallelism: cfg.Queue.MaxParallelism,
		Capacity:       cfg.Queue.Capacity,
		DrainTimeout:   cfg.Queue.DrainTimeout,
	}, log)
	if err != nil {
		log.Fatal("Failed to create job queue", zap.Error(err))
	}
	for _, t := range []queue.JobType{
		queue.JobSyncInitial,
		queue.JobSyncSmart,
		queue.JobSyncImmediate,
		queue.JobSyncScheduled,
		queue.JobSyncManual,
	} {
		jobs.Register(t, worker.HandleSyncJob)
	}
	if err := jobs.Start(context.Background()); err != nil {
		log.Fatal("Failed to start job queue", zap.Error(err))
	}
	log.Info("Job queue started",
		zap.Int("max_parallelism", cfg.Queue.MaxParallelism),
		zap.Int("capacity", cfg.Queue.Capacity),
	)

	// Dispatcher that turns stored next-sync times into scheduled jobs
	dispatcher := scheduler.NewDispatcher(scheduler.DefaultDispatcherConfig(), profileRepo, jobs, log)
	if err := dispatcher.Start(context.Background()); err != nil {
		log.Fatal("Failed to start sync dispatcher", zap.Error(err))
	}

	// HTTP layer
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := router.NewEngine(log, cfg.HTTP.MaxBodyBytes)

	r := router.NewRouter(engine, handler.NewHealthHandler(db))
	r.Register(handler.NewActivityHandler(schedulerService)).
		Register(handler.NewSyncHandler(schedulerService, sessionService, jobs)).
		Register(handler.NewRateLimitHandler(limiter))
	r.Setup()

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      engine,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown: stop accepting requests, then drain the queue so
	// in-flight sync runs can finish or record their state.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	if err := dispatcher.Stop(ctx); err != nil {
		log.Error("Error stopping sync dispatcher", zap.Error(err))
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.Queue.DrainTimeout)
	defer drainCancel()
	if err := jobs.Stop(drainCtx); err != nil {
		log.Error("Job queue did not drain cleanly", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// registerConnector wires one platform gateway if its endpoint is configured.
func registerConnector(gateway *ecommerce.Gateway, platform syncdomain.Platform, endpoint config.ConnectorEndpoint, log *zap.Logger) {
	if endpoint.BaseURL == "" {
		log.Warn("Connector not configured, platform syncs will fail",
			zap.String("platform", string(platform)),
		)
		return
	}
	client, err := ecommerce.NewConnectorClient(platform, &ecommerce.ConnectorConfig{
		BaseURL:        endpoint.BaseURL,
		APIToken:       endpoint.APIToken,
		TimeoutSeconds: endpoint.TimeoutSeconds,
	})
	if err != nil {
		log.Fatal("Failed to build connector client",
			zap.String("platform", string(platform)),
			zap.Error(err),
		)
	}
	gateway.Register(platform, client)
	log.Info("Connector registered",
		zap.String("platform", string(platform)),
		zap.String("base_url", endpoint.BaseURL),
	)
}

func platformLimits(raw map[string]int64) map[syncdomain.Platform]int64 {
	if len(raw) == 0 {
		return nil
	}
	out := make(map[syncdomain.Platform]int64, len(raw))
	for code, limit := range raw {
		out[syncdomain.Platform(code)] = limit
	}
	return out
}
