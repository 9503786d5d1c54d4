package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"todolist/internal/cache"
	"todolist/internal/config"
	"todolist/internal/database"
	"todolist/internal/handlers"
	"todolist/internal/middleware"
	"todolist/internal/monitoring"
	"todolist/internal/services"
	"todolist/internal/web"
	"todolist/internal/worker"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm/logger"
)

// app owns every long-lived dependency of the server process.
type app struct {
	cfg      *config.Config
	logger   *log.Logger
	pool     *database.DatabasePool
	cache    *cache.RedisCache
	queue    *worker.JobQueue
	sessions services.SessionService
	router   *gin.Engine
	worker   *worker.Worker
	periodic *worker.Periodic
}

func gormLogLevel(level string) logger.LogLevel {
	if strings.EqualFold(level, "debug") {
		return logger.Info
	}
	return logger.Silent
}

func newApp(cfg *config.Config, appLogger *log.Logger) (*app, error) {
	pool, err := database.NewDatabasePool(&database.PoolConfig{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.GetDatabaseDSN(),
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		LogLevel:        gormLogLevel(cfg.Log.Level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := database.Migrate(pool.DB); err != nil {
		pool.Close()
		return nil, err
	}

	templates, err := web.Templates()
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	a := &app{
		cfg:      cfg,
		logger:   appLogger,
		pool:     pool,
		sessions: services.NewSessionService(cfg.Session.Secret, cfg.Session.TTL),
	}

	health := monitoring.NewHealthChecker(5 * time.Second)
	health.Register("database", pool.Health)
	extra := map[string]monitoring.StatsFunc{"database": pool.Stats}

	var taskService services.TaskService = services.NewTaskService()
	if cfg.Redis.Enabled {
		a.cache = cache.NewRedisCache(&cache.CacheConfig{
			Addr:         cfg.GetRedisAddr(),
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   cfg.Redis.MaxRetries,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			KeyPrefix:    "todolist:",
		})
		health.Register("redis", a.cache.Health)
		extra["cache"] = a.cache.Stats

		a.queue = worker.NewJobQueue(a.cache.Client())
		watched := append(append([]string{}, cfg.Worker.Queues...), worker.DeadQueue)
		extra["queues"] = func() map[string]interface{} {
			return a.queue.QueueStats(context.Background(), watched...)
		}

		if cfg.Cache.Enabled {
			taskService = services.NewCachedTaskService(taskService, a.cache, cfg.Cache.ListTTL, appLogger.WithPrefix("cache"))
		}
	}

	a.router = handlers.NewRouter(handlers.RouterConfig{
		DB:       pool.DB,
		Accounts: services.NewAccountService(cfg.Session.BCryptCost),
		Sessions: a.sessions,
		Tasks:    taskService,
		Cookie: middleware.SessionCookie{
			Name:   cfg.Session.CookieName,
			Secure: cfg.Session.CookieSecure,
		},
		Templates:      templates,
		Logger:         appLogger,
		Health:         health,
		MetricsExtra:   extra,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	return a, nil
}

// startBackground schedules the expired session purge. With redis it goes
// through the job queue so any replica's worker can pick it up; without
// redis the purge runs in-process.
func (a *app) startBackground(ctx context.Context) {
	interval := a.cfg.Worker.CleanupInterval
	bgLogger := a.logger.WithPrefix("jobs")

	if a.cache == nil {
		a.periodic = worker.NewPeriodic("session-cleanup", interval, func(ctx context.Context) error {
			purged, err := a.sessions.PurgeExpired(a.pool.DB.WithContext(ctx))
			if err == nil && purged > 0 {
				bgLogger.Info("purged expired sessions", "count", purged)
			}
			return err
		}, bgLogger)
		a.periodic.Start(ctx)
		return
	}

	client := a.cache.Client()
	a.worker = worker.NewWorker(worker.WorkerConfig{
		RedisClient:  client,
		PollInterval: a.cfg.Worker.PollInterval,
		Queues:       a.cfg.Worker.Queues,
		Logger:       a.logger,
	})
	a.worker.RegisterHandler(worker.JobTypeSessionCleanup, worker.SessionCleanupHandler(a.pool.DB, a.sessions, bgLogger))
	a.worker.Start(ctx, a.cfg.Worker.Concurrency)

	a.periodic = worker.EnqueueEvery(a.queue, "session-cleanup", worker.JobTypeSessionCleanup, interval, bgLogger)
	a.periodic.Start(ctx)
}

func (a *app) close() {
	if a.periodic != nil {
		a.periodic.Stop()
	}
	if a.worker != nil {
		a.worker.Stop()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("failed to close redis", "err", err)
		}
	}
	if err := a.pool.Close(); err != nil {
		a.logger.Error("failed to close database", "err", err)
	}
}
