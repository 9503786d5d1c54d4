package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"todolist/internal/config"
	"todolist/internal/logging"

	"github.com/charmbracelet/log"
	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("failed to load configuration", "err", err)
	}

	logger := logging.NewFromConfig(cfg.Log.Level, cfg.Log.Format)
	log.SetDefault(logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialise application", "err", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.startBackground(ctx)

	srv := &http.Server{
		Addr:         cfg.GetServerAddr(),
		Handler:      a.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server listening",
			"addr", srv.Addr,
			"environment", cfg.Server.Environment,
			"db", cfg.Database.Driver,
			"redis", cfg.Redis.Enabled,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", "err", err)
		}
	}()

	// in-flight requests drain before the background jobs and the pools close
	wait := gfshutdown.GracefulShutdown(context.Background(), cfg.Server.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"todolist": func(shutdownCtx context.Context) error {
				logger.Info("shutting down")
				err := srv.Shutdown(shutdownCtx)
				cancel()
				a.close()
				return err
			},
		},
	)

	exitCode := <-wait
	logger.Info("server stopped", "exit_code", exitCode)
	os.Exit(exitCode)
}
