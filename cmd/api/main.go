package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/uptimeguard/internal/app"
	"github.com/hamed0406/uptimeguard/internal/config"
	"github.com/hamed0406/uptimeguard/internal/logging"
	"github.com/hamed0406/uptimeguard/internal/scheduler"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.NewLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("app_init_failed", zap.Error(err))
	}
	defer a.Close()

	// optional in-process trigger
	go scheduler.NewLoop(logger, a.Orchestrator, cfg.TriggerInterval).Run(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.Server().Router(a.Keys(), cfg.PublicRPM, cfg.PublicBurst),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("api_listen", zap.String("addr", cfg.Addr), zap.String("store", cfg.Store))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("api_listen_failed", zap.Error(err))
	}
	logger.Info("api_stopped")
}
