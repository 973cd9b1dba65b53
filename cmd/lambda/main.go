package main

import (
	"context"
	"errors"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimeguard/internal/app"
	"github.com/hamed0406/uptimeguard/internal/config"
	"github.com/hamed0406/uptimeguard/internal/logging"
	"github.com/hamed0406/uptimeguard/internal/scheduler"
)

// Runs one check pass per scheduled EventBridge/CloudWatch event.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal(err)
	}
	if err := checkStore(cfg); err != nil {
		log.Fatal(err)
	}
	// Lambda captures stderr; no log files
	logger, err := logging.NewLogger("", cfg.LogLevel)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("app_init_failed", zap.Error(err))
	}
	defer a.Close()

	lambda.Start(handler(a.Orchestrator, logger))
}

func handler(p scheduler.Passer, logger *zap.Logger) func(context.Context, events.CloudWatchEvent) (scheduler.Summary, error) {
	return func(ctx context.Context, ev events.CloudWatchEvent) (scheduler.Summary, error) {
		logger.Info("scheduled_trigger", zap.String("event_id", ev.ID), zap.String("source", ev.Source), zap.Time("time", ev.Time))
		return p.RunPass(ctx)
	}
}

// checkStore rejects the memory store: every cold start would begin with no targets.
func checkStore(cfg config.Config) error {
	if cfg.Store == config.StoreMemory {
		return errors.New("STORE=memory holds no targets across invocations; set STORE=dynamodb or DATABASE_URL")
	}
	return nil
}
