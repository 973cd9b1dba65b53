package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimeguard/internal/config"
	"github.com/hamed0406/uptimeguard/internal/history"
	"github.com/hamed0406/uptimeguard/internal/httpapi"
	apimw "github.com/hamed0406/uptimeguard/internal/httpapi/middleware"
	"github.com/hamed0406/uptimeguard/internal/metrics"
	"github.com/hamed0406/uptimeguard/internal/notify"
	"github.com/hamed0406/uptimeguard/internal/probe"
	"github.com/hamed0406/uptimeguard/internal/repo"
	"github.com/hamed0406/uptimeguard/internal/repo/dynamo"
	"github.com/hamed0406/uptimeguard/internal/repo/memory"
	pg "github.com/hamed0406/uptimeguard/internal/repo/postgres"
	"github.com/hamed0406/uptimeguard/internal/schedule"
	"github.com/hamed0406/uptimeguard/internal/scheduler"
)

// App is the wired engine shared by the binaries.
type App struct {
	Config       config.Config
	Logger       *zap.Logger
	Store        repo.Store
	Registry     *prometheus.Registry
	Metrics      *metrics.Metrics
	Aggregator   *history.Aggregator
	Orchestrator *scheduler.Orchestrator

	closers []func()
}

// New builds the store, the check pipeline and the metrics registry from cfg.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	a := &App{Config: cfg, Logger: log}

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.New(a.Registry)

	a.Aggregator = history.NewAggregator(a.Store, loc, log, a.Metrics)
	a.Orchestrator = scheduler.NewOrchestrator(scheduler.Deps{
		Targets:       a.Store,
		Records:       a.Store,
		Schedule:      schedule.NewEvaluator(a.Store, loc),
		Checker:       probe.NewDispatcher(cfg.CheckTimeout, log),
		Recorder:      history.NewRecorder(a.Store, a.Aggregator, loc, log),
		Rollup:        a.Aggregator,
		Notifier:      notify.New(newMailer(cfg, log), cfg.MailFrom, newOps(cfg), loc, log),
		Location:      loc,
		Log:           log,
		Metrics:       a.Metrics,
		MaxConcurrent: cfg.MaxConcurrent,
		Timeout:       cfg.CheckTimeout,
	})
	return a, nil
}

func (a *App) openStore(ctx context.Context) error {
	switch a.Config.Store {
	case config.StorePostgres:
		s, err := pg.New(ctx, a.Config.DatabaseURL, a.Logger)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return fmt.Errorf("postgres migrate: %w", err)
		}
		a.Store = s
		a.closers = append(a.closers, s.Close)
	case config.StoreDynamo:
		s, err := dynamo.New(ctx, dynamo.Options{
			Region:          a.Config.AWSRegion,
			AccessKeyID:     a.Config.AWSAccessKeyID,
			SecretAccessKey: a.Config.AWSSecretKey,
			Endpoint:        a.Config.DynamoEndpoint,
			TablePrefix:     a.Config.DynamoTablePrefix,
		}, a.Logger)
		if err != nil {
			return fmt.Errorf("dynamodb: %w", err)
		}
		if err := s.EnsureTables(ctx); err != nil {
			return fmt.Errorf("dynamodb tables: %w", err)
		}
		a.Store = s
	default:
		a.Store = memory.New()
	}
	a.Logger.Info("store_ready", zap.String("store", a.Config.Store))
	return nil
}

// newMailer prefers Resend, then SMTP, then logging the mail.
func newMailer(cfg config.Config, log *zap.Logger) notify.Mailer {
	switch {
	case cfg.ResendAPIKey != "":
		return notify.NewResend(cfg.ResendAPIKey)
	case cfg.SMTPHost != "":
		return &notify.SMTPMailer{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			Timeout:  10 * time.Second,
		}
	default:
		log.Warn("mail_transport_unconfigured")
		return notify.LogMailer{Log: log}
	}
}

func newOps(cfg config.Config) notify.OpsSink {
	var sinks notify.Multi
	if s := notify.NewSlack(cfg.SlackWebhookURL); s != nil {
		sinks = append(sinks, s)
	}
	if len(sinks) == 0 {
		return nil
	}
	return sinks
}

// Server returns the HTTP API backed by the orchestrator.
func (a *App) Server() *httpapi.Server {
	srv := httpapi.NewServer(a.Logger, a.Orchestrator, a.Registry)
	if len(a.Config.AllowedOrigins) > 0 {
		srv.AllowedOrigins = a.Config.AllowedOrigins
	}
	return srv
}

// Keys returns the API keys from the config.
func (a *App) Keys() apimw.Keys {
	return apimw.Keys{Public: a.Config.PublicAPIKeys, Admin: a.Config.AdminAPIKeys}
}

// Close releases backend connections.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
