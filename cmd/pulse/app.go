package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/kalambet/pulse/internal/aggregate"
	"github.com/kalambet/pulse/internal/config"
	"github.com/kalambet/pulse/internal/dashboard"
	"github.com/kalambet/pulse/internal/engine"
	"github.com/kalambet/pulse/internal/events"
	"github.com/kalambet/pulse/internal/notify"
	"github.com/kalambet/pulse/internal/persist"
	"github.com/kalambet/pulse/internal/pipeline"
	"github.com/kalambet/pulse/internal/reconcile"
	"github.com/kalambet/pulse/internal/schedule"
	"github.com/kalambet/pulse/internal/scheduler"
	"github.com/kalambet/pulse/internal/storage"
	"github.com/kalambet/pulse/internal/tenant"
)

// app holds the wired components shared by serve, run and mcp.
type app struct {
	cfg       config.Config
	store     *storage.Store
	tenants   *tenant.Manager
	dashboard *dashboard.Dashboard
	transport *notify.Telegram
	events    events.Publisher
	scheduler *scheduler.Scheduler
}

func openStore(cfg config.Config) (*storage.Store, error) {
	if cfg.Storage.Driver == "postgres" {
		return storage.OpenPostgres(cfg.Storage.DatabaseURL)
	}
	return storage.Open(cfg.Storage.DataDir)
}

func gateFromConfig(cfg config.ScheduleConfig) (schedule.Gate, error) {
	var table schedule.Table
	for _, tier := range []schedule.Tier{schedule.TierEarly, schedule.TierStandard, schedule.TierLate} {
		weekday, weekend, err := cfg.Hours(int(tier))
		if err != nil {
			return schedule.Gate{}, err
		}
		table = append(table, schedule.Row{Tier: tier, Weekday: weekday, Weekend: weekend})
	}
	return schedule.Gate{
		Table:       table,
		TrialLength: time.Duration(cfg.TrialDays) * 24 * time.Hour,
	}, nil
}

func routingFromConfig(cfg config.RoutingConfig) aggregate.Routing {
	return aggregate.Routing{
		WorkTags:        config.SplitTags(cfg.WorkTags),
		PersonalTags:    config.SplitTags(cfg.PersonalTags),
		BusinessStart:   cfg.BusinessStart,
		BusinessEnd:     cfg.BusinessEnd,
		SummaryMaxChars: cfg.SummaryMaxChars,
	}
}

// newApp opens storage and wires the pipeline. readiness, when non-nil,
// receives the engine's readiness progress.
func newApp(ctx context.Context, cfg config.Config, readiness io.Writer) (*app, error) {
	gen, err := engine.New(cfg)
	if err != nil {
		return nil, err
	}
	if readiness != nil {
		if err := engine.CheckReady(ctx, gen, readiness); err != nil {
			return nil, err
		}
	}

	gate, err := gateFromConfig(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("building schedule: %w", err)
	}
	routing := routingFromConfig(cfg.Routing)

	store, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}

	pub, err := events.New(cfg.Events.NATSURL)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("connecting events: %w", err)
	}

	tenants := tenant.NewManager(store)
	transport := notify.NewTelegram(cfg.Telegram.BaseURL, cfg.Telegram.BotToken)
	alerter := notify.NewAlerter(transport, cfg.Admin.ChatID, store)

	p := pipeline.New(
		tenants,
		gate,
		aggregate.New(store, routing),
		reconcile.New(gen, cfg.Engine.Timeout),
		persist.New(store, routing),
		notify.NewNotifier(transport),
	)
	sched := scheduler.New(store, p, alerter, pub, scheduler.Options{
		BatchSize:  cfg.Schedule.BatchSize,
		BatchPause: cfg.Schedule.BatchPause,
		RunTimeout: cfg.Schedule.RunTimeout,
	})

	slog.Debug("pipeline wired", "engine", gen.Name(), "storage", cfg.Storage.Driver, "batch_size", cfg.Schedule.BatchSize)

	return &app{
		cfg:       cfg,
		store:     store,
		tenants:   tenants,
		dashboard: dashboard.New(store, tenants),
		transport: transport,
		events:    pub,
		scheduler: sched,
	}, nil
}

func (a *app) Close() {
	if err := a.events.Close(); err != nil {
		slog.Warn("closing events", "error", err)
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("closing storage", "error", err)
	}
}
