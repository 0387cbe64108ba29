package bootstrap

import (
	"time"

	"github.com/hadassahlevi/tiktax-client/internal/config"
	"github.com/hadassahlevi/tiktax-client/internal/core/ports"
	"github.com/hadassahlevi/tiktax-client/internal/core/usecase"
	"github.com/hadassahlevi/tiktax-client/internal/export"
	"github.com/hadassahlevi/tiktax-client/internal/infrastructure/api"
	"github.com/hadassahlevi/tiktax-client/internal/infrastructure/resilience"
	"github.com/hadassahlevi/tiktax-client/internal/observability/metrics"
)

// App wires the session, transport, gateway, store and watcher for one
// process lifetime. The session is constructed here and injected, never
// an ambient singleton, so the refresh coalescing stays testable.
type App struct {
	Config  config.Config
	Session *api.Session
	Auth    ports.AuthGateway
	Store   *usecase.ReceiptStore
	Watcher *usecase.InterpretationWatcher
	Export  *export.Service
	Metrics *metrics.ClientMetrics
}

func New(cfg config.Config) *App {
	m := metrics.NewClientMetrics("tiktax-client")
	session := api.NewSession()

	client := api.NewClient(cfg.BaseURL, session, api.Config{
		Timeout:        time.Duration(cfg.RequestTimeoutSeconds) * time.Second,
		SlowThreshold:  time.Duration(cfg.SlowThresholdSeconds) * time.Second,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Breaker: resilience.BreakerConfig{
			Enabled:          cfg.BreakerEnabled,
			MinRequests:      cfg.BreakerMinRequests,
			FailureRatio:     cfg.BreakerFailureRatio,
			OpenTimeout:      time.Duration(cfg.BreakerOpenTimeoutSeconds) * time.Second,
			HalfOpenMaxCalls: cfg.BreakerHalfOpenMaxCalls,
		},
	}, m)

	gateway := api.NewGateway(client, m)
	store := usecase.NewReceiptStore(gateway, usecase.WithPageSize(cfg.PageSize))
	watcher := usecase.NewInterpretationWatcher(store, resilience.Backoff{
		Initial:     time.Duration(cfg.WatcherInitialDelaySeconds) * time.Second,
		Max:         time.Duration(cfg.WatcherMaxDelaySeconds) * time.Second,
		Multiplier:  cfg.WatcherMultiplier,
		MaxAttempts: cfg.WatcherMaxAttempts,
	}, m)

	return &App{
		Config:  cfg,
		Session: session,
		Auth:    gateway,
		Store:   store,
		Watcher: watcher,
		Export:  export.NewService(gateway, cfg.PageSize, nil),
		Metrics: m,
	}
}
