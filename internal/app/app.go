// Package app builds the shared runtime for the api and worker binaries.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/healthtrack-api/internal/config"
	"github.com/jwalitptl/healthtrack-api/internal/events"
	"github.com/jwalitptl/healthtrack-api/internal/handler/health"
	"github.com/jwalitptl/healthtrack-api/internal/repository"
	"github.com/jwalitptl/healthtrack-api/internal/repository/memory"
	"github.com/jwalitptl/healthtrack-api/internal/repository/postgres"
	"github.com/jwalitptl/healthtrack-api/internal/service/status"
	"github.com/jwalitptl/healthtrack-api/pkg/logger"
	"github.com/jwalitptl/healthtrack-api/pkg/messaging"
	"github.com/jwalitptl/healthtrack-api/pkg/messaging/kafka"
	redisbroker "github.com/jwalitptl/healthtrack-api/pkg/messaging/redis"
	"github.com/jwalitptl/healthtrack-api/pkg/metrics"
)

type App struct {
	Config   *config.Config
	Logger   *logger.Logger
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics

	DB    *sqlx.DB
	Redis *redisbroker.RedisBroker

	Patients repository.PatientRepository
	Readings repository.ReadingRepository

	closers []func() error
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg}

	a.Logger = logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
		Pretty:     cfg.Log.Pretty,
	})
	// Middleware logs through the global logger.
	log.Logger = a.Logger.ZL

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.Metrics = metrics.NewMetrics(cfg.Monitoring.Namespace, a.Registry)

	if err := a.openStorage(ctx); err != nil {
		a.Close()
		return nil, err
	}

	if cfg.Reconcile.Dispatcher == config.DispatcherRedis || cfg.Events.Driver == config.EventsRedis {
		zl := a.Logger.ZL.With().Str("component", "redis").Logger()
		broker, err := redisbroker.NewRedisBroker(ctx, redisbroker.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, &zl, a.Metrics)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Redis = broker
		a.closers = append(a.closers, broker.Close)
	}

	return a, nil
}

func (a *App) openStorage(ctx context.Context) error {
	switch a.Config.Database.Driver {
	case config.DriverMemory:
		a.Logger.Warn("Using in-memory storage, data is lost on exit")
		store := memory.NewStore()
		a.Patients = store.Patients()
		a.Readings = store.Readings()
	default:
		db, err := postgres.NewDB(ctx, a.Config.Database)
		if err != nil {
			return err
		}
		a.DB = db
		a.closers = append(a.closers, db.Close)

		base := postgres.NewBaseRepository(db)
		a.Patients = postgres.NewPatientRepository(base)
		a.Readings = postgres.NewReadingRepository(base)
	}
	return nil
}

// EventListener returns the status listener for the configured event sink,
// or nil when events are disabled.
func (a *App) EventListener() status.Listener {
	var publisher messaging.Publisher
	switch a.Config.Events.Driver {
	case config.EventsRedis:
		publisher = a.Redis
	case config.EventsKafka:
		kp := kafka.NewPublisher(a.Config.Kafka.Brokers)
		a.closers = append(a.closers, kp.Close)
		publisher = kp
	default:
		return nil
	}
	return events.NewStatusPublisher(publisher, a.Config.Events.Topic, a.Logger)
}

// NewStatusService wires the aggregator with the event sink and any extra
// listeners.
func (a *App) NewStatusService(listeners ...status.Listener) *status.Service {
	if l := a.EventListener(); l != nil {
		listeners = append(listeners, l)
	}
	return status.NewService(a.Patients, a.Readings, a.Config.Reconcile.Timeout, a.Logger, a.Metrics,
		status.WithListeners(listeners...))
}

// Checks lists the dependencies readiness depends on.
func (a *App) Checks() map[string]health.Checker {
	checks := map[string]health.Checker{}
	if a.DB != nil {
		checks["database"] = health.CheckerFunc(a.DB.PingContext)
	}
	if a.Redis != nil {
		checks["redis"] = health.CheckerFunc(a.Redis.Ping)
	}
	return checks
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Error(err, "Failed to close resource")
		}
	}
	a.closers = nil
}

// RequireRedis fails fast for commands that only make sense with a queue.
func (a *App) RequireRedis() error {
	if a.Redis == nil {
		return fmt.Errorf("reconcile.dispatcher must be %q", config.DispatcherRedis)
	}
	return nil
}
