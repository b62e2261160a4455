package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/healthtrack-api/internal/app"
	"github.com/jwalitptl/healthtrack-api/internal/config"
	"github.com/jwalitptl/healthtrack-api/internal/events"
	"github.com/jwalitptl/healthtrack-api/internal/handler/health"
	patientHandler "github.com/jwalitptl/healthtrack-api/internal/handler/patient"
	"github.com/jwalitptl/healthtrack-api/internal/handler/prometheus"
	recordHandler "github.com/jwalitptl/healthtrack-api/internal/handler/record"
	"github.com/jwalitptl/healthtrack-api/internal/middleware"
	"github.com/jwalitptl/healthtrack-api/internal/router"
	patientService "github.com/jwalitptl/healthtrack-api/internal/service/patient"
	recordService "github.com/jwalitptl/healthtrack-api/internal/service/record"
	internalWorker "github.com/jwalitptl/healthtrack-api/internal/worker"
	"github.com/jwalitptl/healthtrack-api/pkg/auth"
	"github.com/jwalitptl/healthtrack-api/pkg/validator"
	"github.com/jwalitptl/healthtrack-api/pkg/worker"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig(os.Getenv("HEALTHTRACK_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize application")
	}
	defer a.Close()

	// Initialize services
	v := validator.New()
	patientSvc := patientService.NewService(a.Patients, v, cfg.Cache.CriticalTTL, a.Logger)
	statusSvc := a.NewStatusService(patientSvc)

	// Transitions made by the worker process reach the api through the
	// event topic so its cached critical list stays current.
	if cfg.Events.Driver == config.EventsRedis {
		go func() {
			sub := events.NewStatusSubscriber(a.Redis, cfg.Events.Topic, patientSvc, a.Logger)
			if err := sub.Run(ctx); err != nil {
				a.Logger.Error(err, "Status change subscription stopped")
			}
		}()
	}

	pool := worker.NewPool(statusSvc.ReconcileAsync, worker.PoolConfig{
		Workers:   cfg.Reconcile.Workers,
		QueueSize: cfg.Reconcile.QueueSize,
	}, a.Logger, a.Metrics)
	pool.Start(ctx)

	var dispatcher worker.Dispatcher = pool
	var queueDispatcher *worker.QueueDispatcher
	if cfg.Reconcile.Dispatcher == config.DispatcherRedis {
		queueDispatcher = worker.NewQueueDispatcher(a.Redis, cfg.Reconcile.QueueKey, cfg.Reconcile.QueueSize, pool, a.Logger, a.Metrics)
		queueDispatcher.Start(ctx)
		dispatcher = queueDispatcher
	}
	recordSvc := recordService.NewService(a.Patients, a.Readings, dispatcher, v, a.Logger, a.Metrics)

	if cfg.Sweep.Enabled {
		sweeper := internalWorker.NewSweeper(a.Patients, a.Readings, statusSvc, internalWorker.SweeperConfig{
			Interval:      cfg.Sweep.Interval,
			RatePerSecond: cfg.Sweep.RatePerSecond,
			Burst:         cfg.Sweep.Burst,
		}, a.Logger, a.Metrics)
		go sweeper.Start(ctx)
	}

	// Initialize middleware and handlers
	gin.SetMode(gin.ReleaseMode)
	authMiddleware := middleware.NewAuthMiddleware(auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer))

	r := router.NewRouter(
		authMiddleware,
		health.NewHandler(a.Checks()),
		prometheus.New(a.Registry, a.Metrics),
		router.RouterConfig{
			AllowedOrigins: cfg.Security.AllowedOrigins,
			RequestTimeout: cfg.Server.RequestTimeout,
			MaxBodyBytes:   cfg.Server.MaxBodyBytes,
			MetricsPath:    cfg.Monitoring.MetricsPath,
		},
		recordHandler.NewHandler(recordSvc),
		patientHandler.NewHandler(patientSvc, statusSvc),
	)
	r.Setup()

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// Drain queued reconciles before closing storage. Queue failures fall
	// back to the pool, so the queue goes first.
	if queueDispatcher != nil {
		queueDispatcher.Stop()
	}
	pool.Stop()
	stop()

	log.Info().Msg("server exited properly")
}
