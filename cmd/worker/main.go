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
	"github.com/spf13/cobra"

	"github.com/jwalitptl/healthtrack-api/internal/app"
	"github.com/jwalitptl/healthtrack-api/internal/config"
	"github.com/jwalitptl/healthtrack-api/internal/handler/health"
	"github.com/jwalitptl/healthtrack-api/internal/handler/prometheus"
	"github.com/jwalitptl/healthtrack-api/internal/repository/postgres"
	internalWorker "github.com/jwalitptl/healthtrack-api/internal/worker"
	"github.com/jwalitptl/healthtrack-api/pkg/worker"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:          "healthtrack-worker",
		Short:        "Background jobs for patient status tracking",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("HEALTHTRACK_CONFIG"), "path to config.yml")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func bootstrap(ctx context.Context) (*app.App, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

func runCmd() *cobra.Command {
	var adminAddr string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Consume queued reconciles and run the periodic sweep",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.RequireRedis(); err != nil {
				return err
			}
			return runWorker(ctx, a, adminAddr)
		},
	}
	cmd.Flags().StringVar(&adminAddr, "admin-addr", ":8081", "listen address for health and metrics")
	return cmd
}

func runWorker(ctx context.Context, a *app.App, adminAddr string) error {
	cfg := a.Config
	statusSvc := a.NewStatusService()

	// One consumer per configured worker; entries stay in Redis until taken.
	for i := 0; i < cfg.Reconcile.Workers; i++ {
		go worker.NewConsumer(a.Redis, cfg.Reconcile.QueueKey, statusSvc.ReconcileAsync, a.Logger).Start(ctx)
	}

	if cfg.Sweep.Enabled {
		go newSweeper(a, statusSvc).Start(ctx)
	}

	srv := adminServer(a, adminAddr)
	go func() {
		log.Info().Str("addr", adminAddr).Msg("starting admin server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("admin server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("admin server forced to shutdown")
	}
	return nil
}

func adminServer(a *app.App, addr string) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	health.NewHandler(a.Checks()).RegisterRoutes(engine)
	engine.GET(a.Config.Monitoring.MetricsPath, prometheus.New(a.Registry, a.Metrics).Handler())

	return &http.Server{
		Addr:              addr,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func newSweeper(a *app.App, reconciler internalWorker.Reconciler) *internalWorker.Sweeper {
	return internalWorker.NewSweeper(a.Patients, a.Readings, reconciler, internalWorker.SweeperConfig{
		Interval:      a.Config.Sweep.Interval,
		RatePerSecond: a.Config.Sweep.RatePerSecond,
		Burst:         a.Config.Sweep.Burst,
	}, a.Logger, a.Metrics)
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Reconcile every critical patient once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := newSweeper(a, a.NewStatusService()).Sweep(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "reconciled %d patients\n", n)
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.DB == nil {
				return fmt.Errorf("database.driver must be %q", config.DriverPostgres)
			}
			if err := postgres.Migrate(ctx, a.DB); err != nil {
				return err
			}
			log.Info().Msg("migrations applied")
			return nil
		},
	}
}
