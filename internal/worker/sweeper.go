package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/healthtrack-api/internal/repository"
	"github.com/jwalitptl/healthtrack-api/internal/service/status"
	"github.com/jwalitptl/healthtrack-api/pkg/logger"
	"github.com/jwalitptl/healthtrack-api/pkg/metrics"
)

// Reconciler is the part of the status service the sweeper needs.
type Reconciler interface {
	ReconcileAsync(ctx context.Context, patientID uuid.UUID)
}

type SweeperConfig struct {
	Interval      time.Duration
	RatePerSecond float64
	Burst         int
}

// Sweeper periodically reconciles every patient that is flagged critical or
// owns a critical reading inside the window. Flags clear once their readings
// age out, and a reconcile lost after a write is made up.
type Sweeper struct {
	patients   repository.PatientRepository
	readings   repository.ReadingRepository
	reconciler Reconciler
	now        func() time.Time
	config     SweeperConfig
	limiter    *rate.Limiter
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

func NewSweeper(
	patients repository.PatientRepository,
	readings repository.ReadingRepository,
	reconciler Reconciler,
	config SweeperConfig,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Sweeper {
	return &Sweeper{
		patients:   patients,
		readings:   readings,
		reconciler: reconciler,
		now:        time.Now,
		config:     config,
		limiter:    rate.NewLimiter(rate.Limit(config.RatePerSecond), config.Burst),
		logger:     logger,
		metrics:    metrics,
	}
}

// SetClock replaces time.Now for the window cutoff.
func (w *Sweeper) SetClock(now func() time.Time) {
	w.now = now
}

func (w *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	w.logger.Info("Starting status sweeper", "interval", w.config.Interval.String())

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Shutting down status sweeper")
			return
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil {
				// Log error but continue
				w.logger.Error(err, "Status sweep failed")
			}
		}
	}
}

// Sweep runs one pass and returns how many patients it reconciled.
func (w *Sweeper) Sweep(ctx context.Context) (int, error) {
	flagged, err := w.patients.ListCriticalIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list critical patients: %w", err)
	}
	pending, err := w.readings.ListPatientIDsWithCriticalSince(ctx, w.now().Add(-status.Window))
	if err != nil {
		return 0, fmt.Errorf("failed to list patients with critical readings: %w", err)
	}
	ids := lo.Union(flagged, pending)

	done := 0
	for _, id := range ids {
		if err := w.limiter.Wait(ctx); err != nil {
			return done, fmt.Errorf("sweep interrupted: %w", err)
		}
		w.reconciler.ReconcileAsync(ctx, id)
		w.metrics.SweptPatients.Inc()
		done++
	}

	w.logger.Info("Status sweep finished", "patients", done)
	return done, nil
}
