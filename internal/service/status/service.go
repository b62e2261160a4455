// Package status keeps each patient's critical flag in line with the
// patient's recent readings.
package status

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/healthtrack-api/internal/model"
	"github.com/jwalitptl/healthtrack-api/internal/repository"
	apperrors "github.com/jwalitptl/healthtrack-api/pkg/errors"
	"github.com/jwalitptl/healthtrack-api/pkg/logger"
	"github.com/jwalitptl/healthtrack-api/pkg/metrics"
)

// Window is how far back a critical reading keeps its patient critical.
const Window = 24 * time.Hour

type StatusService interface {
	Reconcile(ctx context.Context, patientID uuid.UUID) (bool, error)
	ReconcileAsync(ctx context.Context, patientID uuid.UUID)
}

// Listener is told about every flag transition after it is written.
type Listener interface {
	OnStatusChange(ctx context.Context, change model.PatientStatusChange)
}

type ListenerFunc func(ctx context.Context, change model.PatientStatusChange)

func (f ListenerFunc) OnStatusChange(ctx context.Context, change model.PatientStatusChange) {
	f(ctx, change)
}

type Service struct {
	patients  repository.PatientRepository
	readings  repository.ReadingRepository
	timeout   time.Duration
	listeners []Listener
	now       func() time.Time
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithListeners(listeners ...Listener) Option {
	return func(s *Service) { s.listeners = append(s.listeners, listeners...) }
}

func NewService(
	patients repository.PatientRepository,
	readings repository.ReadingRepository,
	timeout time.Duration,
	logger *logger.Logger,
	metrics *metrics.Metrics,
	opts ...Option,
) *Service {
	s := &Service{
		patients: patients,
		readings: readings,
		timeout:  timeout,
		now:      time.Now,
		logger:   logger,
		metrics:  metrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reconcile recomputes the patient's flag from the readings inside the
// trailing window and writes it only if it differs. It reports whether the
// stored flag changed. Safe to call any number of times, concurrently.
func (s *Service) Reconcile(ctx context.Context, patientID uuid.UUID) (bool, error) {
	timer := prometheus.NewTimer(s.metrics.ReconcileLatency)
	defer timer.ObserveDuration()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	now := s.now()
	critical, err := s.readings.HasCriticalSince(ctx, patientID, now.Add(-Window))
	if err != nil {
		s.metrics.Reconciles.WithLabelValues("error").Inc()
		return false, apperrors.Aggregation(fmt.Errorf("failed to evaluate readings: %w", err))
	}

	changed, err := s.patients.SetCritical(ctx, patientID, critical)
	if err != nil {
		s.metrics.Reconciles.WithLabelValues("error").Inc()
		return false, apperrors.Aggregation(fmt.Errorf("failed to write patient status: %w", err))
	}

	if !changed {
		s.logger.Debug("Patient status unchanged",
			"patient_id", patientID.String(),
			"is_critical", critical)
		s.metrics.Reconciles.WithLabelValues("unchanged").Inc()
		return false, nil
	}

	s.metrics.Reconciles.WithLabelValues("changed").Inc()
	s.metrics.StatusTransitions.WithLabelValues(stateLabel(critical)).Inc()
	s.logger.Info("Patient status changed",
		"patient_id", patientID.String(),
		"is_critical", critical)

	change := model.PatientStatusChange{
		PatientID:  patientID,
		IsCritical: critical,
		ChangedAt:  now.UTC(),
	}
	for _, l := range s.listeners {
		l.OnStatusChange(ctx, change)
	}
	return true, nil
}

// ReconcileAsync is the entry point for dispatchers. Nothing it does can
// reach the caller: errors and panics are logged and dropped.
func (s *Service) ReconcileAsync(ctx context.Context, patientID uuid.UUID) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.Reconciles.WithLabelValues("error").Inc()
			s.logger.Error(fmt.Errorf("panic: %v", r), "Reconcile panicked", "patient_id", patientID.String())
		}
	}()

	if _, err := s.Reconcile(ctx, patientID); err != nil {
		s.logger.Error(err, "Failed to reconcile patient status", "patient_id", patientID.String())
	}
}

func stateLabel(critical bool) string {
	if critical {
		return "critical"
	}
	return "stable"
}
