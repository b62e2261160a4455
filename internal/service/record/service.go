// Package record ingests vital-sign readings and serves them back.
package record

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/jwalitptl/healthtrack-api/internal/model"
	"github.com/jwalitptl/healthtrack-api/internal/repository"
	apperrors "github.com/jwalitptl/healthtrack-api/pkg/errors"
	"github.com/jwalitptl/healthtrack-api/pkg/logger"
	"github.com/jwalitptl/healthtrack-api/pkg/metrics"
	"github.com/jwalitptl/healthtrack-api/pkg/validator"
	"github.com/jwalitptl/healthtrack-api/pkg/vitals"
	"github.com/jwalitptl/healthtrack-api/pkg/worker"
)

// CriticalWindow bounds ListCritical.
const CriticalWindow = 24 * time.Hour

type RecordService interface {
	Submit(ctx context.Context, req *model.SubmitReadingsRequest, recordedBy *uuid.UUID) ([]*model.Reading, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Reading, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, filters *model.ReadingFilters) ([]*model.Reading, int, error)
	ListCritical(ctx context.Context) ([]*model.Reading, error)
	Statistics(ctx context.Context, patientID uuid.UUID) ([]*model.ReadingStatistics, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type Service struct {
	patients   repository.PatientRepository
	readings   repository.ReadingRepository
	dispatcher worker.Dispatcher
	validator  *validator.Validator
	now        func() time.Time
	logger     *logger.Logger
	metrics    *metrics.Metrics
}

func NewService(
	patients repository.PatientRepository,
	readings repository.ReadingRepository,
	dispatcher worker.Dispatcher,
	validator *validator.Validator,
	logger *logger.Logger,
	metrics *metrics.Metrics,
) *Service {
	return &Service{
		patients:   patients,
		readings:   readings,
		dispatcher: dispatcher,
		validator:  validator,
		now:        time.Now,
		logger:     logger,
		metrics:    metrics,
	}
}

// SetClock replaces time.Now for recordedAt stamping.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Submit classifies and stores a batch of readings for one patient, then
// schedules a status reconcile. The reconcile never affects the result.
func (s *Service) Submit(ctx context.Context, req *model.SubmitReadingsRequest, recordedBy *uuid.UUID) ([]*model.Reading, error) {
	if err := s.validator.Validate(req); err != nil {
		s.metrics.SubmitFailures.WithLabelValues("validation").Inc()
		return nil, err
	}

	exists, err := s.patients.ExistsActive(ctx, req.PatientID)
	if err != nil {
		s.metrics.SubmitFailures.WithLabelValues("persistence").Inc()
		return nil, apperrors.Persistence(fmt.Errorf("failed to look up patient: %w", err))
	}
	if !exists {
		s.metrics.SubmitFailures.WithLabelValues("not_found").Inc()
		return nil, apperrors.NotFound("patient", nil)
	}

	symptoms := normalizeSymptoms(req.Symptoms)
	notes := strings.TrimSpace(req.TreatmentNotes)
	now := s.now().UTC()

	readings := lo.Map(req.Readings, func(in model.ReadingInput, _ int) *model.Reading {
		value := strings.TrimSpace(in.Value)
		result := vitals.Classify(in.TestType, value, symptoms)
		return &model.Reading{
			ID:             uuid.New(),
			PatientID:      req.PatientID,
			TestType:       in.TestType,
			Value:          value,
			Symptoms:       symptoms,
			TreatmentNotes: notes,
			IsCritical:     result.Critical,
			Reasons:        result.Reasons,
			RecordedAt:     now,
			RecordedBy:     recordedBy,
			Active:         true,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	})

	if err := s.readings.CreateBatch(ctx, readings); err != nil {
		s.metrics.SubmitFailures.WithLabelValues("persistence").Inc()
		return nil, apperrors.Persistence(fmt.Errorf("failed to store readings: %w", err))
	}

	for _, r := range readings {
		s.metrics.ReadingsIngested.WithLabelValues(string(r.TestType), fmt.Sprint(r.IsCritical)).Inc()
	}
	s.logger.Info("Readings stored",
		"patient_id", req.PatientID.String(),
		"count", len(readings),
		"critical", lo.CountBy(readings, func(r *model.Reading) bool { return r.IsCritical }))

	s.dispatcher.Dispatch(req.PatientID)
	return readings, nil
}

// normalizeSymptoms trims entries and drops blanks and duplicates.
func normalizeSymptoms(symptoms []string) []string {
	trimmed := lo.Map(symptoms, func(s string, _ int) string { return strings.TrimSpace(s) })
	out := lo.Uniq(lo.Compact(trimmed))
	if out == nil {
		return []string{}
	}
	return out
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Reading, error) {
	reading, err := s.readings.Get(ctx, id)
	if err != nil {
		return nil, lookupError("reading", err)
	}
	return reading, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, filters *model.ReadingFilters) ([]*model.Reading, int, error) {
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, 0, err
	}
	if filters == nil {
		filters = &model.ReadingFilters{}
	}
	if filters.TestType != "" && !filters.TestType.Valid() {
		return nil, 0, apperrors.Validation(apperrors.FieldError{Field: "test_type", Message: "unknown test type"})
	}
	filters.Pagination = filters.Pagination.Normalize()

	readings, total, err := s.readings.ListByPatient(ctx, patientID, filters)
	if err != nil {
		return nil, 0, apperrors.Persistence(fmt.Errorf("failed to list readings: %w", err))
	}
	return readings, total, nil
}

func (s *Service) ListCritical(ctx context.Context) ([]*model.Reading, error) {
	readings, err := s.readings.ListCriticalSince(ctx, s.now().Add(-CriticalWindow))
	if err != nil {
		return nil, apperrors.Persistence(fmt.Errorf("failed to list critical readings: %w", err))
	}
	return readings, nil
}

func (s *Service) Statistics(ctx context.Context, patientID uuid.UUID) ([]*model.ReadingStatistics, error) {
	if err := s.requirePatient(ctx, patientID); err != nil {
		return nil, err
	}
	stats, err := s.readings.Statistics(ctx, patientID)
	if err != nil {
		return nil, apperrors.Persistence(fmt.Errorf("failed to get reading statistics: %w", err))
	}
	return stats, nil
}

// Delete soft-deletes a reading and reconciles its patient, since the
// reading may have been the one keeping the patient critical.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	reading, err := s.readings.SoftDelete(ctx, id)
	if err != nil {
		return lookupError("reading", err)
	}
	s.logger.Info("Reading deleted", "reading_id", id.String(), "patient_id", reading.PatientID.String())
	s.dispatcher.Dispatch(reading.PatientID)
	return nil
}

func (s *Service) requirePatient(ctx context.Context, patientID uuid.UUID) error {
	exists, err := s.patients.ExistsActive(ctx, patientID)
	if err != nil {
		return apperrors.Persistence(fmt.Errorf("failed to look up patient: %w", err))
	}
	if !exists {
		return apperrors.NotFound("patient", nil)
	}
	return nil
}

func lookupError(resource string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(resource, err)
	}
	return apperrors.Persistence(fmt.Errorf("failed to get %s: %w", resource, err))
}
