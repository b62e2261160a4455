package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/jwalitptl/healthtrack-api/internal/model"
	"github.com/jwalitptl/healthtrack-api/internal/repository"
	apperrors "github.com/jwalitptl/healthtrack-api/pkg/errors"
	"github.com/jwalitptl/healthtrack-api/pkg/logger"
	"github.com/jwalitptl/healthtrack-api/pkg/validator"
)

const (
	criticalKey  = "patients:critical"
	defaultEmail = "N/A"
)

type PatientService interface {
	CreatePatient(ctx context.Context, req *model.CreatePatientRequest, createdBy *uuid.UUID) (*model.Patient, error)
	GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error)
	ListPatients(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, int, error)
	UpdatePatient(ctx context.Context, id uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error)
	DeletePatient(ctx context.Context, id uuid.UUID) error
	ListCritical(ctx context.Context) ([]*model.Patient, error)
	Statistics(ctx context.Context) (*model.PatientStatistics, error)
}

type Service struct {
	repo      repository.PatientRepository
	validator *validator.Validator
	cache     *cache.Cache
	logger    *logger.Logger
}

func NewService(repo repository.PatientRepository, validator *validator.Validator, criticalTTL time.Duration, logger *logger.Logger) *Service {
	return &Service{
		repo:      repo,
		validator: validator,
		cache:     cache.New(criticalTTL, 2*criticalTTL),
		logger:    logger,
	}
}

func (s *Service) CreatePatient(ctx context.Context, req *model.CreatePatientRequest, createdBy *uuid.UUID) (*model.Patient, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	email := req.Email
	if email == "" {
		email = defaultEmail
	}

	patient := &model.Patient{
		Base:           model.Base{ID: uuid.New()},
		Name:           req.Name,
		DateOfBirth:    req.DateOfBirth.UTC(),
		Contact:        req.Contact,
		Email:          email,
		MedicalHistory: strings.TrimSpace(req.MedicalHistory),
		CreatedBy:      createdBy,
	}
	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, apperrors.Persistence(fmt.Errorf("failed to create patient: %w", err))
	}

	s.logger.Info("Patient created", "patient_id", patient.ID.String())
	return patient, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	patient, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("patient", err)
		}
		return nil, apperrors.Persistence(fmt.Errorf("failed to get patient: %w", err))
	}
	return patient, nil
}

func (s *Service) ListPatients(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, int, error) {
	if filters == nil {
		filters = &model.PatientFilters{}
	}
	filters.Pagination = filters.Pagination.Normalize()

	patients, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, 0, apperrors.Persistence(fmt.Errorf("failed to list patients: %w", err))
	}
	if patients == nil {
		patients = []*model.Patient{}
	}
	return patients, total, nil
}

// UpdatePatient applies the non-nil fields of req. IsCritical is kept as
// stored; only the status aggregator writes it.
func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, req *model.UpdatePatientRequest) (*model.Patient, error) {
	trim(req.Name)
	trim(req.Contact)
	trim(req.MedicalHistory)
	if req.Email != nil {
		*req.Email = strings.ToLower(strings.TrimSpace(*req.Email))
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	patient, err := s.GetPatient(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		patient.Name = *req.Name
	}
	if req.DateOfBirth != nil {
		patient.DateOfBirth = req.DateOfBirth.UTC()
	}
	if req.Contact != nil {
		patient.Contact = *req.Contact
	}
	if req.Email != nil {
		patient.Email = *req.Email
	}
	if req.MedicalHistory != nil {
		patient.MedicalHistory = *req.MedicalHistory
	}

	if err := s.repo.Update(ctx, patient); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NotFound("patient", err)
		}
		return nil, apperrors.Persistence(fmt.Errorf("failed to update patient: %w", err))
	}
	if patient.IsCritical {
		s.cache.Delete(criticalKey)
	}

	s.logger.Info("Patient updated", "patient_id", id.String())
	return patient, nil
}

func trim(s *string) {
	if s != nil {
		*s = strings.TrimSpace(*s)
	}
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NotFound("patient", err)
		}
		return apperrors.Persistence(fmt.Errorf("failed to delete patient: %w", err))
	}
	s.cache.Delete(criticalKey)
	s.logger.Info("Patient deleted", "patient_id", id.String())
	return nil
}

// ListCritical reads the stored flags. The result is cached until the next
// status transition or the cache TTL, whichever comes first.
func (s *Service) ListCritical(ctx context.Context) ([]*model.Patient, error) {
	if cached, ok := s.cache.Get(criticalKey); ok {
		return cached.([]*model.Patient), nil
	}

	patients, err := s.repo.ListCritical(ctx)
	if err != nil {
		return nil, apperrors.Persistence(fmt.Errorf("failed to list critical patients: %w", err))
	}
	if patients == nil {
		patients = []*model.Patient{}
	}
	s.cache.SetDefault(criticalKey, patients)
	return patients, nil
}

func (s *Service) Statistics(ctx context.Context) (*model.PatientStatistics, error) {
	stats, err := s.repo.Statistics(ctx)
	if err != nil {
		return nil, apperrors.Persistence(fmt.Errorf("failed to get patient statistics: %w", err))
	}
	return stats, nil
}

// OnStatusChange drops the cached critical list.
func (s *Service) OnStatusChange(ctx context.Context, change model.PatientStatusChange) {
	s.cache.Delete(criticalKey)
}
