package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/healthtrack-api/internal/model"
)

// ErrNotFound is returned when a row does not exist or is inactive.
var ErrNotFound = errors.New("not found")

// All repository interfaces in one file
type (
	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, int, error)
		// Update writes demographic fields only; is_critical is never touched.
		Update(ctx context.Context, patient *model.Patient) error
		ExistsActive(ctx context.Context, id uuid.UUID) (bool, error)
		SoftDelete(ctx context.Context, id uuid.UUID) error
		ListCritical(ctx context.Context) ([]*model.Patient, error)
		ListCriticalIDs(ctx context.Context) ([]uuid.UUID, error)
		Statistics(ctx context.Context) (*model.PatientStatistics, error)
		// SetCritical writes the flag of an active patient only if it differs
		// from the stored value and reports whether a row changed.
		SetCritical(ctx context.Context, id uuid.UUID, critical bool) (bool, error)
	}

	ReadingRepository interface {
		// CreateBatch persists every reading or none of them.
		CreateBatch(ctx context.Context, readings []*model.Reading) error
		Get(ctx context.Context, id uuid.UUID) (*model.Reading, error)
		ListByPatient(ctx context.Context, patientID uuid.UUID, filters *model.ReadingFilters) ([]*model.Reading, int, error)
		ListCriticalSince(ctx context.Context, since time.Time) ([]*model.Reading, error)
		HasCriticalSince(ctx context.Context, patientID uuid.UUID, since time.Time) (bool, error)
		// ListPatientIDsWithCriticalSince returns each active patient owning an
		// active critical reading recorded at or after since.
		ListPatientIDsWithCriticalSince(ctx context.Context, since time.Time) ([]uuid.UUID, error)
		Statistics(ctx context.Context, patientID uuid.UUID) ([]*model.ReadingStatistics, error)
		SoftDelete(ctx context.Context, id uuid.UUID) (*model.Reading, error)
	}
)
