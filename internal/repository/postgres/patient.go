package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/healthtrack-api/internal/model"
	"github.com/jwalitptl/healthtrack-api/internal/repository"
)

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(base BaseRepository) repository.PatientRepository {
	return &patientRepository{BaseRepository: base}
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (
			id, name, dob, contact, email, medical_history,
			is_critical, active, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, FALSE, TRUE, $7, $8, $9)`

	now := time.Now().UTC()
	patient.CreatedAt = now
	patient.UpdatedAt = now
	patient.IsCritical = false
	patient.Active = true

	_, err := r.db.ExecContext(ctx, query,
		patient.ID,
		patient.Name,
		patient.DateOfBirth,
		patient.Contact,
		patient.Email,
		patient.MedicalHistory,
		patient.CreatedBy,
		patient.CreatedAt,
		patient.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `SELECT * FROM patients WHERE id = $1 AND active`
	var patient model.Patient
	if err := r.getOne(ctx, "get patient", &patient, query, id); err != nil {
		return nil, err
	}
	return &patient, nil
}

func (r *patientRepository) List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, int, error) {
	where := []string{"active"}
	args := []interface{}{}
	argCount := 0

	var page model.Pagination
	if filters != nil {
		page = filters.Pagination
		if search := strings.TrimSpace(filters.Search); search != "" {
			argCount++
			where = append(where, fmt.Sprintf("name ILIKE '%%' || $%d || '%%'", argCount))
			args = append(args, search)
		}
		if filters.Critical != nil {
			argCount++
			where = append(where, fmt.Sprintf("is_critical = $%d", argCount))
			args = append(args, *filters.Critical)
		}
	}
	page = page.Normalize()
	clause := strings.Join(where, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM patients WHERE "+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count patients: %w", err)
	}

	query := fmt.Sprintf(`SELECT * FROM patients WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		clause, argCount+1, argCount+2)
	args = append(args, page.PageSize, page.Offset())

	var patients []*model.Patient
	if err := r.db.SelectContext(ctx, &patients, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, total, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	query := `
		UPDATE patients SET
			name = $1, dob = $2, contact = $3, email = $4, medical_history = $5, updated_at = $6
		WHERE id = $7 AND active`

	patient.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query,
		patient.Name,
		patient.DateOfBirth,
		patient.Contact,
		patient.Email,
		patient.MedicalHistory,
		patient.UpdatedAt,
		patient.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *patientRepository) ExistsActive(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM patients WHERE id = $1 AND active)`
	if err := r.db.GetContext(ctx, &exists, query, id); err != nil {
		return false, fmt.Errorf("failed to check patient: %w", err)
	}
	return exists, nil
}

func (r *patientRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE patients SET active = FALSE, updated_at = $1 WHERE id = $2 AND active`
	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *patientRepository) ListCritical(ctx context.Context) ([]*model.Patient, error) {
	query := `SELECT * FROM patients WHERE active AND is_critical ORDER BY updated_at DESC`
	var patients []*model.Patient
	if err := r.db.SelectContext(ctx, &patients, query); err != nil {
		return nil, fmt.Errorf("failed to list critical patients: %w", err)
	}
	return patients, nil
}

func (r *patientRepository) ListCriticalIDs(ctx context.Context) ([]uuid.UUID, error) {
	query := `SELECT id FROM patients WHERE active AND is_critical`
	var ids []uuid.UUID
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("failed to list critical patient ids: %w", err)
	}
	return ids, nil
}

func (r *patientRepository) Statistics(ctx context.Context) (*model.PatientStatistics, error) {
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE is_critical) AS critical
		FROM patients
		WHERE active`

	var stats model.PatientStatistics
	if err := r.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("failed to get patient statistics: %w", err)
	}
	stats.Stable = stats.Total - stats.Critical
	return &stats, nil
}

func (r *patientRepository) SetCritical(ctx context.Context, id uuid.UUID, critical bool) (bool, error) {
	query := `
		UPDATE patients SET is_critical = $1, updated_at = $2
		WHERE id = $3 AND active AND is_critical <> $1`

	result, err := r.db.ExecContext(ctx, query, critical, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("failed to update patient status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows > 0, nil
}
