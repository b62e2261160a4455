package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/healthtrack-api/internal/model"
	"github.com/jwalitptl/healthtrack-api/internal/repository"
)

type readingRepository struct {
	BaseRepository
}

func NewReadingRepository(base BaseRepository) repository.ReadingRepository {
	return &readingRepository{BaseRepository: base}
}

func (r *readingRepository) CreateBatch(ctx context.Context, readings []*model.Reading) error {
	query := `
		INSERT INTO readings (
			id, patient_id, test_type, value, symptoms, treatment_notes,
			is_critical, reasons, recorded_at, recorded_by, active, created_at, updated_at
		) VALUES (
			:id, :patient_id, :test_type, :value, :symptoms, :treatment_notes,
			:is_critical, :reasons, :recorded_at, :recorded_by, TRUE, :created_at, :updated_at
		)`

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, reading := range readings {
			if _, err := tx.NamedExecContext(ctx, query, reading); err != nil {
				return fmt.Errorf("failed to create reading: %w", err)
			}
		}
		return nil
	})
}

func (r *readingRepository) Get(ctx context.Context, id uuid.UUID) (*model.Reading, error) {
	query := `SELECT * FROM readings WHERE id = $1 AND active`
	var reading model.Reading
	if err := r.getOne(ctx, "get reading", &reading, query, id); err != nil {
		return nil, err
	}
	return &reading, nil
}

func (r *readingRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, filters *model.ReadingFilters) ([]*model.Reading, int, error) {
	where := []string{"patient_id = $1", "active"}
	args := []interface{}{patientID}
	argCount := 1

	page := model.Pagination{}
	if filters != nil {
		page = filters.Pagination
		if filters.TestType != "" {
			argCount++
			where = append(where, fmt.Sprintf("test_type = $%d", argCount))
			args = append(args, filters.TestType)
		}
		if filters.Critical != nil {
			argCount++
			where = append(where, fmt.Sprintf("is_critical = $%d", argCount))
			args = append(args, *filters.Critical)
		}
		if !filters.StartDate.IsZero() {
			argCount++
			where = append(where, fmt.Sprintf("recorded_at >= $%d", argCount))
			args = append(args, filters.StartDate)
		}
		if !filters.EndDate.IsZero() {
			argCount++
			where = append(where, fmt.Sprintf("recorded_at <= $%d", argCount))
			args = append(args, filters.EndDate)
		}
	}
	page = page.Normalize()
	clause := strings.Join(where, " AND ")

	var total int
	countQuery := "SELECT COUNT(*) FROM readings WHERE " + clause
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count readings: %w", err)
	}

	query := fmt.Sprintf(`SELECT * FROM readings WHERE %s ORDER BY recorded_at DESC LIMIT $%d OFFSET $%d`,
		clause, argCount+1, argCount+2)
	args = append(args, page.PageSize, page.Offset())

	var readings []*model.Reading
	if err := r.db.SelectContext(ctx, &readings, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list readings: %w", err)
	}
	return readings, total, nil
}

func (r *readingRepository) ListCriticalSince(ctx context.Context, since time.Time) ([]*model.Reading, error) {
	query := `
		SELECT * FROM readings
		WHERE active AND is_critical AND recorded_at >= $1
		ORDER BY recorded_at DESC`

	var readings []*model.Reading
	if err := r.db.SelectContext(ctx, &readings, query, since); err != nil {
		return nil, fmt.Errorf("failed to list critical readings: %w", err)
	}
	return readings, nil
}

func (r *readingRepository) HasCriticalSince(ctx context.Context, patientID uuid.UUID, since time.Time) (bool, error) {
	query := `
		SELECT EXISTS(
			SELECT 1 FROM readings
			WHERE patient_id = $1 AND active AND is_critical AND recorded_at >= $2
		)`

	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, patientID, since); err != nil {
		return false, fmt.Errorf("failed to query critical readings: %w", err)
	}
	return exists, nil
}

func (r *readingRepository) ListPatientIDsWithCriticalSince(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT r.patient_id
		FROM readings r
		JOIN patients p ON p.id = r.patient_id
		WHERE r.active AND r.is_critical AND r.recorded_at >= $1 AND p.active`

	var ids []uuid.UUID
	if err := r.db.SelectContext(ctx, &ids, query, since); err != nil {
		return nil, fmt.Errorf("failed to list patients with critical readings: %w", err)
	}
	return ids, nil
}

func (r *readingRepository) Statistics(ctx context.Context, patientID uuid.UUID) ([]*model.ReadingStatistics, error) {
	query := `
		SELECT
			test_type,
			COUNT(*) AS count,
			COUNT(*) FILTER (WHERE is_critical) AS critical_count,
			MAX(recorded_at) AS latest_recorded_at
		FROM readings
		WHERE patient_id = $1 AND active
		GROUP BY test_type
		ORDER BY test_type`

	var stats []*model.ReadingStatistics
	if err := r.db.SelectContext(ctx, &stats, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to get reading statistics: %w", err)
	}
	return stats, nil
}

func (r *readingRepository) SoftDelete(ctx context.Context, id uuid.UUID) (*model.Reading, error) {
	query := `
		UPDATE readings SET active = FALSE, updated_at = $1
		WHERE id = $2 AND active
		RETURNING *`

	var reading model.Reading
	if err := r.getOne(ctx, "delete reading", &reading, query, time.Now().UTC(), id); err != nil {
		return nil, err
	}
	return &reading, nil
}
