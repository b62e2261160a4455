// Package memory keeps patients and readings in process memory. It backs the
// "memory" database driver and the service tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/jwalitptl/healthtrack-api/internal/model"
	"github.com/jwalitptl/healthtrack-api/internal/repository"
	"github.com/jwalitptl/healthtrack-api/pkg/vitals"
)

type Store struct {
	mu       sync.RWMutex
	patients map[uuid.UUID]*model.Patient
	readings map[uuid.UUID]*model.Reading

	// FailNextBatch makes the next CreateBatch return this error without
	// writing anything.
	FailNextBatch error
}

func NewStore() *Store {
	return &Store{
		patients: make(map[uuid.UUID]*model.Patient),
		readings: make(map[uuid.UUID]*model.Reading),
	}
}

func (s *Store) Patients() repository.PatientRepository { return &patientRepository{s} }
func (s *Store) Readings() repository.ReadingRepository { return &readingRepository{s} }

func copyPatient(p *model.Patient) *model.Patient {
	c := *p
	return &c
}

func copyReading(r *model.Reading) *model.Reading {
	c := *r
	c.Symptoms = append([]string(nil), r.Symptoms...)
	c.Reasons = append([]string(nil), r.Reasons...)
	return &c
}

type patientRepository struct{ s *Store }

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := time.Now().UTC()
	patient.CreatedAt = now
	patient.UpdatedAt = now
	patient.IsCritical = false
	patient.Active = true
	r.s.patients[patient.ID] = copyPatient(patient)
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.patients[id]
	if !ok || !p.Active {
		return nil, repository.ErrNotFound
	}
	return copyPatient(p), nil
}

func (r *patientRepository) List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if filters == nil {
		filters = &model.PatientFilters{}
	}
	search := strings.ToLower(strings.TrimSpace(filters.Search))
	matched := lo.Filter(lo.Values(r.s.patients), func(p *model.Patient, _ int) bool {
		switch {
		case !p.Active:
			return false
		case search != "" && !strings.Contains(strings.ToLower(p.Name), search):
			return false
		case filters.Critical != nil && p.IsCritical != *filters.Critical:
			return false
		}
		return true
	})
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	page := filters.Pagination.Normalize()
	total := len(matched)
	start := min(page.Offset(), total)
	end := min(start+page.PageSize, total)

	out := lo.Map(matched[start:end], func(p *model.Patient, _ int) *model.Patient { return copyPatient(p) })
	return out, total, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.patients[patient.ID]
	if !ok || !p.Active {
		return repository.ErrNotFound
	}
	p.Name = patient.Name
	p.DateOfBirth = patient.DateOfBirth
	p.Contact = patient.Contact
	p.Email = patient.Email
	p.MedicalHistory = patient.MedicalHistory
	p.UpdatedAt = time.Now().UTC()
	patient.UpdatedAt = p.UpdatedAt
	return nil
}

func (r *patientRepository) ExistsActive(ctx context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.patients[id]
	return ok && p.Active, nil
}

func (r *patientRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.patients[id]
	if !ok || !p.Active {
		return repository.ErrNotFound
	}
	p.Active = false
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (r *patientRepository) critical() []*model.Patient {
	return lo.Filter(lo.Values(r.s.patients), func(p *model.Patient, _ int) bool {
		return p.Active && p.IsCritical
	})
}

func (r *patientRepository) ListCritical(ctx context.Context) ([]*model.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := lo.Map(r.critical(), func(p *model.Patient, _ int) *model.Patient { return copyPatient(p) })
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (r *patientRepository) ListCriticalIDs(ctx context.Context) ([]uuid.UUID, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return lo.Map(r.critical(), func(p *model.Patient, _ int) uuid.UUID { return p.ID }), nil
}

func (r *patientRepository) Statistics(ctx context.Context) (*model.PatientStatistics, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stats := &model.PatientStatistics{}
	for _, p := range r.s.patients {
		if !p.Active {
			continue
		}
		stats.Total++
		if p.IsCritical {
			stats.Critical++
		}
	}
	stats.Stable = stats.Total - stats.Critical
	return stats, nil
}

func (r *patientRepository) SetCritical(ctx context.Context, id uuid.UUID, critical bool) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.patients[id]
	if !ok || !p.Active || p.IsCritical == critical {
		return false, nil
	}
	p.IsCritical = critical
	p.UpdatedAt = time.Now().UTC()
	return true, nil
}

type readingRepository struct{ s *Store }

func (r *readingRepository) CreateBatch(ctx context.Context, readings []*model.Reading) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if err := r.s.FailNextBatch; err != nil {
		r.s.FailNextBatch = nil
		return err
	}
	for _, reading := range readings {
		stored := copyReading(reading)
		stored.Active = true
		r.s.readings[reading.ID] = stored
	}
	return nil
}

func (r *readingRepository) Get(ctx context.Context, id uuid.UUID) (*model.Reading, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	reading, ok := r.s.readings[id]
	if !ok || !reading.Active {
		return nil, repository.ErrNotFound
	}
	return copyReading(reading), nil
}

func newestFirst(readings []*model.Reading) {
	sort.Slice(readings, func(i, j int) bool { return readings[i].RecordedAt.After(readings[j].RecordedAt) })
}

func (r *readingRepository) ListByPatient(ctx context.Context, patientID uuid.UUID, filters *model.ReadingFilters) ([]*model.Reading, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	if filters == nil {
		filters = &model.ReadingFilters{}
	}
	matched := lo.Filter(lo.Values(r.s.readings), func(rd *model.Reading, _ int) bool {
		switch {
		case rd.PatientID != patientID || !rd.Active:
			return false
		case filters.TestType != "" && rd.TestType != filters.TestType:
			return false
		case filters.Critical != nil && rd.IsCritical != *filters.Critical:
			return false
		case !filters.StartDate.IsZero() && rd.RecordedAt.Before(filters.StartDate):
			return false
		case !filters.EndDate.IsZero() && rd.RecordedAt.After(filters.EndDate):
			return false
		}
		return true
	})
	newestFirst(matched)

	page := filters.Pagination.Normalize()
	total := len(matched)
	start := min(page.Offset(), total)
	end := min(start+page.PageSize, total)

	out := lo.Map(matched[start:end], func(rd *model.Reading, _ int) *model.Reading { return copyReading(rd) })
	return out, total, nil
}

func (r *readingRepository) ListCriticalSince(ctx context.Context, since time.Time) ([]*model.Reading, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	matched := lo.FilterMap(lo.Values(r.s.readings), func(rd *model.Reading, _ int) (*model.Reading, bool) {
		if rd.Active && rd.IsCritical && !rd.RecordedAt.Before(since) {
			return copyReading(rd), true
		}
		return nil, false
	})
	newestFirst(matched)
	return matched, nil
}

func (r *readingRepository) HasCriticalSince(ctx context.Context, patientID uuid.UUID, since time.Time) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return lo.SomeBy(lo.Values(r.s.readings), func(rd *model.Reading) bool {
		return rd.PatientID == patientID && rd.Active && rd.IsCritical && !rd.RecordedAt.Before(since)
	}), nil
}

func (r *readingRepository) ListPatientIDsWithCriticalSince(ctx context.Context, since time.Time) ([]uuid.UUID, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ids := lo.FilterMap(lo.Values(r.s.readings), func(rd *model.Reading, _ int) (uuid.UUID, bool) {
		p, ok := r.s.patients[rd.PatientID]
		return rd.PatientID, ok && p.Active && rd.Active && rd.IsCritical && !rd.RecordedAt.Before(since)
	})
	return lo.Uniq(ids), nil
}

func (r *readingRepository) Statistics(ctx context.Context, patientID uuid.UUID) ([]*model.ReadingStatistics, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	byType := make(map[vitals.TestType]*model.ReadingStatistics)
	for _, rd := range r.s.readings {
		if rd.PatientID != patientID || !rd.Active {
			continue
		}
		st, ok := byType[rd.TestType]
		if !ok {
			st = &model.ReadingStatistics{TestType: rd.TestType}
			byType[rd.TestType] = st
		}
		st.Count++
		if rd.IsCritical {
			st.CriticalCount++
		}
		if rd.RecordedAt.After(st.LatestRecordedAt) {
			st.LatestRecordedAt = rd.RecordedAt
		}
	}

	out := lo.Values(byType)
	sort.Slice(out, func(i, j int) bool { return out[i].TestType < out[j].TestType })
	return out, nil
}

func (r *readingRepository) SoftDelete(ctx context.Context, id uuid.UUID) (*model.Reading, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	reading, ok := r.s.readings[id]
	if !ok || !reading.Active {
		return nil, repository.ErrNotFound
	}
	reading.Active = false
	reading.UpdatedAt = time.Now().UTC()
	return copyReading(reading), nil
}
