package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jwalitptl/healthtrack-api/pkg/vitals"
)

// Reading is one submitted vital-sign value. IsCritical and Reasons are set
// once by the classifier when the reading is created.
type Reading struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	PatientID      uuid.UUID       `db:"patient_id" json:"patient_id"`
	TestType       vitals.TestType `db:"test_type" json:"test_type"`
	Value          string          `db:"value" json:"value"`
	Symptoms       pq.StringArray  `db:"symptoms" json:"symptoms"`
	TreatmentNotes string          `db:"treatment_notes" json:"treatment_notes"`
	IsCritical     bool            `db:"is_critical" json:"is_critical"`
	Reasons        pq.StringArray  `db:"reasons" json:"reasons"`
	RecordedAt     time.Time       `db:"recorded_at" json:"recorded_at"`
	RecordedBy     *uuid.UUID      `db:"recorded_by" json:"recorded_by,omitempty"`
	Active         bool            `db:"active" json:"-"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

type ReadingInput struct {
	TestType vitals.TestType `json:"test_type" validate:"testtype"`
	Value    string          `json:"value" validate:"notblank"`
}

type SubmitReadingsRequest struct {
	PatientID      uuid.UUID      `json:"patient_id" validate:"required"`
	Readings       []ReadingInput `json:"readings" validate:"required,min=1,dive"`
	Symptoms       []string       `json:"symptoms"`
	TreatmentNotes string         `json:"treatment_notes"`
}

type ReadingFilters struct {
	Pagination
	TestType  vitals.TestType `form:"test_type"`
	Critical  *bool           `form:"is_critical"`
	StartDate time.Time       `form:"start_date" time_format:"2006-01-02T15:04:05Z07:00"`
	EndDate   time.Time       `form:"end_date" time_format:"2006-01-02T15:04:05Z07:00"`
}

type ReadingStatistics struct {
	TestType         vitals.TestType `db:"test_type" json:"test_type"`
	Count            int             `db:"count" json:"count"`
	CriticalCount    int             `db:"critical_count" json:"critical_count"`
	LatestRecordedAt time.Time       `db:"latest_recorded_at" json:"latest_recorded_at"`
}
