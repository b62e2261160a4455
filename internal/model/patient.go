package model

import (
	"time"

	"github.com/google/uuid"
)

// Patient is the owner of readings. IsCritical is derived from the patient's
// recent readings and is only ever written by the status aggregator.
type Patient struct {
	Base
	Name           string     `db:"name" json:"name"`
	DateOfBirth    time.Time  `db:"dob" json:"dob"`
	Contact        string     `db:"contact" json:"contact"`
	Email          string     `db:"email" json:"email"`
	MedicalHistory string     `db:"medical_history" json:"medical_history"`
	IsCritical     bool       `db:"is_critical" json:"is_critical"`
	Active         bool       `db:"active" json:"active"`
	CreatedBy      *uuid.UUID `db:"created_by" json:"created_by,omitempty"`
}

// CreatePatientRequest intentionally has no is_critical field.
type CreatePatientRequest struct {
	Name           string    `json:"name" validate:"required,min=3"`
	DateOfBirth    time.Time `json:"dob" validate:"pastdate"`
	Contact        string    `json:"contact" validate:"required,len=10,numeric"`
	Email          string    `json:"email" validate:"omitempty,email"`
	MedicalHistory string    `json:"medical_history" validate:"notblank"`
}

// UpdatePatientRequest changes demographics only. Nil fields are left as
// they are, present ones are validated like on create. The critical flag
// cannot be set through it.
type UpdatePatientRequest struct {
	Name           *string    `json:"name" validate:"omitempty,min=3"`
	DateOfBirth    *time.Time `json:"dob" validate:"omitempty,pastdate"`
	Contact        *string    `json:"contact" validate:"omitempty,len=10,numeric"`
	Email          *string    `json:"email" validate:"omitempty,email"`
	MedicalHistory *string    `json:"medical_history" validate:"omitempty,notblank"`
}

type PatientFilters struct {
	Pagination
	Search   string `form:"search"`
	Critical *bool  `form:"is_critical"`
}

type PatientStatistics struct {
	Total    int `json:"total_patients" db:"total"`
	Critical int `json:"critical_patients" db:"critical"`
	Stable   int `json:"stable_patients"`
}

// PatientStatusChange is emitted whenever a reconcile flips IsCritical.
type PatientStatusChange struct {
	PatientID  uuid.UUID `json:"patient_id"`
	IsCritical bool      `json:"is_critical"`
	ChangedAt  time.Time `json:"changed_at"`
}

// MessageKey partitions status events by patient.
func (c PatientStatusChange) MessageKey() string {
	return c.PatientID.String()
}
