package validator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/jwalitptl/healthtrack-api/pkg/errors"
	"github.com/jwalitptl/healthtrack-api/pkg/vitals"
)

type item struct {
	TestType vitals.TestType `json:"test_type" validate:"testtype"`
	Value    string          `json:"value" validate:"notblank"`
}

type batch struct {
	Items []item    `json:"items" validate:"required,min=1,dive"`
	Born  time.Time `json:"born" validate:"pastdate"`
}

func TestValidateListsEveryField(t *testing.T) {
	v := New()
	err := v.Validate(&batch{
		Items: []item{
			{TestType: "Glucose", Value: "5"},
			{TestType: vitals.TestTypeHeartRate, Value: "  "},
		},
		Born: time.Now().Add(time.Hour),
	})
	require.Error(t, err)

	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.ErrValidation, appErr.Code)

	fields := map[string]string{}
	for _, f := range appErr.Fields {
		fields[f.Field] = f.Message
	}
	assert.Len(t, fields, 3)
	assert.Contains(t, fields["items[0].test_type"], "must be one of")
	assert.Equal(t, "is required", fields["items[1].value"])
	assert.Equal(t, "must be in the past", fields["born"])
}

func TestValidateEmptyBatch(t *testing.T) {
	v := New()
	born := time.Now().Add(-time.Hour)

	err := v.Validate(&batch{Born: born})
	appErr, ok := apperrors.As(err)
	require.True(t, ok)
	require.Len(t, appErr.Fields, 1)
	assert.Equal(t, "items", appErr.Fields[0].Field)

	err = v.Validate(&batch{Items: []item{}, Born: born})
	appErr, ok = apperrors.As(err)
	require.True(t, ok)
	require.Len(t, appErr.Fields, 1)
	assert.Equal(t, "must contain at least 1 item(s)", appErr.Fields[0].Message)
}

func TestValidatePasses(t *testing.T) {
	v := New()
	err := v.Validate(&batch{
		Items: []item{{TestType: vitals.TestTypeBloodPressure, Value: "120/80"}},
		Born:  time.Now().Add(-24 * time.Hour),
	})
	assert.NoError(t, err)
}
