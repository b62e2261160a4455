package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(Validation(FieldError{Field: "readings", Message: "required"})))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(NotFound("patient", nil)))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(Persistence(fmt.Errorf("db down"))))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(Unauthorized(nil)))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(fmt.Errorf("plain")))
}

func TestIsFollowsWrapping(t *testing.T) {
	err := fmt.Errorf("failed to submit readings: %w", NotFound("patient", nil))
	assert.True(t, Is(err, ErrNotFound))
	assert.False(t, Is(err, ErrValidation))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(err))
}

func TestValidationErrorListsEveryField(t *testing.T) {
	err := Validation(
		FieldError{Field: "readings[0].testType", Message: "unknown test type"},
		FieldError{Field: "readings[1].value", Message: "is required"},
	)
	assert.Equal(t, "validation failed (readings[0].testType: unknown test type; readings[1].value: is required)", err.Error())
}
