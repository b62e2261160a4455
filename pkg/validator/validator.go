package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	apperrors "github.com/jwalitptl/healthtrack-api/pkg/errors"
	"github.com/jwalitptl/healthtrack-api/pkg/vitals"
)

// Validator checks request structs against their `validate` tags and
// reports every failing field at once.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})

	mustRegister(v, "notblank", validators.NotBlank)
	mustRegister(v, "testtype", func(fl validator.FieldLevel) bool {
		t, ok := fl.Field().Interface().(vitals.TestType)
		return ok && t.Valid()
	})
	mustRegister(v, "pastdate", func(fl validator.FieldLevel) bool {
		t, ok := fl.Field().Interface().(time.Time)
		return ok && !t.IsZero() && t.Before(time.Now())
	})

	return &Validator{validate: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("failed to register %s validator: %v", tag, err))
	}
}

// Validate returns nil or an *apperrors.AppError with code ErrValidation.
func (v *Validator) Validate(obj interface{}) error {
	err := v.validate.Struct(obj)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Internal(fmt.Errorf("failed to validate: %w", err))
	}

	fields := make([]apperrors.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperrors.FieldError{
			Field:   fieldPath(fe.Namespace()),
			Message: message(fe),
		})
	}
	return apperrors.Validation(fields...)
}

// fieldPath drops the leading struct name: "Req.readings[0].value" -> "readings[0].value".
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s characters long", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters long", fe.Param())
	case "numeric":
		return "must contain only digits"
	case "email":
		return "must be a valid email"
	case "testtype":
		names := make([]string, 0, len(vitals.TestTypes))
		for _, t := range vitals.TestTypes {
			names = append(names, string(t))
		}
		return fmt.Sprintf("must be one of %s", strings.Join(names, ", "))
	case "pastdate":
		return "must be in the past"
	default:
		return fmt.Sprintf("failed on %s", fe.Tag())
	}
}
