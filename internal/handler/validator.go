package handler

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/iliyamo/wetwo-backend/internal/apperror"
	"github.com/iliyamo/wetwo-backend/internal/model"
)

const (
	msgInvalidRequest = "Invalid request data"
	msgDateFormat     = "Must be a date in YYYY-MM-DD format"
)

// Validator implements echo.Validator with go-playground/validator. Field
// names in error details are the JSON names.
type Validator struct {
	validate *validator.Validate
}

// NewValidator registers the custom "date" tag (YYYY-MM-DD) and "notblank",
// which rejects whitespace-only strings.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("date", validateDate)
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	return &Validator{validate: v}
}

// Validate returns BAD_REQUEST with one detail entry per failing field.
func (v *Validator) Validate(i any) error {
	if err := v.validate.Struct(i); err != nil {
		return apperror.BadRequest(msgInvalidRequest, FormatValidationError(err)).WithCause(err)
	}
	return nil
}

// FormatValidationError turns validator errors into a field -> message map.
func FormatValidationError(err error) map[string]string {
	errs := make(map[string]string)

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		errs["error"] = "Invalid request format"
		return errs
	}

	for _, e := range validationErrors {
		field := e.Field()
		switch e.Tag() {
		case "required", "notblank":
			errs[field] = "This field is required"
		case "email":
			errs[field] = "Invalid email format"
		case "url":
			errs[field] = "Invalid URL"
		case "uuid", "uuid4":
			errs[field] = "Invalid id"
		case "date":
			errs[field] = msgDateFormat
		case "max":
			errs[field] = fmt.Sprintf("Must be at most %s", e.Param())
		case "min":
			errs[field] = fmt.Sprintf("Must be at least %s", e.Param())
		default:
			errs[field] = "Invalid value"
		}
	}
	return errs
}

func validateDate(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	_, err := model.ParseDate(s)
	return err == nil
}
