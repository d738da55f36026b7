// Package validation wraps a shared go-playground/validator instance for
// request DTOs. The instance is a singleton because it caches struct
// metadata.
package validation

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/eventpilot/be-approvals/internal/apperrors"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Get returns the shared validator.
func Get() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Struct validates a request struct, translating the first failure into a
// coded validation error with the offending field name.
func Struct(s any) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}

	if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return apperrors.InvalidInput(strings.ToLower(fe.Field()), describe(fe))
	}
	return apperrors.Wrap(err, apperrors.CodeValidation, "invalid request")
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "email":
		return "must be a valid email address"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
