package gantry

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate is an interface that defines methods for validating values.
type Validate interface {
	IsValid(v any) error
	ExtractErrors(err error) map[string]string
}

// gValidate implements the Validate interface using go-playground/validator.
type gValidate struct {
	validator *validator.Validate
}

// NewValidate creates a validator with struct-tag based rules.
func NewValidate() Validate {
	return &gValidate{validator: validator.New()}
}

// IsValid checks the provided struct against its validation tags. Failures
// come back as a VALIDATION_ERROR carrying field-level details, so callers
// can pass the result straight to the transport boundary.
func (v *gValidate) IsValid(value any) error {
	err := v.validator.Struct(value)
	if err == nil {
		return nil
	}

	fields := v.ExtractErrors(err)
	details := make(map[string]any, len(fields))
	for field, msg := range fields {
		details[field] = msg
	}
	return NewError(KindValidation, WithDetails(details), WithCause(err))
}

// ExtractErrors converts validation errors into a map of field names to
// human-readable messages.
func (v *gValidate) ExtractErrors(err error) map[string]string {
	if err == nil {
		return nil
	}

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		result := make(map[string]string)
		for _, e := range validationErrors {
			result[e.Field()] = messageForTag(e)
		}
		return result
	}

	return map[string]string{"_error": err.Error()}
}

// messageForTag renders a readable message for a single failed rule.
func messageForTag(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", e.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	case "uuid", "uuidv4":
		return "must be a valid UUID"
	default:
		return fmt.Sprintf("failed validation rule %q", e.Tag())
	}
}
