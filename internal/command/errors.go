package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrValidation is the sentinel wrapped by every ValidationError.
var ErrValidation = errors.New("validation failed")

// ErrRollback is returned when a compound command could not undo the
// steps it had already applied. The subject may be partly changed.
var ErrRollback = errors.New("rollback failed")

// FieldError describes one rejected field.
type FieldError struct {
	Field   string
	Rule    string
	Value   any
	Message string
}

// ValidationError reports input rejected before any state was touched.
type ValidationError struct {
	Action string
	Fields []FieldError
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: invalid input", e.Action)
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Message
	}
	return fmt.Sprintf("%s: %s", e.Action, strings.Join(parts, "; "))
}

// Unwrap returns ErrValidation so callers can use errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Field returns the error for the named field, if any.
func (e *ValidationError) Field(name string) (FieldError, bool) {
	for _, f := range e.Fields {
		if f.Field == name {
			return f, true
		}
	}
	return FieldError{}, false
}

// Invalid builds a single-field ValidationError.
func Invalid(action, field, rule string, value any, message string) *ValidationError {
	return &ValidationError{
		Action: action,
		Fields: []FieldError{{Field: field, Rule: rule, Value: value, Message: message}},
	}
}

// FromValidator converts validator errors into a ValidationError.
// Errors of any other type are returned unchanged.
func FromValidator(action string, err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	ve := &ValidationError{Action: action}
	for _, fe := range verrs {
		ve.Fields = append(ve.Fields, FieldError{
			Field:   fe.Field(),
			Rule:    fe.Tag(),
			Value:   fe.Value(),
			Message: describeRule(fe),
		})
	}
	return ve
}

func describeRule(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a UUID", fe.Field())
	default:
		return fmt.Sprintf("%s failed %q (value %v)", fe.Field(), fe.Tag(), fe.Value())
	}
}
