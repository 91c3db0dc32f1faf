package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrApplicationNotFound is returned when the referenced application does not exist
	ErrApplicationNotFound = errors.New("application not found")

	// ErrReferenceNotFound is returned when the referenced reference does not
	// exist on the application
	ErrReferenceNotFound = errors.New("reference not found")

	// ErrHomeVisitNotFound is returned when the referenced home visit does
	// not exist on the application
	ErrHomeVisitNotFound = errors.New("home visit not found")
)

// FieldError describes a single invalid input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports malformed or missing input. It is raised before
// any side effect, so a validation failure never reaches the workflow
// engine's mutation path or the timeline store.
type ValidationError struct {
	Fields []FieldError
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = fmt.Sprintf("%s: %s", f.Field, f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// NewValidationError builds a single-field validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// Add appends another invalid field
func (e *ValidationError) Add(field, message string) *ValidationError {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
	return e
}

// AsValidationError unwraps err into a *ValidationError if it is one
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
