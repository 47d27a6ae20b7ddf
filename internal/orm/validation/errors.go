package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/conduit-lang/entityorm/internal/orm/schema"
)

// AttributeError is a validation error of a single attribute
type AttributeError interface {
	error
	// Attribute returns the attribute that failed validation
	Attribute() schema.Attribute
}

type attributeError struct {
	attribute schema.Attribute
	message   string
}

func (e attributeError) Error() string               { return e.message }
func (e attributeError) Attribute() schema.Attribute { return e.attribute }

// NullValidationError reports a missing value of a non-nullable attribute
type NullValidationError struct {
	attributeError
}

// RangeValidationError reports a numeric value outside the attribute range
type RangeValidationError struct {
	attributeError
	Value   any
	Minimum float64
	Maximum float64
}

// LengthValidationError reports a string value exceeding the maximum length
type LengthValidationError struct {
	attributeError
	Value     string
	MaxLength int
}

// ItemValidationError reports a value not among the items of an enumerated attribute
type ItemValidationError struct {
	attributeError
	Value any
}

// ValidationErrors contains the validation errors of an entity
type ValidationErrors struct {
	Fields map[string][]string `json:"fields"`
	errs   []AttributeError
}

// NewValidationErrors creates a new ValidationErrors instance
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Fields: make(map[string][]string),
	}
}

// Add adds a validation error of an attribute
func (ve *ValidationErrors) Add(err AttributeError) {
	if ve.Fields == nil {
		ve.Fields = make(map[string][]string)
	}
	name := err.Attribute().Name()
	ve.Fields[name] = append(ve.Fields[name], err.Error())
	ve.errs = append(ve.errs, err)
}

// HasErrors returns true if there are any validation errors
func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.errs) > 0
}

// Count returns the total number of validation errors
func (ve *ValidationErrors) Count() int {
	return len(ve.errs)
}

// Errors returns the validation errors in the order they were added
func (ve *ValidationErrors) Errors() []AttributeError {
	return append([]AttributeError(nil), ve.errs...)
}

// Unwrap returns the validation errors, for errors.As and errors.Is
func (ve *ValidationErrors) Unwrap() []error {
	errs := make([]error, len(ve.errs))
	for i, err := range ve.errs {
		errs[i] = err
	}
	return errs
}

// Error implements the error interface
func (ve *ValidationErrors) Error() string {
	if !ve.HasErrors() {
		return "validation failed"
	}

	messages := make([]string, len(ve.errs))
	for i, err := range ve.errs {
		messages[i] = fmt.Sprintf("  - %s: %s", err.Attribute().Name(), err.Error())
	}

	if len(messages) == 1 {
		return fmt.Sprintf("validation failed: %s", strings.TrimPrefix(messages[0], "  - "))
	}

	return fmt.Sprintf("validation failed:\n%s", strings.Join(messages, "\n"))
}

// MarshalJSON implements json.Marshaler for custom JSON serialization
func (ve *ValidationErrors) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Error  string              `json:"error"`
		Fields map[string][]string `json:"fields"`
	}{
		Error:  "validation_failed",
		Fields: ve.Fields,
	})
}
