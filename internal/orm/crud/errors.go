package crud

import (
	"errors"
	"fmt"
	"strings"

	"github.com/conduit-lang/entityorm/internal/orm/database"
	"github.com/conduit-lang/entityorm/internal/orm/entity"
	"github.com/conduit-lang/entityorm/internal/orm/schema"
	"github.com/conduit-lang/entityorm/internal/orm/validation"
)

// Common CRUD error types
var (
	// ErrReadOnly is returned when modifying an entity type defined as read only
	ErrReadOnly = errors.New("entity type is read only")

	// ErrRecordModified is returned when a record was modified or deleted by another transaction
	ErrRecordModified = errors.New("record was modified by another transaction")

	// ErrMultipleRecords is returned when a single record was expected but more were found
	ErrMultipleRecords = errors.New("multiple records found")

	// ErrNotFound is returned when a record is not found
	ErrNotFound = database.ErrNotFound

	// ErrUniqueViolation is returned when a unique constraint is violated
	ErrUniqueViolation = database.ErrUniqueViolation

	// ErrForeignKeyViolation is returned when a foreign key constraint is violated
	ErrForeignKeyViolation = database.ErrForeignKeyViolation
)

// RecordModifiedError describes a record changed by another transaction
// since it was selected. Current is nil when the record has been deleted.
type RecordModifiedError struct {
	Entity   entity.Entity
	Current  entity.Entity
	Modified []schema.Attribute
}

// Error implements the error interface
func (e *RecordModifiedError) Error() string {
	if e.Current == nil {
		return fmt.Sprintf("%s: %s has been deleted", ErrRecordModified, e.Entity.OriginalPrimaryKey())
	}
	names := make([]string, len(e.Modified))
	for i, attribute := range e.Modified {
		names[i] = attribute.Name()
	}
	return fmt.Sprintf("%s: %s, modified: %s", ErrRecordModified, e.Entity.OriginalPrimaryKey(), strings.Join(names, ", "))
}

// Unwrap returns ErrRecordModified
func (e *RecordModifiedError) Unwrap() error {
	return ErrRecordModified
}

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUniqueViolation returns true if the error is ErrUniqueViolation
func IsUniqueViolation(err error) bool {
	return errors.Is(err, ErrUniqueViolation)
}

// IsForeignKeyViolation returns true if the error is ErrForeignKeyViolation
func IsForeignKeyViolation(err error) bool {
	return errors.Is(err, ErrForeignKeyViolation)
}

// IsRecordModified returns true if the error is ErrRecordModified
func IsRecordModified(err error) bool {
	return errors.Is(err, ErrRecordModified)
}

// IsValidationFailed returns true if the error is a validation error
func IsValidationFailed(err error) bool {
	var valErr *validation.ValidationErrors
	return errors.As(err, &valErr)
}
