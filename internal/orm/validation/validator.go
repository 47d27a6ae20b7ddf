// Package validation validates entity values against the nullability, range,
// length and item constraints of their attribute definitions.
package validation

import (
	"fmt"

	"github.com/conduit-lang/entityorm/internal/orm/entity"
	"github.com/conduit-lang/entityorm/internal/orm/schema"
)

// Validator validates entities before they are inserted or updated.
//
// Inserted entities have all their attributes validated, a missing value is
// excused when the column has a default or the key generator supplies the
// primary key. Updated entities only have their modified attributes
// validated, unless the validator is strict.
type Validator struct {
	strict bool
}

// Option configures a Validator
type Option func(*Validator)

// Strict validates all attributes of updated entities, not only the modified ones
func Strict(strict bool) Option {
	return func(v *Validator) {
		v.strict = strict
	}
}

// New creates a validator
func New(opts ...Option) *Validator {
	v := &Validator{}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Exists returns true if e represents a persisted row, that is its type has a
// primary key and both its current and original primary key are non-null
func Exists(e entity.Entity) bool {
	return e.Definition().HasPrimaryKey() && !e.PrimaryKey().IsNull() && !e.OriginalPrimaryKey().IsNull()
}

// Validate validates e as an update if it exists, otherwise as an insert
func (v *Validator) Validate(e entity.Entity) error {
	if Exists(e) {
		return v.ValidateUpdate(e)
	}
	return v.ValidateInsert(e)
}

// ValidateInsert validates all attributes of an entity about to be inserted
func (v *Validator) ValidateInsert(e entity.Entity) error {
	return v.validate(e, true)
}

// ValidateUpdate validates the attributes of an entity about to be updated
func (v *Validator) ValidateUpdate(e entity.Entity) error {
	return v.validate(e, false)
}

// ValidateAll validates entities, returning the error of the first invalid one
func (v *Validator) ValidateAll(entities []entity.Entity) error {
	for _, e := range entities {
		if err := v.Validate(e); err != nil {
			return fmt.Errorf("%s: %w", e.Type(), err)
		}
	}
	return nil
}

// ValidateAttribute validates a single attribute of e
func (v *Validator) ValidateAttribute(e entity.Entity, attribute schema.Attribute) error {
	definition, ok := e.Definition().Attribute(attribute)
	if !ok {
		return schema.ContractViolation("attribute %s is not part of %s", attribute, e.Type())
	}
	if err := validateAttribute(e, definition, !Exists(e)); err != nil {
		return err
	}
	return nil
}

func (v *Validator) validate(e entity.Entity, inserting bool) error {
	errs := NewValidationErrors()
	for _, definition := range e.Definition().Attributes() {
		if !validated(definition) {
			continue
		}
		if !inserting && !v.strict && !e.IsModified(definition.Attribute()) {
			continue
		}
		if err := validateAttribute(e, definition, inserting); err != nil {
			errs.Add(err)
		}
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}

// validated returns true for the attributes carrying values of their own,
// columns that are not read only and transients
func validated(definition schema.AttributeDefinition) bool {
	switch d := definition.(type) {
	case *schema.ColumnDefinition:
		return !d.ReadOnly()
	case *schema.TransientDefinition:
		return true
	default:
		return false
	}
}

func validateAttribute(e entity.Entity, definition schema.AttributeDefinition, inserting bool) AttributeError {
	value := e.Get(definition.Attribute())
	if value == nil {
		if definition.Nullable() || (inserting && excused(e.Definition(), definition)) {
			return nil
		}
		return nullError(definition)
	}
	for _, check := range []func(schema.AttributeDefinition, any) AttributeError{checkRange, checkLength, checkItem} {
		if err := check(definition, value); err != nil {
			return err
		}
	}
	return nil
}

// excused returns true if a missing value is supplied on insert, by a column
// default, a default value or a key generator
func excused(entityDefinition *schema.EntityDefinition, definition schema.AttributeDefinition) bool {
	if _, ok := definition.DefaultValue(); ok {
		return true
	}
	column, ok := definition.(*schema.ColumnDefinition)
	if !ok {
		return false
	}
	if column.PrimaryKey() {
		return !schema.IsManual(entityDefinition.KeyGenerator())
	}
	return column.ColumnHasDefault()
}
