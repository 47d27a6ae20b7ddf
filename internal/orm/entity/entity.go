// Package entity provides the entity value container and its key model.
//
// Entities come in three variants sharing the Entity interface: mutable
// entities created with New, FromEntries or FromKey, immutable entities
// returned by Immutable, and empty immutable entities returned by Empty.
// Mutations of immutable variants fail with ErrNotSupported.
//
// Mutable entities are not safe for concurrent use. Immutable entities are.
package entity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/conduit-lang/entityorm/internal/orm/schema"
)

// ErrNotSupported is returned when mutating an immutable entity
var ErrNotSupported = errors.New("operation not supported by immutable entity")

// Entity holds the current and original attribute values of one row
type Entity interface {
	// Type returns the entity type
	Type() schema.EntityType
	// Definition returns the entity definition
	Definition() *schema.EntityDefinition

	// Get returns the value of the attribute, computing derived values
	Get(attribute schema.Attribute) any
	// Original returns the original value of a modified attribute, the current value otherwise
	Original(attribute schema.Attribute) any
	// Contains returns true if a value, possibly null, is present for the attribute
	Contains(attribute schema.Attribute) bool
	// IsNull returns true if the value is null; for foreign keys, if the referenced key is null
	IsNull(attribute schema.Attribute) bool
	// IsModified returns true if the attribute value differs from its original
	IsModified(attribute schema.Attribute) bool
	// Modified returns true if any writable attribute is modified
	Modified() bool
	// Entries returns the present values in definition order
	Entries() []Entry
	// OriginalEntries returns the original values of modified attributes in definition order
	OriginalEntries() []Entry

	// Put sets the value of the attribute, returning the previous value
	Put(attribute schema.Attribute, value any) (any, error)
	// Remove removes the value of the attribute, returning the previous value
	Remove(attribute schema.Attribute) (any, error)
	// Revert restores the original value of the attribute
	Revert(attribute schema.Attribute) error
	// RevertAll restores all original values
	RevertAll() error
	// Save discards the original value of the attribute, making the current value original
	Save(attribute schema.Attribute) error
	// SaveAll discards all original values
	SaveAll() error
	// SetAs replaces all values with those of other, clearing all values if other is nil
	SetAs(other Entity) error
	// ClearPrimaryKey removes the primary key values
	ClearPrimaryKey() error

	// PrimaryKey returns the primary key, a non-primary key over all present
	// columns if the entity type has no primary key
	PrimaryKey() *Key
	// OriginalPrimaryKey returns the primary key built from original values
	OriginalPrimaryKey() *Key
	// Entity returns the referenced entity, a key only entity if it has not
	// been loaded, nil if the reference is null
	Entity(foreignKey *schema.ForeignKey) Entity
	// Key returns the referenced key, nil if the reference is null
	Key(foreignKey *schema.ForeignKey) *Key
	// Loaded returns true if the referenced entity has been loaded
	Loaded(foreignKey *schema.ForeignKey) bool

	// Equal returns true if other has the same type and an equal primary key
	Equal(other Entity) bool
	// ValuesEqual returns true if other has the same type and equal values for all attributes
	ValuesEqual(other Entity) bool
	// Mutable returns true for mutable entities
	Mutable() bool
	// Copy returns a mutable copy sharing referenced entities
	Copy() Entity
	// DeepCopy returns a mutable copy with referenced entities copied as well
	DeepCopy() Entity
	// Immutable returns an immutable copy, frozen recursively through foreign keys
	Immutable() Entity
	// String returns the string representation
	String() string
}

// Entry is an attribute value pair
type Entry struct {
	Attribute schema.Attribute
	Value     any
}

// cached is a memoized value, valid until cleared
type cached[T any] struct {
	value T
	valid bool
}

func (c *cached[T]) set(value T) T {
	c.value = value
	c.valid = true
	return value
}

func (c *cached[T]) clear() {
	var zero T
	c.value = zero
	c.valid = false
}

// New returns an empty mutable entity
func New(definition *schema.EntityDefinition) Entity {
	return newMutable(definition, make(map[string]any), nil)
}

// FromEntries returns a mutable entity holding the given values and
// originals. Values are type checked but foreign key values are not
// propagated to their reference columns.
func FromEntries(definition *schema.EntityDefinition, values []Entry, originals []Entry) (Entity, error) {
	valueMap, err := entryMap(definition, values)
	if err != nil {
		return nil, err
	}
	originalMap, err := entryMap(definition, originals)
	if err != nil {
		return nil, err
	}
	if len(originalMap) == 0 {
		originalMap = nil
	}
	return newMutable(definition, valueMap, originalMap), nil
}

// FromKey returns a mutable entity holding only the given key values
func FromKey(key *Key) Entity {
	values := make(map[string]any, len(key.columns))
	for i, column := range key.columns {
		values[column.Attribute().Name()] = key.values[i]
	}
	return newMutable(key.definition, values, nil)
}

func entryMap(definition *schema.EntityDefinition, entries []Entry) (map[string]any, error) {
	result := make(map[string]any, len(entries))
	for _, entry := range entries {
		def, ok := definition.Attribute(entry.Attribute)
		if !ok {
			return nil, undefined(definition, entry.Attribute)
		}
		if err := validateValue(def, entry.Value); err != nil {
			return nil, err
		}
		result[entry.Attribute.Name()] = entry.Value
	}
	return result, nil
}

func undefined(definition *schema.EntityDefinition, attribute schema.Attribute) error {
	return schema.ContractViolation("attribute %v is not part of entity %s", attribute, definition.Type())
}

// validateValue checks the value type, for foreign keys that it is an entity of the referenced type
func validateValue(def schema.AttributeDefinition, value any) error {
	if _, ok := def.(*schema.DerivedDefinition); ok {
		return schema.ContractViolation("can not set the value of derived attribute %s", def.Attribute())
	}
	if fk, ok := def.(*schema.ForeignKeyDefinition); ok && value != nil {
		referenced, isEntity := value.(Entity)
		if !isEntity {
			return schema.ContractViolation("entity of type %s expected for %s, got %T", fk.ForeignKey().ReferencedType(), fk.ForeignKey(), value)
		}
		if referenced.Type() != fk.ForeignKey().ReferencedType() {
			return schema.ContractViolation("entity of type %s expected for %s, got %s", fk.ForeignKey().ReferencedType(), fk.ForeignKey(), referenced.Type())
		}
		return nil
	}
	return def.Attribute().ValidateType(value)
}

// valuesEqual compares attribute values, entities by primary key
func valuesEqual(a, b any) bool {
	ae, aok := a.(Entity)
	be, bok := b.(Entity)
	if aok || bok {
		if !aok || !bok {
			return false
		}
		return ae == be || ae.Equal(be)
	}
	return schema.ValuesEqual(a, b)
}

// state is the value storage shared by the entity variants
type state struct {
	definition *schema.EntityDefinition
	values     map[string]any
	original   map[string]any
}

func (s *state) Type() schema.EntityType {
	return s.definition.Type()
}

func (s *state) Definition() *schema.EntityDefinition {
	return s.definition
}

// attribute returns the definition of attribute, panicking if it is not part of this entity
func (s *state) attribute(attribute schema.Attribute) schema.AttributeDefinition {
	def, ok := s.definition.Attribute(attribute)
	if !ok {
		panic(undefined(s.definition, attribute))
	}
	return def
}

func (s *state) Contains(attribute schema.Attribute) bool {
	_, ok := s.values[s.attribute(attribute).Attribute().Name()]
	return ok
}

func (s *state) IsModified(attribute schema.Attribute) bool {
	_, ok := s.original[s.attribute(attribute).Attribute().Name()]
	return ok
}

func (s *state) Modified() bool {
	for name := range s.original {
		if def, ok := s.definition.AttributeByName(name); ok && schema.Writable(def) {
			return true
		}
	}
	return false
}

func (s *state) Entries() []Entry {
	return s.entries(s.values)
}

func (s *state) OriginalEntries() []Entry {
	return s.entries(s.original)
}

func (s *state) entries(values map[string]any) []Entry {
	if len(values) == 0 {
		return nil
	}
	entries := make([]Entry, 0, len(values))
	for _, def := range s.definition.Attributes() {
		if value, ok := values[def.Attribute().Name()]; ok {
			entries = append(entries, Entry{Attribute: def.Attribute(), Value: value})
		}
	}
	return entries
}

func (s *state) Loaded(foreignKey *schema.ForeignKey) bool {
	s.attribute(foreignKey)
	referenced, _ := s.values[foreignKey.Name()].(Entity)
	return referenced != nil
}

// buildPrimaryKey builds the primary key from values, a pseudo key over present
// columns if the entity type has no primary key
func (s *state) buildPrimaryKey(values func(name string) (any, bool)) *Key {
	if s.definition.HasPrimaryKey() {
		columns := s.definition.PrimaryKeyColumns()
		keyValues := make([]any, len(columns))
		for i, column := range columns {
			keyValues[i], _ = values(column.Attribute().Name())
		}
		return newKey(s.definition, columns, keyValues, true)
	}
	var columns []*schema.ColumnDefinition
	var keyValues []any
	for _, column := range s.definition.Columns() {
		if value, ok := values(column.Attribute().Name()); ok {
			columns = append(columns, column)
			keyValues = append(keyValues, value)
		}
	}
	return newKey(s.definition, columns, keyValues, false)
}

func (s *state) currentValue(name string) (any, bool) {
	value, ok := s.values[name]
	return value, ok
}

func (s *state) originalValue(name string) (any, bool) {
	if value, ok := s.original[name]; ok {
		return value, true
	}
	return s.currentValue(name)
}

// referencedKey builds the key referenced by a foreign key, nil if a reference value is null
func (s *state) referencedKey(def *schema.ForeignKeyDefinition) *Key {
	referenced := def.Referenced()
	references := def.ForeignKey().References()
	columns := make([]*schema.ColumnDefinition, len(references))
	values := make([]any, len(references))
	for i, ref := range references {
		value := s.values[ref.Column.Name()]
		if value == nil {
			return nil
		}
		column, _ := referenced.Column(ref.Foreign)
		columns[i] = column
		values[i] = value
	}
	columns, values, primary := primaryKeyOrder(referenced, columns, values)
	return newKey(referenced, columns, values, primary)
}

func (s *state) valuesEqual(other Entity) bool {
	if other == nil || other.Type() != s.Type() {
		return false
	}
	entries := other.Entries()
	if len(entries) != len(s.values) {
		return false
	}
	for _, entry := range entries {
		value, ok := s.values[entry.Attribute.Name()]
		if !ok || !valuesEqual(value, entry.Value) {
			return false
		}
	}
	return true
}

// sourceValues adapts a getter to schema.SourceValues
type sourceValues func(attribute schema.Attribute) any

func (f sourceValues) Get(attribute schema.Attribute) any { return f(attribute) }

// defaultString renders type: primary key
func defaultString(e Entity) string {
	if factory := e.Definition().StringFactory(); factory != nil {
		return factory(sourceValues(e.Get))
	}
	var b strings.Builder
	b.WriteString(e.Type().Name)
	b.WriteString(": ")
	b.WriteString(e.PrimaryKey().String())
	return b.String()
}

// copyMap returns a shallow copy, nil for empty maps
func copyMap(m map[string]any) map[string]any {
	if len(m) == 0 {
		return nil
	}
	result := make(map[string]any, len(m))
	for k, v := range m {
		result[k] = v
	}
	return result
}

func notSupported(operation string, entityType schema.EntityType) error {
	return fmt.Errorf("%w: %s on %s", ErrNotSupported, operation, entityType)
}
