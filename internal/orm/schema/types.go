// Package schema provides the typed attribute handles and the static entity
// definitions of a domain: columns, foreign keys, derived and transient
// attributes, primary keys and key generators.
package schema

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"time"
)

// ErrContractViolation marks programmer errors: schema misuse detected at the call site
var ErrContractViolation = errors.New("contract violation")

// ContractViolation returns an error wrapping ErrContractViolation with the formatted message
func ContractViolation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrContractViolation, fmt.Sprintf(format, args...))
}

// DomainType identifies a domain, a named group of entity types
type DomainType string

// EntityType returns the entity type with the given name in this domain
func (d DomainType) EntityType(name string) EntityType {
	return EntityType{Domain: string(d), Name: name}
}

// EntityType identifies an entity type within a domain
type EntityType struct {
	Domain string
	Name   string
}

// String returns the entity type name
func (t EntityType) String() string {
	return t.Name
}

// ConditionType returns a named condition type for this entity type
func (t EntityType) ConditionType(name string) ConditionType {
	return ConditionType{EntityType: t, Name: name}
}

// ConditionType identifies a custom condition provided by an entity definition
type ConditionType struct {
	EntityType EntityType
	Name       string
}

// Kind classifies attribute value types
type Kind int

const (
	KindOther Kind = iota
	KindString
	KindInteger
	KindFloat
	KindBool
	KindTime
	KindBytes
	KindEntity
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindBytes:
		return "bytes"
	case KindEntity:
		return "entity"
	default:
		return "other"
	}
}

var (
	timeType  = reflect.TypeOf(time.Time{})
	bytesType = reflect.TypeOf([]byte(nil))
)

func kindOf(t reflect.Type) Kind {
	if t == timeType {
		return KindTime
	}
	if t == bytesType {
		return KindBytes
	}
	switch t.Kind() {
	case reflect.String:
		return KindString
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindInteger
	case reflect.Float32, reflect.Float64:
		return KindFloat
	case reflect.Bool:
		return KindBool
	default:
		return KindOther
	}
}

// Attribute identifies a named value slot on an entity type. Two attributes
// are the same when name and entity type match.
type Attribute interface {
	// Name returns the attribute name, unique within its entity type
	Name() string
	// EntityType returns the owning entity type
	EntityType() EntityType
	// Kind returns the value kind
	Kind() Kind
	// Type returns the declared value type, nil for foreign keys
	Type() reflect.Type
	// ValidateType checks a dynamically typed value against the declared type
	ValidateType(value any) error
	// String returns entityType.name
	String() string
}

// SameAttribute returns true if a and b have the same name and entity type
func SameAttribute(a, b Attribute) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Name() == b.Name() && a.EntityType() == b.EntityType()
}

// Values is the value access used by typed attribute handles and key generators
type Values interface {
	Get(attribute Attribute) any
	Put(attribute Attribute, value any) (any, error)
	IsNull(attribute Attribute) bool
}

// SourceValues provides the source values of a derived attribute
type SourceValues interface {
	Get(attribute Attribute) any
}

// Attr is a typed attribute handle. Its definition decides whether it is
// derived or transient; table backed attributes use Column.
type Attr[T any] struct {
	name       string
	entityType EntityType
}

// NewAttr creates a typed attribute handle
func NewAttr[T any](entityType EntityType, name string) Attr[T] {
	return Attr[T]{name: name, entityType: entityType}
}

// Name implements Attribute
func (a Attr[T]) Name() string { return a.name }

// EntityType implements Attribute
func (a Attr[T]) EntityType() EntityType { return a.entityType }

// Type implements Attribute
func (a Attr[T]) Type() reflect.Type { return reflect.TypeOf((*T)(nil)).Elem() }

// Kind implements Attribute
func (a Attr[T]) Kind() Kind { return kindOf(a.Type()) }

// String implements Attribute
func (a Attr[T]) String() string { return a.entityType.Name + "." + a.name }

// ValidateType implements Attribute
func (a Attr[T]) ValidateType(value any) error {
	if value == nil {
		return nil
	}
	if _, ok := value.(T); !ok {
		return ContractViolation("value of type %T is not valid for attribute %s of type %s", value, a, a.Type())
	}
	return nil
}

// Get returns the value of this attribute in v, the zero value if null
func (a Attr[T]) Get(v SourceValues) T {
	value, _ := v.Get(a).(T)
	return value
}

// Set sets the value of this attribute in v
func (a Attr[T]) Set(v Values, value T) error {
	_, err := v.Put(a, value)
	return err
}

// Column is a typed attribute backed by a table column
type Column[T any] struct {
	Attr[T]
}

// NewColumn creates a typed column handle
func NewColumn[T any](entityType EntityType, name string) Column[T] {
	return Column[T]{Attr: NewAttr[T](entityType, name)}
}

// Reference maps a local column to the column it references in another entity
type Reference struct {
	Column  Attribute
	Foreign Attribute
}

// Ref creates a reference between columns of the same value type
func Ref[T any](column, foreign Column[T]) Reference {
	return Reference{Column: column, Foreign: foreign}
}

// ForeignKey is an attribute whose value is an entity of the referenced type,
// defined by one or more column references
type ForeignKey struct {
	name           string
	entityType     EntityType
	referencedType EntityType
	references     []Reference
}

// NewForeignKey creates a foreign key from the given references. It panics if
// no reference is given or the references span several entity types.
func NewForeignKey(name string, references ...Reference) *ForeignKey {
	if len(references) == 0 {
		panic(ContractViolation("foreign key %s requires at least one reference", name))
	}
	entityType := references[0].Column.EntityType()
	referencedType := references[0].Foreign.EntityType()
	for _, ref := range references {
		if ref.Column.EntityType() != entityType || ref.Foreign.EntityType() != referencedType {
			panic(ContractViolation("foreign key %s references must all map %s to %s", name, entityType, referencedType))
		}
	}
	return &ForeignKey{
		name:           name,
		entityType:     entityType,
		referencedType: referencedType,
		references:     append([]Reference(nil), references...),
	}
}

// Name implements Attribute
func (f *ForeignKey) Name() string { return f.name }

// EntityType implements Attribute
func (f *ForeignKey) EntityType() EntityType { return f.entityType }

// ReferencedType returns the entity type referenced by this foreign key
func (f *ForeignKey) ReferencedType() EntityType { return f.referencedType }

// References returns the column references in order
func (f *ForeignKey) References() []Reference {
	return append([]Reference(nil), f.references...)
}

// Reference returns the reference using the given local column
func (f *ForeignKey) Reference(column Attribute) (Reference, bool) {
	for _, ref := range f.references {
		if SameAttribute(ref.Column, column) {
			return ref, true
		}
	}
	return Reference{}, false
}

// Composite returns true if the foreign key has more than one reference
func (f *ForeignKey) Composite() bool { return len(f.references) > 1 }

// Kind implements Attribute
func (f *ForeignKey) Kind() Kind { return KindEntity }

// Type implements Attribute, nil since entity values are not reflect typed
func (f *ForeignKey) Type() reflect.Type { return nil }

// String implements Attribute
func (f *ForeignKey) String() string { return f.entityType.Name + "." + f.name }

// typed is implemented by entities and keys
type typed interface {
	Type() EntityType
}

// ValidateType implements Attribute
func (f *ForeignKey) ValidateType(value any) error {
	if value == nil {
		return nil
	}
	t, ok := value.(typed)
	if !ok {
		return ContractViolation("value of type %T is not valid for foreign key %s", value, f)
	}
	if t.Type() != f.referencedType {
		return ContractViolation("entity of type %s expected for foreign key %s, got %s", f.referencedType, f, t.Type())
	}
	return nil
}

// ValuesEqual compares two attribute values
func ValuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case []byte:
		bv, ok := b.([]byte)
		return ok && bytes.Equal(av, bv)
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	case interface{ Equal(any) bool }:
		return av.Equal(b)
	}
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}
