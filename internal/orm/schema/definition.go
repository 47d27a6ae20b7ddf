package schema

// AttributeDefinition holds the static metadata of an attribute
type AttributeDefinition interface {
	// Attribute returns the attribute being defined
	Attribute() Attribute
	// Caption returns the display caption, empty for hidden attributes
	Caption() string
	// Nullable returns true if the attribute accepts null values
	Nullable() bool
	// DefaultValue returns the default value and whether one is defined
	DefaultValue() (any, bool)
	// MaxLength returns the maximum string length, 0 if unbounded
	MaxLength() int
	// Minimum returns the minimum numeric value, if any
	Minimum() (float64, bool)
	// Maximum returns the maximum numeric value, if any
	Maximum() (float64, bool)
	// Items returns the valid values of an enumerated attribute
	Items() []any
}

type definition struct {
	attribute    Attribute
	caption      string
	nullable     bool
	defaultValue any
	hasDefault   bool
	maxLength    int
	minimum      *float64
	maximum      *float64
	items        []any
}

func newDefinition(attribute Attribute) definition {
	return definition{attribute: attribute, nullable: true}
}

func (d *definition) Attribute() Attribute {
	return d.attribute
}

func (d *definition) Caption() string {
	return d.caption
}

func (d *definition) Nullable() bool {
	return d.nullable
}

func (d *definition) DefaultValue() (any, bool) {
	return d.defaultValue, d.hasDefault
}

func (d *definition) MaxLength() int {
	return d.maxLength
}

func (d *definition) Minimum() (float64, bool) {
	if d.minimum == nil {
		return 0, false
	}
	return *d.minimum, true
}

func (d *definition) Maximum() (float64, bool) {
	if d.maximum == nil {
		return 0, false
	}
	return *d.maximum, true
}

func (d *definition) Items() []any {
	return d.items
}

// ColumnDefinition defines an attribute backed by a table column
type ColumnDefinition struct {
	definition
	columnName       string
	expression       string
	primaryKeyIndex  int
	insertable       bool
	updatable        bool
	columnHasDefault bool
	lazy             bool
}

// ColumnName returns the table column name
func (c *ColumnDefinition) ColumnName() string {
	return c.columnName
}

// Expression returns the select expression, the column name unless overridden
func (c *ColumnDefinition) Expression() string {
	if c.expression != "" {
		return c.expression
	}
	return c.columnName
}

// PrimaryKey returns true if the column is part of the primary key
func (c *ColumnDefinition) PrimaryKey() bool {
	return c.primaryKeyIndex >= 0
}

// PrimaryKeyIndex returns the position within the primary key, -1 if not a key column
func (c *ColumnDefinition) PrimaryKeyIndex() int {
	return c.primaryKeyIndex
}

// Insertable returns true if the column is included in insert statements
func (c *ColumnDefinition) Insertable() bool {
	return c.insertable
}

// Updatable returns true if the column is included in update statements
func (c *ColumnDefinition) Updatable() bool {
	return c.updatable
}

// ReadOnly returns true if the column is neither insertable nor updatable
func (c *ColumnDefinition) ReadOnly() bool {
	return !c.insertable && !c.updatable
}

// ColumnHasDefault returns true if the database provides a default value
func (c *ColumnDefinition) ColumnHasDefault() bool {
	return c.columnHasDefault
}

// Lazy returns true if the column is only selected on request
func (c *ColumnDefinition) Lazy() bool {
	return c.lazy
}

// ForeignKeyDefinition defines a foreign key attribute
type ForeignKeyDefinition struct {
	definition
	foreignKey *ForeignKey
	fetchDepth int
	readOnly   map[string]bool
	referenced *EntityDefinition
}

// ForeignKey returns the foreign key being defined
func (f *ForeignKeyDefinition) ForeignKey() *ForeignKey {
	return f.foreignKey
}

// FetchDepth returns the default number of levels of referenced entities to select
func (f *ForeignKeyDefinition) FetchDepth() int {
	return f.fetchDepth
}

// ReadOnly returns true if the given reference column is not set when the foreign key is set
func (f *ForeignKeyDefinition) ReadOnly(column Attribute) bool {
	return column != nil && f.readOnly[column.Name()]
}

// Referenced returns the definition of the referenced entity type
func (f *ForeignKeyDefinition) Referenced() *EntityDefinition {
	return f.referenced
}

// DerivedProvider computes a derived value from its source values
type DerivedProvider func(sources SourceValues) any

// DerivedDefinition defines an attribute computed from other attribute values
type DerivedDefinition struct {
	definition
	sources   []Attribute
	provider  DerivedProvider
	cacheable bool
}

// Sources returns the attributes the value is derived from
func (d *DerivedDefinition) Sources() []Attribute {
	return append([]Attribute(nil), d.sources...)
}

// Cacheable returns true if the derived value is memoized until a source changes
func (d *DerivedDefinition) Cacheable() bool {
	return d.cacheable
}

// Compute computes the derived value
func (d *DerivedDefinition) Compute(sources SourceValues) any {
	return d.provider(sources)
}

// TransientDefinition defines an attribute that is not persisted
type TransientDefinition struct {
	definition
	modifiesEntity bool
}

// ModifiesEntity returns true if changing the value marks the entity as modified
func (t *TransientDefinition) ModifiesEntity() bool {
	return t.modifiesEntity
}

// Writable returns true if changes to the attribute count towards the entity
// being modified: insertable and updatable columns, and transients that modify
// the entity
func Writable(def AttributeDefinition) bool {
	switch d := def.(type) {
	case *ColumnDefinition:
		return d.insertable && d.updatable
	case *TransientDefinition:
		return d.modifiesEntity
	default:
		return false
	}
}

// AttributeBuilder builds an attribute definition, see Column, Derived and Transient
type AttributeBuilder interface {
	build() AttributeDefinition
}

// ColumnBuilder builds a column definition
type ColumnBuilder[T any] struct {
	def *ColumnDefinition
}

// Column starts a column definition for c
func (c Column[T]) Column() *ColumnBuilder[T] {
	return &ColumnBuilder[T]{def: &ColumnDefinition{
		definition:      newDefinition(c),
		columnName:      c.Name(),
		primaryKeyIndex: -1,
		insertable:      true,
		updatable:       true,
	}}
}

// PrimaryKey starts a definition for a single column primary key
func (c Column[T]) PrimaryKey() *ColumnBuilder[T] {
	return c.Column().PrimaryKeyIndex(0)
}

func (b *ColumnBuilder[T]) build() AttributeDefinition {
	return b.def
}

// PrimaryKeyIndex makes the column part of the primary key at the given index.
// Primary key columns are non-nullable and not updatable.
func (b *ColumnBuilder[T]) PrimaryKeyIndex(index int) *ColumnBuilder[T] {
	if index < 0 {
		panic(ContractViolation("primary key index must be non-negative: %s", b.def.attribute))
	}
	b.def.primaryKeyIndex = index
	b.def.nullable = false
	b.def.updatable = false
	return b
}

// ColumnName sets the table column name
func (b *ColumnBuilder[T]) ColumnName(name string) *ColumnBuilder[T] {
	b.def.columnName = name
	return b
}

// Expression sets a select expression used instead of the column name
func (b *ColumnBuilder[T]) Expression(expression string) *ColumnBuilder[T] {
	b.def.expression = expression
	return b
}

// Caption sets the caption
func (b *ColumnBuilder[T]) Caption(caption string) *ColumnBuilder[T] {
	b.def.caption = caption
	return b
}

// Nullable sets whether the column accepts null
func (b *ColumnBuilder[T]) Nullable(nullable bool) *ColumnBuilder[T] {
	b.def.nullable = nullable
	return b
}

// Insertable sets whether the column is included in inserts
func (b *ColumnBuilder[T]) Insertable(insertable bool) *ColumnBuilder[T] {
	b.def.insertable = insertable
	return b
}

// Updatable sets whether the column is included in updates
func (b *ColumnBuilder[T]) Updatable(updatable bool) *ColumnBuilder[T] {
	b.def.updatable = updatable
	return b
}

// ReadOnly excludes the column from inserts and updates
func (b *ColumnBuilder[T]) ReadOnly() *ColumnBuilder[T] {
	b.def.insertable = false
	b.def.updatable = false
	return b
}

// ColumnHasDefault marks the column as having a database default value
func (b *ColumnBuilder[T]) ColumnHasDefault() *ColumnBuilder[T] {
	b.def.columnHasDefault = true
	return b
}

// Lazy excludes the column from selects unless requested explicitly
func (b *ColumnBuilder[T]) Lazy() *ColumnBuilder[T] {
	b.def.lazy = true
	return b
}

// DefaultValue sets the default value of new entities
func (b *ColumnBuilder[T]) DefaultValue(value T) *ColumnBuilder[T] {
	b.def.defaultValue = value
	b.def.hasDefault = true
	return b
}

// MaxLength sets the maximum string length
func (b *ColumnBuilder[T]) MaxLength(maxLength int) *ColumnBuilder[T] {
	if b.def.attribute.Kind() != KindString {
		panic(ContractViolation("max length is only valid for string attributes: %s", b.def.attribute))
	}
	b.def.maxLength = maxLength
	return b
}

// Range sets the valid numeric range
func (b *ColumnBuilder[T]) Range(minimum, maximum float64) *ColumnBuilder[T] {
	kind := b.def.attribute.Kind()
	if kind != KindInteger && kind != KindFloat {
		panic(ContractViolation("range is only valid for numeric attributes: %s", b.def.attribute))
	}
	b.def.minimum = &minimum
	b.def.maximum = &maximum
	return b
}

// Items restricts the column to the given values
func (b *ColumnBuilder[T]) Items(items ...T) *ColumnBuilder[T] {
	b.def.items = make([]any, len(items))
	for i, item := range items {
		b.def.items[i] = item
	}
	return b
}

// ForeignKeyBuilder builds a foreign key definition
type ForeignKeyBuilder struct {
	def *ForeignKeyDefinition
}

// Define starts the definition of the foreign key
func (f *ForeignKey) Define() *ForeignKeyBuilder {
	return &ForeignKeyBuilder{def: &ForeignKeyDefinition{
		definition: newDefinition(f),
		foreignKey: f,
		fetchDepth: 1,
		readOnly:   make(map[string]bool),
	}}
}

func (b *ForeignKeyBuilder) build() AttributeDefinition {
	return b.def
}

// Caption sets the caption
func (b *ForeignKeyBuilder) Caption(caption string) *ForeignKeyBuilder {
	b.def.caption = caption
	return b
}

// FetchDepth sets the default number of reference levels to select, 0 for none
func (b *ForeignKeyBuilder) FetchDepth(depth int) *ForeignKeyBuilder {
	if depth < 0 {
		panic(ContractViolation("fetch depth must be non-negative: %s", b.def.foreignKey))
	}
	b.def.fetchDepth = depth
	return b
}

// ReadOnly marks a reference column whose value the foreign key must not alter
func (b *ForeignKeyBuilder) ReadOnly(column Attribute) *ForeignKeyBuilder {
	if _, ok := b.def.foreignKey.Reference(column); !ok {
		panic(ContractViolation("%s is not a reference column of %s", column, b.def.foreignKey))
	}
	b.def.readOnly[column.Name()] = true
	return b
}

// DerivedBuilder builds a derived attribute definition
type DerivedBuilder[T any] struct {
	def *DerivedDefinition
}

// Derived starts the definition of a value derived from the given sources
func (a Attr[T]) Derived(provider func(sources SourceValues) T, sources ...Attribute) *DerivedBuilder[T] {
	if len(sources) == 0 {
		panic(ContractViolation("derived attribute %s requires at least one source", a))
	}
	return &DerivedBuilder[T]{def: &DerivedDefinition{
		definition: newDefinition(a),
		sources:    append([]Attribute(nil), sources...),
		provider: func(sources SourceValues) any {
			return provider(sources)
		},
	}}
}

func (b *DerivedBuilder[T]) build() AttributeDefinition {
	return b.def
}

// Caption sets the caption
func (b *DerivedBuilder[T]) Caption(caption string) *DerivedBuilder[T] {
	b.def.caption = caption
	return b
}

// Cacheable memoizes the derived value until a source value changes
func (b *DerivedBuilder[T]) Cacheable() *DerivedBuilder[T] {
	b.def.cacheable = true
	return b
}

// TransientBuilder builds a transient attribute definition
type TransientBuilder[T any] struct {
	def *TransientDefinition
}

// Transient starts the definition of a non-persistent attribute.
// Changing a transient value modifies the entity unless disabled.
func (a Attr[T]) Transient() *TransientBuilder[T] {
	return &TransientBuilder[T]{def: &TransientDefinition{
		definition:     newDefinition(a),
		modifiesEntity: true,
	}}
}

func (b *TransientBuilder[T]) build() AttributeDefinition {
	return b.def
}

// Caption sets the caption
func (b *TransientBuilder[T]) Caption(caption string) *TransientBuilder[T] {
	b.def.caption = caption
	return b
}

// ModifiesEntity sets whether a value change marks the entity as modified
func (b *TransientBuilder[T]) ModifiesEntity(modifies bool) *TransientBuilder[T] {
	b.def.modifiesEntity = modifies
	return b
}

// DefaultValue sets the default value of new entities
func (b *TransientBuilder[T]) DefaultValue(value T) *TransientBuilder[T] {
	b.def.defaultValue = value
	b.def.hasDefault = true
	return b
}
