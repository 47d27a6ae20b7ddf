package schema

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/conduit-lang/entityorm/internal/orm/database"
)

// KeyGenerator produces primary key values around insert time
type KeyGenerator interface {
	// Inserted returns true if primary key values are included in the insert statement
	Inserted() bool
	// Generated returns true if the generator supplies the primary key value
	Generated() bool
	// BeforeInsert runs before the insert statement
	BeforeInsert(ctx context.Context, values Values, definition *EntityDefinition, conn database.Connection) error
	// AfterInsert runs after the insert statement
	AfterInsert(ctx context.Context, values Values, definition *EntityDefinition, conn database.Connection, result sql.Result) error
}

type manualKeyGenerator struct{}

func (manualKeyGenerator) Inserted() bool  { return true }
func (manualKeyGenerator) Generated() bool { return false }

func (manualKeyGenerator) BeforeInsert(context.Context, Values, *EntityDefinition, database.Connection) error {
	return nil
}

func (manualKeyGenerator) AfterInsert(context.Context, Values, *EntityDefinition, database.Connection, sql.Result) error {
	return nil
}

// ManualKeyGenerator returns the key generator of entities whose primary key
// values are set by the application
func ManualKeyGenerator() KeyGenerator {
	return manualKeyGenerator{}
}

// IsManual returns true for the manual key generator
func IsManual(generator KeyGenerator) bool {
	_, ok := generator.(manualKeyGenerator)
	return ok
}

// ConditionProvider renders a custom condition from its attributes and values
type ConditionProvider func(attributes []Attribute, values []any) string

// StringFactory returns the string representation of an entity
type StringFactory func(values SourceValues) string

// EntityDefinition is the static schema of an entity type
type EntityDefinition struct {
	entityType         EntityType
	tableName          string
	caption            string
	readOnly           bool
	attributes         []AttributeDefinition
	byName             map[string]AttributeDefinition
	columns            []*ColumnDefinition
	primaryKey         []*ColumnDefinition
	foreignKeys        []*ForeignKeyDefinition
	columnForeignKeys  map[string][]*ForeignKeyDefinition
	derivedFrom        map[string][]*DerivedDefinition
	conditionProviders map[ConditionType]ConditionProvider
	keyGenerator       KeyGenerator
	orderBy            *OrderBy
	stringFactory      StringFactory
}

// Type returns the entity type
func (d *EntityDefinition) Type() EntityType { return d.entityType }

// TableName returns the table name, the entity type name unless specified
func (d *EntityDefinition) TableName() string { return d.tableName }

// Caption returns the caption
func (d *EntityDefinition) Caption() string { return d.caption }

// ReadOnly returns true if entities of this type can not be inserted, updated or deleted
func (d *EntityDefinition) ReadOnly() bool { return d.readOnly }

// Attributes returns all attribute definitions in definition order
func (d *EntityDefinition) Attributes() []AttributeDefinition {
	return append([]AttributeDefinition(nil), d.attributes...)
}

// Contains returns true if the attribute is defined for this entity type
func (d *EntityDefinition) Contains(attribute Attribute) bool {
	_, ok := d.Attribute(attribute)
	return ok
}

// Attribute returns the definition of the given attribute
func (d *EntityDefinition) Attribute(attribute Attribute) (AttributeDefinition, bool) {
	if attribute == nil || attribute.EntityType() != d.entityType {
		return nil, false
	}
	def, ok := d.byName[attribute.Name()]
	return def, ok
}

// AttributeByName returns the definition of the attribute with the given name
func (d *EntityDefinition) AttributeByName(name string) (AttributeDefinition, bool) {
	def, ok := d.byName[name]
	return def, ok
}

// Column returns the column definition of the given attribute
func (d *EntityDefinition) Column(attribute Attribute) (*ColumnDefinition, bool) {
	def, ok := d.Attribute(attribute)
	if !ok {
		return nil, false
	}
	column, ok := def.(*ColumnDefinition)
	return column, ok
}

// Columns returns all column definitions in definition order
func (d *EntityDefinition) Columns() []*ColumnDefinition {
	return append([]*ColumnDefinition(nil), d.columns...)
}

// SelectColumns returns the columns selected by default, excluding lazy ones
func (d *EntityDefinition) SelectColumns() []*ColumnDefinition {
	columns := make([]*ColumnDefinition, 0, len(d.columns))
	for _, column := range d.columns {
		if !column.lazy {
			columns = append(columns, column)
		}
	}
	return columns
}

// PrimaryKeyColumns returns the primary key columns ordered by primary key index
func (d *EntityDefinition) PrimaryKeyColumns() []*ColumnDefinition {
	return append([]*ColumnDefinition(nil), d.primaryKey...)
}

// HasPrimaryKey returns true if a primary key is defined
func (d *EntityDefinition) HasPrimaryKey() bool {
	return len(d.primaryKey) > 0
}

// ForeignKeys returns all foreign key definitions
func (d *EntityDefinition) ForeignKeys() []*ForeignKeyDefinition {
	return append([]*ForeignKeyDefinition(nil), d.foreignKeys...)
}

// ForeignKey returns the definition of the given foreign key
func (d *EntityDefinition) ForeignKey(foreignKey *ForeignKey) (*ForeignKeyDefinition, bool) {
	def, ok := d.Attribute(foreignKey)
	if !ok {
		return nil, false
	}
	fk, ok := def.(*ForeignKeyDefinition)
	return fk, ok
}

// ForeignKeysOf returns the foreign keys using the given column as a reference
func (d *EntityDefinition) ForeignKeysOf(column Attribute) []*ForeignKeyDefinition {
	if column == nil {
		return nil
	}
	return d.columnForeignKeys[column.Name()]
}

// DerivedFrom returns the derived attributes directly depending on source
func (d *EntityDefinition) DerivedFrom(source Attribute) []*DerivedDefinition {
	if source == nil {
		return nil
	}
	return d.derivedFrom[source.Name()]
}

// ConditionProvider returns the provider registered for the condition type
func (d *EntityDefinition) ConditionProvider(conditionType ConditionType) (ConditionProvider, bool) {
	provider, ok := d.conditionProviders[conditionType]
	return provider, ok
}

// KeyGenerator returns the primary key generator
func (d *EntityDefinition) KeyGenerator() KeyGenerator { return d.keyGenerator }

// OrderBy returns the default order, nil if none
func (d *EntityDefinition) OrderBy() *OrderBy { return d.orderBy }

// StringFactory returns the string factory, nil if none
func (d *EntityDefinition) StringFactory() StringFactory { return d.stringFactory }

// DefinitionBuilder collects an entity definition, see Define
type DefinitionBuilder struct {
	entityType         EntityType
	tableName          string
	caption            string
	readOnly           bool
	attributes         []AttributeBuilder
	conditionProviders map[ConditionType]ConditionProvider
	keyGenerator       KeyGenerator
	orderBy            *OrderBy
	stringFactory      StringFactory
}

// Define starts the definition of an entity type with the given attributes
func Define(entityType EntityType, attributes ...AttributeBuilder) *DefinitionBuilder {
	return &DefinitionBuilder{
		entityType:         entityType,
		tableName:          entityType.Name,
		attributes:         attributes,
		conditionProviders: make(map[ConditionType]ConditionProvider),
		keyGenerator:       ManualKeyGenerator(),
	}
}

// Table sets the table name
func (b *DefinitionBuilder) Table(name string) *DefinitionBuilder {
	b.tableName = name
	return b
}

// Caption sets the caption
func (b *DefinitionBuilder) Caption(caption string) *DefinitionBuilder {
	b.caption = caption
	return b
}

// ReadOnly prevents inserts, updates and deletes
func (b *DefinitionBuilder) ReadOnly() *DefinitionBuilder {
	b.readOnly = true
	return b
}

// KeyGenerator sets the primary key generator
func (b *DefinitionBuilder) KeyGenerator(generator KeyGenerator) *DefinitionBuilder {
	if generator != nil {
		b.keyGenerator = generator
	}
	return b
}

// OrderBy sets the default order
func (b *DefinitionBuilder) OrderBy(orderBy OrderBy) *DefinitionBuilder {
	b.orderBy = &orderBy
	return b
}

// StringFactory sets the string factory
func (b *DefinitionBuilder) StringFactory(factory StringFactory) *DefinitionBuilder {
	b.stringFactory = factory
	return b
}

// Condition registers a custom condition provider
func (b *DefinitionBuilder) Condition(conditionType ConditionType, provider ConditionProvider) *DefinitionBuilder {
	b.conditionProviders[conditionType] = provider
	return b
}

// build validates and assembles the definition, resolving referenced
// definitions through resolve
func (b *DefinitionBuilder) build(resolve func(EntityType) (*EntityDefinition, bool)) (*EntityDefinition, error) {
	d := &EntityDefinition{
		entityType:         b.entityType,
		tableName:          b.tableName,
		caption:            b.caption,
		readOnly:           b.readOnly,
		byName:             make(map[string]AttributeDefinition, len(b.attributes)),
		columnForeignKeys:  make(map[string][]*ForeignKeyDefinition),
		derivedFrom:        make(map[string][]*DerivedDefinition),
		conditionProviders: b.conditionProviders,
		keyGenerator:       b.keyGenerator,
		orderBy:            b.orderBy,
		stringFactory:      b.stringFactory,
	}

	for _, builder := range b.attributes {
		def := builder.build()
		attribute := def.Attribute()
		if attribute.EntityType() != b.entityType {
			return nil, ContractViolation("attribute %s does not belong to %s", attribute, b.entityType)
		}
		if _, exists := d.byName[attribute.Name()]; exists {
			return nil, ContractViolation("attribute %s is defined more than once", attribute)
		}
		d.byName[attribute.Name()] = def
		d.attributes = append(d.attributes, def)
		if column, ok := def.(*ColumnDefinition); ok {
			d.columns = append(d.columns, column)
			if column.PrimaryKey() {
				d.primaryKey = append(d.primaryKey, column)
			}
		}
	}

	if err := d.sortPrimaryKey(); err != nil {
		return nil, err
	}
	if err := d.linkForeignKeys(resolve); err != nil {
		return nil, err
	}
	if err := d.linkDerived(); err != nil {
		return nil, err
	}

	return d, nil
}

func (d *EntityDefinition) sortPrimaryKey() error {
	sort.SliceStable(d.primaryKey, func(i, j int) bool {
		return d.primaryKey[i].primaryKeyIndex < d.primaryKey[j].primaryKeyIndex
	})
	for i, column := range d.primaryKey {
		if column.primaryKeyIndex != i {
			return ContractViolation("primary key indexes of %s must be consecutive from 0, %s has index %d",
				d.entityType, column.attribute, column.primaryKeyIndex)
		}
	}
	return nil
}

func (d *EntityDefinition) linkForeignKeys(resolve func(EntityType) (*EntityDefinition, bool)) error {
	for _, def := range d.attributes {
		fk, ok := def.(*ForeignKeyDefinition)
		if !ok {
			continue
		}
		referencedType := fk.foreignKey.ReferencedType()
		if referencedType == d.entityType {
			fk.referenced = d
		} else if fk.referenced, ok = resolve(referencedType); !ok {
			return fmt.Errorf("%w: %s references %s which is not defined", ErrContractViolation, fk.foreignKey, referencedType)
		}
		fk.nullable = false
		for _, ref := range fk.foreignKey.References() {
			column, ok := d.Column(ref.Column)
			if !ok {
				return ContractViolation("reference column %s of %s is not a column of %s", ref.Column, fk.foreignKey, d.entityType)
			}
			if !fk.referenced.Contains(ref.Foreign) {
				return ContractViolation("referenced column %s of %s is not defined", ref.Foreign, fk.foreignKey)
			}
			if column.nullable {
				fk.nullable = true
			}
			d.columnForeignKeys[column.attribute.Name()] = append(d.columnForeignKeys[column.attribute.Name()], fk)
		}
		d.foreignKeys = append(d.foreignKeys, fk)
	}
	return nil
}

func (d *EntityDefinition) linkDerived() error {
	graph := newDependencyGraph()
	for _, def := range d.attributes {
		derived, ok := def.(*DerivedDefinition)
		if !ok {
			continue
		}
		graph.addNode(derived.attribute.Name())
		for _, source := range derived.sources {
			if !d.Contains(source) {
				return ContractViolation("source %s of derived attribute %s is not defined", source, derived.attribute)
			}
			d.derivedFrom[source.Name()] = append(d.derivedFrom[source.Name()], derived)
			graph.addEdge(derived.attribute.Name(), source.Name())
		}
	}
	if cycles := graph.detectCycles(); len(cycles) > 0 {
		return ContractViolation("derived attributes of %s have circular dependencies:\n%s", d.entityType, formatCycles(cycles))
	}
	return nil
}
