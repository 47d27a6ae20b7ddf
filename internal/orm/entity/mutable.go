package entity

import (
	"github.com/conduit-lang/entityorm/internal/orm/schema"
)

// mutable is the default entity, see New
type mutable struct {
	state

	primaryKey cached[*Key]
	referenced map[string]*cached[*Key]
	derived    map[string]any
	str        cached[string]
}

func newMutable(definition *schema.EntityDefinition, values, original map[string]any) *mutable {
	return &mutable{
		state: state{
			definition: definition,
			values:     values,
			original:   original,
		},
	}
}

func (m *mutable) Get(attribute schema.Attribute) any {
	def := m.attribute(attribute)
	if derived, ok := def.(*schema.DerivedDefinition); ok {
		return m.derivedValue(derived)
	}
	return m.values[attribute.Name()]
}

func (m *mutable) derivedValue(derived *schema.DerivedDefinition) any {
	name := derived.Attribute().Name()
	if derived.Cacheable() {
		if value, ok := m.derived[name]; ok {
			return value
		}
	}
	value := derived.Compute(sourceValues(m.Get))
	if derived.Cacheable() {
		if m.derived == nil {
			m.derived = make(map[string]any)
		}
		m.derived[name] = value
	}
	return value
}

func (m *mutable) Original(attribute schema.Attribute) any {
	def := m.attribute(attribute)
	if derived, ok := def.(*schema.DerivedDefinition); ok {
		return derived.Compute(sourceValues(m.Original))
	}
	value, _ := m.originalValue(attribute.Name())
	return value
}

func (m *mutable) IsNull(attribute schema.Attribute) bool {
	if fk, ok := attribute.(*schema.ForeignKey); ok {
		key := m.Key(fk)
		return key == nil || key.IsNull()
	}
	return m.Get(attribute) == nil
}

func (m *mutable) Put(attribute schema.Attribute, value any) (any, error) {
	def, ok := m.definition.Attribute(attribute)
	if !ok {
		return nil, undefined(m.definition, attribute)
	}
	if err := validateValue(def, value); err != nil {
		return nil, err
	}
	if fk, ok := def.(*schema.ForeignKeyDefinition); ok && value != nil {
		if err := m.checkReadOnlyReferences(fk, value.(Entity)); err != nil {
			return nil, err
		}
	}
	return m.put(def, value), nil
}

// checkReadOnlyReferences fails if setting referenced would alter a read-only reference column
func (m *mutable) checkReadOnlyReferences(fk *schema.ForeignKeyDefinition, referenced Entity) error {
	for _, ref := range fk.ForeignKey().References() {
		if !fk.ReadOnly(ref.Column) {
			continue
		}
		current := m.values[ref.Column.Name()]
		if current == nil {
			continue
		}
		if value := referenced.Get(ref.Foreign); !schema.ValuesEqual(current, value) {
			return schema.ContractViolation("foreign key %s would change the value of read only reference column %s from %v to %v",
				fk.ForeignKey(), ref.Column, current, value)
		}
	}
	return nil
}

// put stores value, tracking the original and updating dependent values and caches
func (m *mutable) put(def schema.AttributeDefinition, value any) any {
	name := def.Attribute().Name()
	previous, present := m.values[name]
	m.values[name] = value
	if present {
		if valuesEqual(previous, value) {
			return previous
		}
		m.updateOriginal(name, previous, value)
	}
	m.changed(def, value)
	return previous
}

// updateOriginal stashes the first previous value, dropping the stash when value reverts to it
func (m *mutable) updateOriginal(name string, previous, value any) {
	if original, modified := m.original[name]; modified {
		if valuesEqual(original, value) {
			delete(m.original, name)
		}
		return
	}
	if m.original == nil {
		m.original = make(map[string]any)
	}
	m.original[name] = previous
}

func (m *mutable) changed(def schema.AttributeDefinition, value any) {
	m.str.clear()
	switch d := def.(type) {
	case *schema.ColumnDefinition:
		if d.PrimaryKey() || !m.definition.HasPrimaryKey() {
			m.primaryKey.clear()
		}
		for _, fk := range m.definition.ForeignKeysOf(d.Attribute()) {
			m.clearReferenced(fk.ForeignKey())
			m.removeInvalidReference(fk, d.Attribute(), value)
		}
	case *schema.ForeignKeyDefinition:
		m.propagate(d, value)
		m.clearReferenced(d.ForeignKey())
	}
	m.invalidateDerived(def.Attribute())
}

// removeInvalidReference removes a loaded referenced entity that no longer matches the reference column value
func (m *mutable) removeInvalidReference(fk *schema.ForeignKeyDefinition, column schema.Attribute, value any) {
	referenced, _ := m.values[fk.ForeignKey().Name()].(Entity)
	if referenced == nil {
		return
	}
	ref, _ := fk.ForeignKey().Reference(column)
	if !schema.ValuesEqual(referenced.Get(ref.Foreign), value) {
		delete(m.values, fk.ForeignKey().Name())
		m.invalidateDerived(fk.ForeignKey())
	}
}

// propagate sets the reference column values from the referenced entity, read-only references excluded
func (m *mutable) propagate(fk *schema.ForeignKeyDefinition, value any) {
	referenced, _ := value.(Entity)
	for _, ref := range fk.ForeignKey().References() {
		if fk.ReadOnly(ref.Column) {
			continue
		}
		var columnValue any
		if referenced != nil {
			columnValue = referenced.Get(ref.Foreign)
		}
		column, _ := m.definition.Column(ref.Column)
		m.put(column, columnValue)
	}
}

func (m *mutable) clearReferenced(fk *schema.ForeignKey) {
	if c, ok := m.referenced[fk.Name()]; ok {
		c.clear()
	}
}

func (m *mutable) invalidateDerived(source schema.Attribute) {
	for _, derived := range m.definition.DerivedFrom(source) {
		delete(m.derived, derived.Attribute().Name())
		m.invalidateDerived(derived.Attribute())
	}
}

func (m *mutable) Remove(attribute schema.Attribute) (any, error) {
	def, ok := m.definition.Attribute(attribute)
	if !ok {
		return nil, undefined(m.definition, attribute)
	}
	if _, derived := def.(*schema.DerivedDefinition); derived {
		return nil, schema.ContractViolation("can not remove the value of derived attribute %s", attribute)
	}
	name := attribute.Name()
	previous, present := m.values[name]
	if !present {
		return nil, nil
	}
	delete(m.values, name)
	delete(m.original, name)
	if _, isForeignKey := def.(*schema.ForeignKeyDefinition); isForeignKey {
		m.str.clear()
		m.invalidateDerived(attribute)
		return previous, nil
	}
	m.changed(def, nil)
	return previous, nil
}

func (m *mutable) Revert(attribute schema.Attribute) error {
	def, ok := m.definition.Attribute(attribute)
	if !ok {
		return undefined(m.definition, attribute)
	}
	if original, modified := m.original[attribute.Name()]; modified {
		m.put(def, original)
	}
	return nil
}

func (m *mutable) RevertAll() error {
	for _, def := range m.definition.Attributes() {
		if original, modified := m.original[def.Attribute().Name()]; modified {
			m.put(def, original)
		}
	}
	return nil
}

func (m *mutable) Save(attribute schema.Attribute) error {
	if !m.definition.Contains(attribute) {
		return undefined(m.definition, attribute)
	}
	delete(m.original, attribute.Name())
	return nil
}

func (m *mutable) SaveAll() error {
	m.original = nil
	return nil
}

func (m *mutable) SetAs(other Entity) error {
	if other == Entity(m) {
		return nil
	}
	if other != nil && other.Type() != m.Type() {
		return schema.ContractViolation("entity of type %s expected, got %s", m.Type(), other.Type())
	}
	m.values = make(map[string]any)
	m.original = nil
	if other != nil {
		for _, entry := range other.Entries() {
			m.values[entry.Attribute.Name()] = entry.Value
		}
		for _, entry := range other.OriginalEntries() {
			if m.original == nil {
				m.original = make(map[string]any)
			}
			m.original[entry.Attribute.Name()] = entry.Value
		}
	}
	m.clearCaches()
	return nil
}

func (m *mutable) clearCaches() {
	m.primaryKey.clear()
	m.referenced = nil
	m.derived = nil
	m.str.clear()
}

func (m *mutable) ClearPrimaryKey() error {
	for _, column := range m.definition.PrimaryKeyColumns() {
		if _, err := m.Remove(column.Attribute()); err != nil {
			return err
		}
	}
	return nil
}

func (m *mutable) PrimaryKey() *Key {
	if m.primaryKey.valid {
		return m.primaryKey.value
	}
	return m.primaryKey.set(m.buildPrimaryKey(m.currentValue))
}

func (m *mutable) OriginalPrimaryKey() *Key {
	return m.buildPrimaryKey(m.originalValue)
}

func (m *mutable) Key(foreignKey *schema.ForeignKey) *Key {
	def, ok := m.definition.ForeignKey(foreignKey)
	if !ok {
		panic(undefined(m.definition, foreignKey))
	}
	c, ok := m.referenced[foreignKey.Name()]
	if !ok {
		if m.referenced == nil {
			m.referenced = make(map[string]*cached[*Key])
		}
		c = &cached[*Key]{}
		m.referenced[foreignKey.Name()] = c
	}
	if c.valid {
		return c.value
	}
	return c.set(m.referencedKey(def))
}

func (m *mutable) Entity(foreignKey *schema.ForeignKey) Entity {
	if referenced, _ := m.values[foreignKey.Name()].(Entity); referenced != nil {
		return referenced
	}
	key := m.Key(foreignKey)
	if key == nil {
		return nil
	}
	return FromKey(key)
}

func (m *mutable) Equal(other Entity) bool {
	if other == nil || other.Type() != m.Type() {
		return false
	}
	return Entity(m) == other || m.PrimaryKey().Equal(other.PrimaryKey())
}

func (m *mutable) ValuesEqual(other Entity) bool {
	return m.valuesEqual(other)
}

func (m *mutable) Mutable() bool {
	return true
}

func (m *mutable) Copy() Entity {
	result := newMutable(m.definition, copyMap(m.values), copyMap(m.original))
	if result.values == nil {
		result.values = make(map[string]any)
	}
	return result
}

func (m *mutable) DeepCopy() Entity {
	return deepCopy(m)
}

func (m *mutable) Immutable() Entity {
	return freeze(m)
}

func (m *mutable) String() string {
	if m.str.valid {
		return m.str.value
	}
	return m.str.set(defaultString(m))
}

// deepCopy returns a mutable copy of e with foreign key values copied as well
func deepCopy(e Entity) Entity {
	copies := make(map[Entity]*mutable)
	var copyEntity func(Entity) *mutable
	copyEntity = func(source Entity) *mutable {
		if existing, ok := copies[source]; ok {
			return existing
		}
		result := newMutable(source.Definition(), make(map[string]any), nil)
		copies[source] = result
		for _, entry := range source.Entries() {
			result.values[entry.Attribute.Name()] = copyValue(entry.Value, copyEntity)
		}
		for _, entry := range source.OriginalEntries() {
			if result.original == nil {
				result.original = make(map[string]any)
			}
			result.original[entry.Attribute.Name()] = copyValue(entry.Value, copyEntity)
		}
		return result
	}
	return copyEntity(e)
}

func copyValue(value any, copyEntity func(Entity) *mutable) any {
	switch v := value.(type) {
	case Entity:
		return copyEntity(v)
	case []byte:
		return append([]byte(nil), v...)
	default:
		return value
	}
}
