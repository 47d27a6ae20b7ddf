package entity

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/conduit-lang/entityorm/internal/orm/schema"
)

// NullHash is the hash of null keys
const NullHash = 0

// Key is an immutable identity value over one or more columns of an entity
// type. Single and composite keys share this representation.
//
// A key is null when it has no columns, when all its values are null, or when
// a non-nullable column is null. Null keys are only equal to themselves.
type Key struct {
	definition *schema.EntityDefinition
	columns    []*schema.ColumnDefinition
	values     []any
	primary    bool

	once sync.Once
	hash int
	null bool
}

func newKey(definition *schema.EntityDefinition, columns []*schema.ColumnDefinition, values []any, primary bool) *Key {
	return &Key{
		definition: definition,
		columns:    columns,
		values:     values,
		primary:    primary,
	}
}

// KeyOf returns the primary key of the given definition holding values in
// primary key order
func KeyOf(definition *schema.EntityDefinition, values ...any) (*Key, error) {
	columns := definition.PrimaryKeyColumns()
	if len(columns) == 0 {
		return nil, schema.ContractViolation("%s has no primary key", definition.Type())
	}
	if len(values) != len(columns) {
		return nil, schema.ContractViolation("%s primary key has %d columns, got %d values", definition.Type(), len(columns), len(values))
	}
	for i, column := range columns {
		if err := column.Attribute().ValidateType(values[i]); err != nil {
			return nil, err
		}
	}
	return newKey(definition, columns, append([]any(nil), values...), true), nil
}

// KeyBuilder builds keys over arbitrary columns
type KeyBuilder struct {
	definition *schema.EntityDefinition
	columns    []*schema.ColumnDefinition
	values     []any
	err        error
}

// NewKeyBuilder returns a key builder for the given definition
func NewKeyBuilder(definition *schema.EntityDefinition) *KeyBuilder {
	return &KeyBuilder{definition: definition}
}

// With adds a column value to the key
func (b *KeyBuilder) With(column schema.Attribute, value any) *KeyBuilder {
	if b.err != nil {
		return b
	}
	def, ok := b.definition.Column(column)
	if !ok {
		b.err = schema.ContractViolation("%s is not a column of %s", column, b.definition.Type())
		return b
	}
	if err := def.Attribute().ValidateType(value); err != nil {
		b.err = err
		return b
	}
	for i, existing := range b.columns {
		if existing == def {
			b.values[i] = value
			return b
		}
	}
	b.columns = append(b.columns, def)
	b.values = append(b.values, value)
	return b
}

// Build returns the key, primary if the columns are exactly the primary key
func (b *KeyBuilder) Build() (*Key, error) {
	if b.err != nil {
		return nil, b.err
	}
	columns, values, primary := primaryKeyOrder(b.definition, b.columns, b.values)
	return newKey(b.definition, columns, values, primary), nil
}

// primaryKeyOrder returns the columns and values in primary key order if the
// columns form the primary key, as given otherwise
func primaryKeyOrder(definition *schema.EntityDefinition, columns []*schema.ColumnDefinition, values []any) ([]*schema.ColumnDefinition, []any, bool) {
	pk := definition.PrimaryKeyColumns()
	if len(pk) == 0 || len(pk) != len(columns) {
		return columns, values, false
	}
	ordered := make([]any, len(pk))
	for i, column := range columns {
		if !column.PrimaryKey() {
			return columns, values, false
		}
		ordered[column.PrimaryKeyIndex()] = values[i]
	}
	return pk, ordered, true
}

// Definition returns the definition of the entity type
func (k *Key) Definition() *schema.EntityDefinition { return k.definition }

// Type returns the entity type
func (k *Key) Type() schema.EntityType { return k.definition.Type() }

// Primary returns true if this is a primary key
func (k *Key) Primary() bool { return k.primary }

// Single returns true if the key has a single column
func (k *Key) Single() bool { return len(k.columns) == 1 }

// Composite returns true if the key has more than one column
func (k *Key) Composite() bool { return len(k.columns) > 1 }

// Columns returns the key columns in order
func (k *Key) Columns() []schema.Attribute {
	attributes := make([]schema.Attribute, len(k.columns))
	for i, column := range k.columns {
		attributes[i] = column.Attribute()
	}
	return attributes
}

// ColumnDefinitions returns the definitions of the key columns in order
func (k *Key) ColumnDefinitions() []*schema.ColumnDefinition {
	return append([]*schema.ColumnDefinition(nil), k.columns...)
}

// Column returns the column of a single column key
func (k *Key) Column() schema.Attribute {
	if len(k.columns) != 1 {
		panic(schema.ContractViolation("key of %s is not a single column key", k.Type()))
	}
	return k.columns[0].Attribute()
}

// Value returns the value of a single column key
func (k *Key) Value() any {
	if len(k.columns) != 1 {
		panic(schema.ContractViolation("key of %s is not a single column key", k.Type()))
	}
	return k.values[0]
}

// Values returns the key values in column order
func (k *Key) Values() []any {
	return append([]any(nil), k.values...)
}

// Get returns the value of the given column, nil if not a key column
func (k *Key) Get(column schema.Attribute) any {
	for i, c := range k.columns {
		if schema.SameAttribute(c.Attribute(), column) {
			return k.values[i]
		}
	}
	return nil
}

// Contains returns true if column is a column of this key
func (k *Key) Contains(column schema.Attribute) bool {
	for _, c := range k.columns {
		if schema.SameAttribute(c.Attribute(), column) {
			return true
		}
	}
	return false
}

// IsNull returns true if the key does not identify a row
func (k *Key) IsNull() bool {
	k.once.Do(k.compute)
	return k.null
}

// Hash returns the hash code, the raw value of single integer keys and
// NullHash for null keys
func (k *Key) Hash() int {
	k.once.Do(k.compute)
	return k.hash
}

func (k *Key) compute() {
	if len(k.columns) == 0 {
		k.null = true
		return
	}
	if len(k.columns) == 1 {
		if k.values[0] == nil {
			k.null = true
			return
		}
		k.hash = hashValue(k.values[0])
		return
	}
	allNull := true
	hash := 0
	for i, column := range k.columns {
		value := k.values[i]
		if value == nil {
			if !column.Nullable() {
				k.null = true
				return
			}
			continue
		}
		allNull = false
		hash += hashValue(value)
	}
	if allNull {
		k.null = true
		return
	}
	k.hash = hash
}

// Equal returns true if both keys are non-null and have the same entity
// type, columns and values, or are the same key
func (k *Key) Equal(other *Key) bool {
	if k == other {
		return true
	}
	if k == nil || other == nil || k.IsNull() || other.IsNull() {
		return false
	}
	if k.Type() != other.Type() || len(k.columns) != len(other.columns) || k.Hash() != other.Hash() {
		return false
	}
	for i, column := range k.columns {
		if column.Attribute().Name() != other.columns[i].Attribute().Name() {
			return false
		}
		if !schema.ValuesEqual(k.values[i], other.values[i]) {
			return false
		}
	}
	return true
}

// String returns column=value pairs
func (k *Key) String() string {
	parts := make([]string, len(k.columns))
	for i, column := range k.columns {
		parts[i] = fmt.Sprintf("%s=%v", column.Attribute().Name(), formatValue(k.values[i]))
	}
	return strings.Join(parts, ", ")
}

func formatValue(value any) any {
	if value == nil {
		return "null"
	}
	return value
}

func hashValue(value any) int {
	switch v := value.(type) {
	case int:
		return v
	case int8:
		return int(v)
	case int16:
		return int(v)
	case int32:
		return int(v)
	case int64:
		return int(v)
	case uint:
		return int(v)
	case uint8:
		return int(v)
	case uint16:
		return int(v)
	case uint32:
		return int(v)
	case uint64:
		return int(v)
	case bool:
		if v {
			return 1
		}
		return 0
	case float32:
		return int(math.Float32bits(v))
	case float64:
		bits := math.Float64bits(v)
		return int(bits ^ (bits >> 32))
	case string:
		return int(xxhash.Sum64String(v))
	case []byte:
		return int(xxhash.Sum64(v))
	case time.Time:
		return int(v.UnixNano())
	default:
		return int(xxhash.Sum64String(fmt.Sprint(v)))
	}
}

// KeyMap is a map keyed by Key equality
type KeyMap[V any] struct {
	buckets map[int][]keyMapEntry[V]
	order   []*Key
}

type keyMapEntry[V any] struct {
	key   *Key
	value V
}

// NewKeyMap returns an empty KeyMap
func NewKeyMap[V any]() *KeyMap[V] {
	return &KeyMap[V]{buckets: make(map[int][]keyMapEntry[V])}
}

// Get returns the value mapped to a key equal to key
func (m *KeyMap[V]) Get(key *Key) (V, bool) {
	for _, entry := range m.buckets[key.Hash()] {
		if entry.key.Equal(key) {
			return entry.value, true
		}
	}
	var zero V
	return zero, false
}

// Put maps key to value, replacing the value of an equal key
func (m *KeyMap[V]) Put(key *Key, value V) {
	hash := key.Hash()
	bucket := m.buckets[hash]
	for i, entry := range bucket {
		if entry.key.Equal(key) {
			bucket[i].value = value
			return
		}
	}
	m.buckets[hash] = append(bucket, keyMapEntry[V]{key: key, value: value})
	m.order = append(m.order, key)
}

// Delete removes the mapping of a key equal to key
func (m *KeyMap[V]) Delete(key *Key) {
	hash := key.Hash()
	bucket := m.buckets[hash]
	for i, entry := range bucket {
		if entry.key.Equal(key) {
			m.buckets[hash] = append(bucket[:i], bucket[i+1:]...)
			if len(m.buckets[hash]) == 0 {
				delete(m.buckets, hash)
			}
			for j, k := range m.order {
				if k == entry.key {
					m.order = append(m.order[:j], m.order[j+1:]...)
					break
				}
			}
			return
		}
	}
}

// Len returns the number of mappings
func (m *KeyMap[V]) Len() int {
	return len(m.order)
}

// Keys returns the keys in insertion order
func (m *KeyMap[V]) Keys() []*Key {
	return append([]*Key(nil), m.order...)
}

// Values returns the values in key insertion order
func (m *KeyMap[V]) Values() []V {
	values := make([]V, 0, len(m.order))
	for _, key := range m.order {
		value, _ := m.Get(key)
		values = append(values, value)
	}
	return values
}
