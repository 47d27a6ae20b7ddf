package entity

import (
	"github.com/conduit-lang/entityorm/internal/orm/schema"
)

// PrimaryKeys returns the primary keys of entities
func PrimaryKeys(entities []Entity) []*Key {
	keys := make([]*Key, len(entities))
	for i, e := range entities {
		keys[i] = e.PrimaryKey()
	}
	return keys
}

// OriginalPrimaryKeys returns the original primary keys of entities
func OriginalPrimaryKeys(entities []Entity) []*Key {
	keys := make([]*Key, len(entities))
	for i, e := range entities {
		keys[i] = e.OriginalPrimaryKey()
	}
	return keys
}

// MapToPrimaryKey maps entities to their primary keys, later entities
// replacing earlier ones with an equal key
func MapToPrimaryKey(entities []Entity) *KeyMap[Entity] {
	result := NewKeyMap[Entity]()
	for _, e := range entities {
		result.Put(e.PrimaryKey(), e)
	}
	return result
}

// ReferencedKeys returns the distinct non-null keys referenced by entities via foreignKey
func ReferencedKeys(foreignKey *schema.ForeignKey, entities []Entity) []*Key {
	seen := NewKeyMap[struct{}]()
	var keys []*Key
	for _, e := range entities {
		key := e.Key(foreignKey)
		if key == nil || key.IsNull() {
			continue
		}
		if _, ok := seen.Get(key); ok {
			continue
		}
		seen.Put(key, struct{}{})
		keys = append(keys, key)
	}
	return keys
}

// Values returns the value of attribute in each entity, nil values included
func Values[T any](entities []Entity, attribute interface{ Get(schema.SourceValues) T }) []T {
	values := make([]T, len(entities))
	for i, e := range entities {
		values[i] = attribute.Get(e)
	}
	return values
}

// DistinctValues returns the distinct non-null values of attribute in order of appearance
func DistinctValues(entities []Entity, attribute schema.Attribute) []any {
	var values []any
	for _, e := range entities {
		value := e.Get(attribute)
		if value == nil {
			continue
		}
		duplicate := false
		for _, existing := range values {
			if schema.ValuesEqual(existing, value) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			values = append(values, value)
		}
	}
	return values
}

// IsKeyModified returns true if any entity has a modified primary key column
func IsKeyModified(entities []Entity) bool {
	for _, e := range entities {
		for _, column := range e.Definition().PrimaryKeyColumns() {
			if e.IsModified(column.Attribute()) {
				return true
			}
		}
	}
	return false
}

// Modified returns the modified entities
func Modified(entities []Entity) []Entity {
	var result []Entity
	for _, e := range entities {
		if e.Modified() {
			result = append(result, e)
		}
	}
	return result
}

// GroupByType groups entities by type, types in order of appearance
func GroupByType(entities []Entity) ([]schema.EntityType, map[schema.EntityType][]Entity) {
	var order []schema.EntityType
	groups := make(map[schema.EntityType][]Entity)
	for _, e := range entities {
		if _, ok := groups[e.Type()]; !ok {
			order = append(order, e.Type())
		}
		groups[e.Type()] = append(groups[e.Type()], e)
	}
	return order, groups
}

// GroupKeysByType groups keys by type, types in order of appearance
func GroupKeysByType(keys []*Key) ([]schema.EntityType, map[schema.EntityType][]*Key) {
	var order []schema.EntityType
	groups := make(map[schema.EntityType][]*Key)
	for _, key := range keys {
		if _, ok := groups[key.Type()]; !ok {
			order = append(order, key.Type())
		}
		groups[key.Type()] = append(groups[key.Type()], key)
	}
	return order, groups
}

// Immutables returns immutable copies of entities
func Immutables(entities []Entity) []Entity {
	result := make([]Entity, len(entities))
	for i, e := range entities {
		result[i] = e.Immutable()
	}
	return result
}
