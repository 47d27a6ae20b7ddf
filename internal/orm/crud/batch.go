package crud

import (
	"context"
	"fmt"

	"github.com/conduit-lang/entityorm/internal/orm/condition"
	"github.com/conduit-lang/entityorm/internal/orm/entity"
	"github.com/conduit-lang/entityorm/internal/orm/schema"
)

// loadForeignKeys sets the referenced entities of each foreign key whose
// fetch depth limit exceeds depth. Referenced entities are selected with one
// statement per foreign key; references without a matching row are set to a
// key only entity.
func (o *Operations) loadForeignKeys(ctx context.Context, def *schema.EntityDefinition, entities []entity.Entity, sel condition.Select, depth int) error {
	if len(entities) == 0 {
		return nil
	}
	for _, fk := range def.ForeignKeys() {
		if !selected(sel, fk) {
			continue
		}
		limit := fetchDepth(sel, fk)
		if depth >= limit {
			continue
		}
		foreignKey := fk.ForeignKey()
		keys := entity.ReferencedKeys(foreignKey, entities)
		if len(keys) == 0 {
			continue
		}

		referenced, err := o.selectReferenced(ctx, fk, keys, limit, depth+1)
		if err != nil {
			return err
		}
		for _, e := range entities {
			key := e.Key(foreignKey)
			if key == nil || key.IsNull() {
				continue
			}
			target, ok := referenced.Get(key)
			if !ok {
				target = entity.FromKey(key)
			}
			if _, err := e.Put(foreignKey, target); err != nil {
				return fmt.Errorf("failed to set %s: %w", foreignKey, err)
			}
		}
	}
	return nil
}

// selectReferenced selects the entities identified by keys, mapped by their
// values of the columns referenced by fk
func (o *Operations) selectReferenced(ctx context.Context, fk *schema.ForeignKeyDefinition, keys []*entity.Key, limit, depth int) (*entity.KeyMap[entity.Entity], error) {
	sel := condition.Where(condition.Keys(keys...)).FetchDepth(limit).Build()
	entities, err := o.doSelect(ctx, fk.Referenced(), sel, depth)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", fk.ForeignKey(), err)
	}

	result := entity.NewKeyMap[entity.Entity]()
	for _, e := range entities {
		builder := entity.NewKeyBuilder(fk.Referenced())
		for _, ref := range fk.ForeignKey().References() {
			builder.With(ref.Foreign, e.Get(ref.Foreign))
		}
		key, err := builder.Build()
		if err != nil {
			return nil, err
		}
		result.Put(key, e)
	}
	return result, nil
}

// fetchDepth returns the foreign key fetch depth limit: the select override
// for the foreign key, else the select default, else the definition default
func fetchDepth(sel condition.Select, fk *schema.ForeignKeyDefinition) int {
	if depth, ok := sel.ForeignKeyFetchDepth(fk.ForeignKey()); ok {
		return depth
	}
	if depth, ok := sel.FetchDepth(); ok {
		return depth
	}
	return fk.FetchDepth()
}

// selected returns true if the select includes fk, all foreign keys being
// included when no attributes are specified
func selected(sel condition.Select, fk *schema.ForeignKeyDefinition) bool {
	attributes := sel.Attributes()
	if len(attributes) == 0 {
		return true
	}
	for _, attribute := range attributes {
		if schema.SameAttribute(attribute, fk.ForeignKey()) {
			return true
		}
	}
	return false
}
