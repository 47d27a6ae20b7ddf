package crud

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/entityorm/internal/orm/condition"
	"github.com/conduit-lang/entityorm/internal/orm/entity"
	"github.com/conduit-lang/entityorm/internal/orm/schema"
)

// Update updates the modified columns of entities within a transaction,
// identifying each row by its original primary key. It returns the updated
// entities as selected after the update. The given entities are saved once
// the transaction commits.
//
// With optimistic locking enabled the rows are first selected for update and
// compared with the original values of each entity, failing with a
// RecordModifiedError when another transaction changed or deleted a row.
func (o *Operations) Update(ctx context.Context, entities ...entity.Entity) ([]entity.Entity, error) {
	var updated []entity.Entity
	err := o.inTransaction(ctx, OperationUpdate, func(ctx context.Context) error {
		order, groups := entity.GroupByType(entities)
		for _, entityType := range order {
			def, err := o.definition(entityType)
			if err != nil {
				return err
			}
			selected, err := o.updateType(ctx, def, groups[entityType])
			if err != nil {
				return err
			}
			updated = append(updated, selected...)
		}
		saveOnCommit(ctx, entities)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (o *Operations) updateType(ctx context.Context, def *schema.EntityDefinition, entities []entity.Entity) ([]entity.Entity, error) {
	if err := writable(def, OperationUpdate); err != nil {
		return nil, err
	}
	if !def.HasPrimaryKey() {
		return nil, schema.ContractViolation("cannot update %s, it has no primary key", def.Type())
	}
	for _, e := range entities {
		if !e.Mutable() {
			return nil, schema.ContractViolation("cannot update an immutable %s", e.Type())
		}
		if err := o.validator.ValidateUpdate(e); err != nil {
			return nil, fmt.Errorf("failed to update %s: %w", e.Type(), err)
		}
	}
	if o.optimisticLocking {
		if err := o.checkOriginals(ctx, def, entities); err != nil {
			return nil, err
		}
	}

	keys := make([]*entity.Key, 0, len(entities))
	for _, e := range entities {
		if err := o.update(ctx, def, e); err != nil {
			return nil, err
		}
		keys = append(keys, e.PrimaryKey())
	}
	selected, err := o.doSelect(ctx, def, condition.Where(condition.Keys(keys...)).Build(), 0)
	if err != nil {
		return nil, err
	}
	if len(selected) != len(entities) {
		return nil, fmt.Errorf("%w: %d updated %s rows expected, query returned %d",
			ErrRecordModified, len(entities), def.Type(), len(selected))
	}
	return selected, nil
}

func (o *Operations) update(ctx context.Context, def *schema.EntityDefinition, e entity.Entity) error {
	key := e.OriginalPrimaryKey()
	var assignments []string
	var values []any
	for _, column := range def.Columns() {
		attribute := column.Attribute()
		if !column.Updatable() || !e.IsModified(attribute) {
			continue
		}
		assignments = append(assignments, column.ColumnName()+" = ?")
		values = append(values, e.Get(attribute))
	}
	if len(assignments) == 0 {
		return fmt.Errorf("failed to update %s: no modified values", key)
	}

	where := condition.Key(key)
	query := "update " + def.TableName() + " set " + strings.Join(assignments, ", ") + " where " + where.SQL(def)
	result, err := o.conn.Exec(ctx, query, append(values, where.Values()...)...)
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", key, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update %s: %w", key, err)
	}
	if affected == 0 {
		return fmt.Errorf("failed to update %s: %w", key, ErrRecordModified)
	}
	o.logger.Debug("updated", zap.Stringer("type", def.Type()), zap.Stringer("key", key))
	return nil
}

// checkOriginals locks the rows of entities and compares their updatable
// column values with the original values of each entity
func (o *Operations) checkOriginals(ctx context.Context, def *schema.EntityDefinition, entities []entity.Entity) error {
	var attributes []schema.Attribute
	for _, column := range lockColumns(def) {
		attributes = append(attributes, column.Attribute())
	}
	sel := condition.Where(condition.Keys(entity.OriginalPrimaryKeys(entities)...)).
		ForUpdate().
		Attributes(attributes...).
		Build()
	current, err := o.doSelect(ctx, def, sel, 0)
	if err != nil {
		return err
	}

	byKey := entity.MapToPrimaryKey(current)
	for _, e := range entities {
		row, ok := byKey.Get(e.OriginalPrimaryKey())
		if !ok {
			return &RecordModifiedError{Entity: e}
		}
		if modified := modifiedColumns(def, e, row); len(modified) > 0 {
			return &RecordModifiedError{Entity: e, Current: row, Modified: modified}
		}
	}
	return nil
}

// lockColumns returns the primary key and the non-lazy updatable columns
func lockColumns(def *schema.EntityDefinition) []*schema.ColumnDefinition {
	var columns []*schema.ColumnDefinition
	for _, column := range def.Columns() {
		if column.PrimaryKey() || (column.Updatable() && !column.Lazy()) {
			columns = append(columns, column)
		}
	}
	return columns
}

// modifiedColumns returns the columns whose current database value differs
// from the original value held by e
func modifiedColumns(def *schema.EntityDefinition, e, current entity.Entity) []schema.Attribute {
	var modified []schema.Attribute
	for _, column := range lockColumns(def) {
		attribute := column.Attribute()
		if column.PrimaryKey() || !e.Contains(attribute) {
			continue
		}
		if !schema.ValuesEqual(e.Original(attribute), current.Get(attribute)) {
			modified = append(modified, attribute)
		}
	}
	return modified
}

// UpdateWhere applies the assignments of update to the rows matching its
// condition, returning the number of rows updated
func (o *Operations) UpdateWhere(ctx context.Context, update condition.Update) (int64, error) {
	def, err := o.definition(update.Where().EntityType())
	if err != nil {
		return 0, err
	}
	if err := writable(def, OperationUpdate); err != nil {
		return 0, err
	}

	assignments := update.Assignments()
	sets := make([]string, len(assignments))
	values := make([]any, 0, len(assignments))
	for i, assignment := range assignments {
		column, ok := def.Column(assignment.Column)
		if !ok {
			return 0, schema.ContractViolation("%s is not a column of %s", assignment.Column, def.Type())
		}
		if !column.Updatable() {
			return 0, schema.ContractViolation("column %s is not updatable", assignment.Column)
		}
		sets[i] = column.ColumnName() + " = ?"
		values = append(values, assignment.Value)
	}

	where := update.Where()
	query := "update " + def.TableName() + " set " + strings.Join(sets, ", ") + whereClause(where, def)
	var affected int64
	err = o.inTransaction(ctx, OperationUpdate, func(ctx context.Context) error {
		result, err := o.conn.Exec(ctx, query, append(values, where.Values()...)...)
		if err != nil {
			return fmt.Errorf("failed to update %s: %w", def.Type(), err)
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return affected, nil
}
