package crud

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/entityorm/internal/orm/condition"
	"github.com/conduit-lang/entityorm/internal/orm/entity"
	"github.com/conduit-lang/entityorm/internal/orm/schema"
)

// Delete deletes the rows identified by keys within a transaction. It fails
// with ErrNotFound, rolling back, when fewer rows than keys are deleted.
func (o *Operations) Delete(ctx context.Context, keys ...*entity.Key) error {
	if len(keys) == 0 {
		return nil
	}
	return o.inTransaction(ctx, OperationDelete, func(ctx context.Context) error {
		order, groups := entity.GroupKeysByType(keys)
		for _, entityType := range order {
			def, err := o.definition(entityType)
			if err != nil {
				return err
			}
			group := groups[entityType]
			deleted, err := o.deleteWhere(ctx, def, condition.Keys(group...))
			if err != nil {
				return err
			}
			if deleted != int64(len(group)) {
				return fmt.Errorf("%w: deleted %d of %d %s rows", ErrNotFound, deleted, len(group), entityType)
			}
		}
		return nil
	})
}

// DeleteWhere deletes the rows matching where, returning the number of rows deleted
func (o *Operations) DeleteWhere(ctx context.Context, where condition.Condition) (int64, error) {
	def, err := o.definition(where.EntityType())
	if err != nil {
		return 0, err
	}
	var deleted int64
	err = o.inTransaction(ctx, OperationDelete, func(ctx context.Context) error {
		deleted, err = o.deleteWhere(ctx, def, where)
		return err
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (o *Operations) deleteWhere(ctx context.Context, def *schema.EntityDefinition, where condition.Condition) (int64, error) {
	if err := writable(def, OperationDelete); err != nil {
		return 0, err
	}
	query := "delete from " + def.TableName() + whereClause(where, def)
	result, err := o.conn.Exec(ctx, query, where.Values()...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s: %w", def.Type(), err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s: %w", def.Type(), err)
	}
	o.logger.Debug("deleted", zap.Stringer("type", def.Type()), zap.Int64("rows", deleted))
	return deleted, nil
}
