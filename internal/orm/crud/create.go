package crud

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/entityorm/internal/orm/entity"
	"github.com/conduit-lang/entityorm/internal/orm/schema"
)

// Insert inserts entities within a transaction, returning their primary keys
// in order. Key generators populate the primary key of each entity. The
// entities are saved, no longer reporting modified values, once the
// transaction commits.
func (o *Operations) Insert(ctx context.Context, entities ...entity.Entity) ([]*entity.Key, error) {
	keys := make([]*entity.Key, 0, len(entities))
	err := o.inTransaction(ctx, OperationInsert, func(ctx context.Context) error {
		for _, e := range entities {
			key, err := o.insert(ctx, e)
			if err != nil {
				return err
			}
			keys = append(keys, key)
		}
		saveOnCommit(ctx, entities)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (o *Operations) insert(ctx context.Context, e entity.Entity) (*entity.Key, error) {
	def, err := o.definition(e.Type())
	if err != nil {
		return nil, err
	}
	if err := writable(def, OperationInsert); err != nil {
		return nil, err
	}
	if !e.Mutable() {
		return nil, schema.ContractViolation("cannot insert an immutable %s", e.Type())
	}
	if err := o.validator.ValidateInsert(e); err != nil {
		return nil, fmt.Errorf("failed to insert %s: %w", e.Type(), err)
	}

	generator := def.KeyGenerator()
	if err := generator.BeforeInsert(ctx, e, def, o.conn); err != nil {
		return nil, fmt.Errorf("failed to insert %s: %w", e.Type(), err)
	}

	columns, values := insertValues(def, e, generator.Inserted())
	if len(columns) == 0 {
		return nil, fmt.Errorf("failed to insert %s: no values to insert", e.Type())
	}
	query := insertStatement(def, columns)

	var result sql.Result
	if returning := o.returningColumn(def); returning != nil {
		dest := reflect.New(returning.Attribute().Type())
		if err := o.conn.QueryScalar(ctx, query+" returning "+returning.ColumnName(), dest.Interface(), values...); err != nil {
			return nil, fmt.Errorf("failed to insert %s: %w", e.Type(), err)
		}
		if _, err := e.Put(returning.Attribute(), dest.Elem().Interface()); err != nil {
			return nil, err
		}
	} else {
		result, err = o.conn.Exec(ctx, query, values...)
		if err != nil {
			return nil, fmt.Errorf("failed to insert %s: %w", e.Type(), err)
		}
	}

	if err := generator.AfterInsert(ctx, e, def, o.conn, result); err != nil {
		return nil, fmt.Errorf("failed to insert %s: %w", e.Type(), err)
	}
	key := e.PrimaryKey()
	o.logger.Debug("inserted", zap.Stringer("type", e.Type()), zap.Stringer("key", key))
	return key, nil
}

// returningColumn returns the generated primary key column to return from the
// insert statement on dialects without last insert id support, nil otherwise
func (o *Operations) returningColumn(def *schema.EntityDefinition) *schema.ColumnDefinition {
	if !def.KeyGenerator().Generated() || o.conn.Dialect().SupportsLastInsertID() {
		return nil
	}
	pk := def.PrimaryKeyColumns()
	if len(pk) != 1 {
		return nil
	}
	return pk[0]
}

// insertValues returns the insertable columns holding non-null values,
// primary key columns only when included by the key generator
func insertValues(def *schema.EntityDefinition, e entity.Entity, includePrimaryKey bool) ([]*schema.ColumnDefinition, []any) {
	var columns []*schema.ColumnDefinition
	var values []any
	for _, column := range def.Columns() {
		if !column.Insertable() || (column.PrimaryKey() && !includePrimaryKey) {
			continue
		}
		attribute := column.Attribute()
		if !e.Contains(attribute) || e.IsNull(attribute) {
			continue
		}
		columns = append(columns, column)
		values = append(values, e.Get(attribute))
	}
	return columns, values
}

func insertStatement(def *schema.EntityDefinition, columns []*schema.ColumnDefinition) string {
	names := make([]string, len(columns))
	placeholders := make([]string, len(columns))
	for i, column := range columns {
		names[i] = column.ColumnName()
		placeholders[i] = "?"
	}
	return "insert into " + def.TableName() + " (" + strings.Join(names, ", ") + ") values (" + strings.Join(placeholders, ", ") + ")"
}
