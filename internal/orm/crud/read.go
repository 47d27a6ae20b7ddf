package crud

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/entityorm/internal/orm/condition"
	"github.com/conduit-lang/entityorm/internal/orm/dialect"
	"github.com/conduit-lang/entityorm/internal/orm/entity"
	"github.com/conduit-lang/entityorm/internal/orm/schema"
)

// Select returns the entities matching sel, in the order of sel or the
// default order of the entity type
func (o *Operations) Select(ctx context.Context, sel condition.Select) ([]entity.Entity, error) {
	def, err := o.definition(sel.EntityType())
	if err != nil {
		return nil, err
	}
	entities, err := o.doSelect(ctx, def, sel, 0)
	if err != nil {
		o.logger.Warn("select failed", zap.Stringer("type", def.Type()), zap.Error(err))
		return nil, err
	}
	return entities, nil
}

// SelectSingle returns the single entity matching where. It fails with
// ErrNotFound when none matches and ErrMultipleRecords when more than one does.
func (o *Operations) SelectSingle(ctx context.Context, where condition.Condition) (entity.Entity, error) {
	entities, err := o.Select(ctx, condition.Where(where).Build())
	if err != nil {
		return nil, err
	}
	switch len(entities) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, where.EntityType())
	case 1:
		return entities[0], nil
	default:
		return nil, fmt.Errorf("%w: %d %s records", ErrMultipleRecords, len(entities), where.EntityType())
	}
}

// SelectKey returns the entity identified by key
func (o *Operations) SelectKey(ctx context.Context, key *entity.Key) (entity.Entity, error) {
	return o.SelectSingle(ctx, condition.Key(key))
}

// SelectByKey returns the entities identified by keys, which may be of
// different entity types. Keys without a matching row are ignored.
func (o *Operations) SelectByKey(ctx context.Context, keys ...*entity.Key) ([]entity.Entity, error) {
	var result []entity.Entity
	order, groups := entity.GroupKeysByType(keys)
	for _, entityType := range order {
		entities, err := o.Select(ctx, condition.Where(condition.Keys(groups[entityType]...)).Build())
		if err != nil {
			return nil, err
		}
		result = append(result, entities...)
	}
	return result, nil
}

// Count returns the number of rows matching where
func (o *Operations) Count(ctx context.Context, where condition.Condition) (int, error) {
	def, err := o.definition(where.EntityType())
	if err != nil {
		return 0, err
	}
	query := "select count(*) from " + def.TableName() + whereClause(where, def)
	var count int
	if err := o.conn.QueryScalar(ctx, query, &count, where.Values()...); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", def.Type(), err)
	}
	return count, nil
}

// SelectValues returns the distinct non-null values of column in the rows
// matching where, ordered by value
func (o *Operations) SelectValues(ctx context.Context, column schema.Attribute, where condition.Condition) ([]any, error) {
	def, err := o.definition(column.EntityType())
	if err != nil {
		return nil, err
	}
	columnDefinition, ok := def.Column(column)
	if !ok {
		return nil, schema.ContractViolation("%s is not a column of %s", column, def.Type())
	}
	if where.EntityType() != def.Type() {
		return nil, schema.ContractViolation("condition on %s cannot restrict %s", where.EntityType(), column)
	}

	expression := columnDefinition.Expression()
	restriction := expression + " is not null"
	if sql := where.SQL(def); sql != "" {
		restriction = sql + " and " + restriction
	}
	query := "select distinct " + expression + " from " + def.TableName() + " where " + restriction + " order by " + expression

	rows, err := o.conn.Query(ctx, query, where.Values()...)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", column, err)
	}
	defer rows.Close()
	return scanValues(rows, column)
}

// doSelect selects the entities matching sel, loading foreign keys below
// their fetch depth limit
func (o *Operations) doSelect(ctx context.Context, def *schema.EntityDefinition, sel condition.Select, depth int) ([]entity.Entity, error) {
	columns := selectColumns(def, sel.Attributes())
	query := selectStatement(o.conn.Dialect(), def, columns, sel)

	rows, err := o.conn.Query(ctx, query, sel.Where().Values()...)
	if err != nil {
		return nil, fmt.Errorf("failed to select %s: %w", def.Type(), err)
	}
	entities, err := scanEntities(rows, def, columns)
	rows.Close()
	if err != nil {
		return nil, err
	}

	if !sel.ForUpdate() {
		if err := o.loadForeignKeys(ctx, def, entities, sel, depth); err != nil {
			return nil, err
		}
	}
	o.logger.Debug("selected", zap.Stringer("type", def.Type()), zap.Int("rows", len(entities)), zap.Int("depth", depth))
	return entities, nil
}

// selectColumns returns the columns to select in definition order. When
// attributes are given only those are selected, along with the primary key
// and the reference columns of the given foreign keys.
func selectColumns(def *schema.EntityDefinition, attributes []schema.Attribute) []*schema.ColumnDefinition {
	if len(attributes) == 0 {
		return def.SelectColumns()
	}
	included := make(map[string]bool, len(attributes))
	for _, attribute := range attributes {
		included[attribute.Name()] = true
		if foreignKey, ok := attribute.(*schema.ForeignKey); ok {
			for _, ref := range foreignKey.References() {
				included[ref.Column.Name()] = true
			}
		}
	}
	var columns []*schema.ColumnDefinition
	for _, column := range def.Columns() {
		if column.PrimaryKey() || included[column.Attribute().Name()] {
			columns = append(columns, column)
		}
	}
	return columns
}

func selectStatement(d dialect.Dialect, def *schema.EntityDefinition, columns []*schema.ColumnDefinition, sel condition.Select) string {
	expressions := make([]string, len(columns))
	for i, column := range columns {
		expressions[i] = column.Expression()
	}

	var b strings.Builder
	b.WriteString("select ")
	b.WriteString(strings.Join(expressions, ", "))
	b.WriteString(" from ")
	b.WriteString(def.TableName())
	b.WriteString(whereClause(sel.Where(), def))

	orderBy := sel.OrderBy()
	if orderBy == nil {
		orderBy = def.OrderBy()
	}
	if orderBy != nil && len(orderBy.Orders()) > 0 {
		b.WriteString(" order by ")
		b.WriteString(orderBy.SQL(def))
	}
	if sel.Limit() > 0 || sel.Offset() > 0 {
		b.WriteString(" ")
		b.WriteString(d.LimitOffset(sel.Limit(), sel.Offset()))
	}
	if sel.ForUpdate() {
		if clause := d.ForUpdate(); clause != "" {
			b.WriteString(" ")
			b.WriteString(clause)
		}
	}
	return b.String()
}

func whereClause(where condition.Condition, def *schema.EntityDefinition) string {
	if sql := where.SQL(def); sql != "" {
		return " where " + sql
	}
	return ""
}
