package condition

import (
	"github.com/conduit-lang/entityorm/internal/orm/schema"
)

// Select is a condition with the ordering, paging, locking and foreign key
// fetch depth of a select statement
type Select struct {
	where                Condition
	orderBy              *schema.OrderBy
	limit                int
	offset               int
	forUpdate            bool
	fetchDepth           *int
	foreignKeyFetchDepth map[string]int
	attributes           []schema.Attribute
}

// Where returns the condition
func (s Select) Where() Condition { return s.where }

// EntityType returns the entity type being selected
func (s Select) EntityType() schema.EntityType { return s.where.EntityType() }

// OrderBy returns the order by clause, nil for the definition default
func (s Select) OrderBy() *schema.OrderBy { return s.orderBy }

// Limit returns the maximum number of rows, 0 for no limit
func (s Select) Limit() int { return s.limit }

// Offset returns the number of rows to skip
func (s Select) Offset() int { return s.offset }

// ForUpdate returns true if the selected rows should be locked
func (s Select) ForUpdate() bool { return s.forUpdate }

// FetchDepth returns the fetch depth overriding the foreign key defaults, if any
func (s Select) FetchDepth() (int, bool) {
	if s.fetchDepth == nil {
		return 0, false
	}
	return *s.fetchDepth, true
}

// ForeignKeyFetchDepth returns the fetch depth override for foreignKey, if any
func (s Select) ForeignKeyFetchDepth(foreignKey *schema.ForeignKey) (int, bool) {
	depth, ok := s.foreignKeyFetchDepth[foreignKey.Name()]
	return depth, ok
}

// Attributes returns the attributes to select, empty for all
func (s Select) Attributes() []schema.Attribute {
	return append([]schema.Attribute(nil), s.attributes...)
}

// SelectBuilder builds a Select
type SelectBuilder struct {
	sel Select
}

// Where starts a select using condition
func Where(condition Condition) *SelectBuilder {
	return &SelectBuilder{sel: Select{where: condition}}
}

// OrderBy sets the order by clause
func (b *SelectBuilder) OrderBy(orderBy schema.OrderBy) *SelectBuilder {
	b.sel.orderBy = &orderBy
	return b
}

// Limit sets the maximum number of rows
func (b *SelectBuilder) Limit(limit int) *SelectBuilder {
	if limit < 0 {
		panic(schema.ContractViolation("limit must be non-negative: %d", limit))
	}
	b.sel.limit = limit
	return b
}

// Offset sets the number of rows to skip
func (b *SelectBuilder) Offset(offset int) *SelectBuilder {
	if offset < 0 {
		panic(schema.ContractViolation("offset must be non-negative: %d", offset))
	}
	b.sel.offset = offset
	return b
}

// ForUpdate locks the selected rows, fetch depth defaults to 0
func (b *SelectBuilder) ForUpdate() *SelectBuilder {
	b.sel.forUpdate = true
	if b.sel.fetchDepth == nil {
		depth := 0
		b.sel.fetchDepth = &depth
	}
	return b
}

// FetchDepth sets the number of foreign key levels to select for all foreign keys
func (b *SelectBuilder) FetchDepth(depth int) *SelectBuilder {
	if depth < 0 {
		panic(schema.ContractViolation("fetch depth must be non-negative: %d", depth))
	}
	b.sel.fetchDepth = &depth
	return b
}

// ForeignKeyFetchDepth sets the number of levels to select for foreignKey
func (b *SelectBuilder) ForeignKeyFetchDepth(foreignKey *schema.ForeignKey, depth int) *SelectBuilder {
	if depth < 0 {
		panic(schema.ContractViolation("fetch depth must be non-negative: %d", depth))
	}
	if foreignKey.EntityType() != b.sel.where.EntityType() {
		panic(schema.ContractViolation("foreign key %s is not part of %s", foreignKey, b.sel.where.EntityType()))
	}
	if b.sel.foreignKeyFetchDepth == nil {
		b.sel.foreignKeyFetchDepth = make(map[string]int)
	}
	b.sel.foreignKeyFetchDepth[foreignKey.Name()] = depth
	return b
}

// Attributes restricts the selected attributes, primary key columns are always selected
func (b *SelectBuilder) Attributes(attributes ...schema.Attribute) *SelectBuilder {
	for _, attribute := range attributes {
		if attribute.EntityType() != b.sel.where.EntityType() {
			panic(schema.ContractViolation("attribute %s is not part of %s", attribute, b.sel.where.EntityType()))
		}
	}
	b.sel.attributes = append([]schema.Attribute(nil), attributes...)
	return b
}

// Build returns the select
func (b *SelectBuilder) Build() Select {
	sel := b.sel
	if sel.foreignKeyFetchDepth != nil {
		depths := make(map[string]int, len(sel.foreignKeyFetchDepth))
		for name, depth := range sel.foreignKeyFetchDepth {
			depths[name] = depth
		}
		sel.foreignKeyFetchDepth = depths
	}
	return sel
}

// Assignment is a column value assignment of an Update
type Assignment struct {
	Column schema.Attribute
	Value  any
}

// Update is a condition with the column assignments of an update statement
type Update struct {
	where       Condition
	assignments []Assignment
}

// Where returns the condition
func (u Update) Where() Condition { return u.where }

// Assignments returns the column assignments in order
func (u Update) Assignments() []Assignment {
	return append([]Assignment(nil), u.assignments...)
}

// UpdateBuilder builds an Update
type UpdateBuilder struct {
	where       Condition
	assignments []Assignment
}

// UpdateWhere starts an update of the rows matching condition
func UpdateWhere(condition Condition) *UpdateBuilder {
	return &UpdateBuilder{where: condition}
}

// Set assigns value to column, replacing a previous assignment of column
func (b *UpdateBuilder) Set(column schema.Attribute, value any) *UpdateBuilder {
	if column.EntityType() != b.where.EntityType() {
		panic(schema.ContractViolation("column %s is not part of %s", column, b.where.EntityType()))
	}
	if err := column.ValidateType(value); err != nil {
		panic(err)
	}
	for i, assignment := range b.assignments {
		if schema.SameAttribute(assignment.Column, column) {
			b.assignments[i].Value = value
			return b
		}
	}
	b.assignments = append(b.assignments, Assignment{Column: column, Value: value})
	return b
}

// Build returns the update. It panics when no column is assigned.
func (b *UpdateBuilder) Build() Update {
	if len(b.assignments) == 0 {
		panic(schema.ContractViolation("update of %s requires at least one assignment", b.where.EntityType()))
	}
	return Update{
		where:       b.where,
		assignments: append([]Assignment(nil), b.assignments...),
	}
}
