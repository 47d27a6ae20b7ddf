package condition

import (
	"github.com/conduit-lang/entityorm/internal/orm/entity"
	"github.com/conduit-lang/entityorm/internal/orm/schema"
)

// ForeignKeyConditions builds conditions for a foreign key, decomposed into
// conditions on its reference columns
type ForeignKeyConditions struct {
	foreignKey *schema.ForeignKey
}

// ForeignKey returns the condition builder for foreignKey
func ForeignKey(foreignKey *schema.ForeignKey) ForeignKeyConditions {
	return ForeignKeyConditions{foreignKey: foreignKey}
}

// EqualTo returns a condition matching the referenced entity, is null when nil
func (f ForeignKeyConditions) EqualTo(referenced entity.Entity) Condition {
	if referenced == nil {
		return f.IsNull()
	}
	f.checkType(referenced)
	return f.compare(Equal, referenced)
}

// NotEqualTo returns a condition not matching the referenced entity, is not null when nil
func (f ForeignKeyConditions) NotEqualTo(referenced entity.Entity) Condition {
	if referenced == nil {
		return f.IsNotNull()
	}
	f.checkType(referenced)
	return f.compare(NotEqual, referenced)
}

// In returns a condition matching any of the referenced entities. Composite
// foreign keys render one and group per entity joined with or.
func (f ForeignKeyConditions) In(referenced ...entity.Entity) Condition {
	return f.in(In, referenced)
}

// NotIn returns a condition matching none of the referenced entities.
// Composite foreign keys render one not equal group per entity joined with or.
func (f ForeignKeyConditions) NotIn(referenced ...entity.Entity) Condition {
	return f.in(NotIn, referenced)
}

// IsNull returns a condition matching rows where all reference columns are null
func (f ForeignKeyConditions) IsNull() Condition {
	return f.nullCondition(Equal)
}

// IsNotNull returns a condition matching rows where no reference column is null
func (f ForeignKeyConditions) IsNotNull() Condition {
	return f.nullCondition(NotEqual)
}

func (f ForeignKeyConditions) in(operator Operator, referenced []entity.Entity) Condition {
	singleOperator := Equal
	if operator == NotIn {
		singleOperator = NotEqual
	}
	switch len(referenced) {
	case 0:
		return f.nullCondition(singleOperator)
	case 1:
		if referenced[0] == nil {
			return f.nullCondition(singleOperator)
		}
		f.checkType(referenced[0])
		return f.compare(singleOperator, referenced[0])
	}
	for _, e := range referenced {
		if e == nil {
			panic(schema.ContractViolation("null entities are not supported by %s conditions on %s", operator, f.foreignKey))
		}
		f.checkType(e)
	}
	references := f.foreignKey.References()
	if len(references) == 1 {
		values := make([]any, len(referenced))
		for i, e := range referenced {
			values[i] = e.Get(references[0].Foreign)
		}
		return in(references[0].Column, operator, values, false)
	}
	conditions := make([]Condition, len(referenced))
	for i, e := range referenced {
		conditions[i] = f.compare(singleOperator, e)
	}
	return Or(conditions...)
}

// compare compares each reference column with the referenced value, joined with and
func (f ForeignKeyConditions) compare(operator Operator, referenced entity.Entity) Condition {
	references := f.foreignKey.References()
	conditions := make([]Condition, len(references))
	for i, ref := range references {
		conditions[i] = &single{attribute: ref.Column, operator: operator, value: referenced.Get(ref.Foreign)}
	}
	if len(conditions) == 1 {
		return conditions[0]
	}
	return And(conditions...)
}

func (f ForeignKeyConditions) nullCondition(operator Operator) Condition {
	references := f.foreignKey.References()
	conditions := make([]Condition, len(references))
	for i, ref := range references {
		conditions[i] = &single{attribute: ref.Column, operator: operator}
	}
	if len(conditions) == 1 {
		return conditions[0]
	}
	return And(conditions...)
}

func (f ForeignKeyConditions) checkType(referenced entity.Entity) {
	if referenced.Type() != f.foreignKey.ReferencedType() {
		panic(schema.ContractViolation("entity of type %s expected for %s, got %s", f.foreignKey.ReferencedType(), f.foreignKey, referenced.Type()))
	}
}

// Key returns a condition matching the row identified by key
func Key(key *entity.Key) Condition {
	columns := key.Columns()
	if len(columns) == 0 {
		panic(schema.ContractViolation("key of %s has no columns", key.Type()))
	}
	values := key.Values()
	conditions := make([]Condition, len(columns))
	for i, column := range columns {
		conditions[i] = &single{attribute: column, operator: Equal, value: values[i]}
	}
	if len(conditions) == 1 {
		return conditions[0]
	}
	return And(conditions...)
}

// Keys returns a condition matching the rows identified by keys. Single
// column keys render an in condition, composite keys one and group per key
// joined with or. It panics when no keys are given or the keys differ in
// entity type or columns.
func Keys(keys ...*entity.Key) Condition {
	if len(keys) == 0 {
		panic(schema.ContractViolation("at least one key is required"))
	}
	first := keys[0]
	for _, key := range keys[1:] {
		if key.Type() != first.Type() || !sameColumns(key, first) {
			panic(schema.ContractViolation("keys must share entity type and columns, %s differs from %s", key, first))
		}
	}
	if len(keys) == 1 {
		return Key(first)
	}
	if first.Single() {
		values := make([]any, len(keys))
		for i, key := range keys {
			values[i] = key.Value()
		}
		return in(first.Column(), In, values, false)
	}
	conditions := make([]Condition, len(keys))
	for i, key := range keys {
		conditions[i] = Key(key)
	}
	return Or(conditions...)
}

func sameColumns(a, b *entity.Key) bool {
	ac, bc := a.Columns(), b.Columns()
	if len(ac) != len(bc) {
		return false
	}
	for i := range ac {
		if !schema.SameAttribute(ac[i], bc[i]) {
			return false
		}
	}
	return true
}
