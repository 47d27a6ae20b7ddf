package condition

import (
	"github.com/conduit-lang/entityorm/internal/orm/schema"
)

// ColumnConditions builds conditions for a typed column
type ColumnConditions[T any] struct {
	column schema.Column[T]
}

// Column returns the condition builder for column
func Column[T any](column schema.Column[T]) ColumnConditions[T] {
	return ColumnConditions[T]{column: column}
}

// EqualTo returns a condition matching value, rendered as like when value
// is a string containing wildcards
func (c ColumnConditions[T]) EqualTo(value T) Condition {
	return &single{attribute: c.column, operator: Equal, value: value}
}

// NotEqualTo returns a condition not matching value
func (c ColumnConditions[T]) NotEqualTo(value T) Condition {
	return &single{attribute: c.column, operator: NotEqual, value: value}
}

// EqualToIgnoreCase returns a case insensitive EqualTo, string columns only
func (c ColumnConditions[T]) EqualToIgnoreCase(value T) Condition {
	checkCaseInsensitive(c.column)
	return &single{attribute: c.column, operator: Equal, value: value, caseInsensitive: true}
}

// NotEqualToIgnoreCase returns a case insensitive NotEqualTo, string columns only
func (c ColumnConditions[T]) NotEqualToIgnoreCase(value T) Condition {
	checkCaseInsensitive(c.column)
	return &single{attribute: c.column, operator: NotEqual, value: value, caseInsensitive: true}
}

// Like returns a like condition, string columns only
func (c ColumnConditions[T]) Like(pattern T) Condition {
	checkLike(c.column)
	return &single{attribute: c.column, operator: Equal, value: pattern, like: true}
}

// NotLike returns a not like condition, string columns only
func (c ColumnConditions[T]) NotLike(pattern T) Condition {
	checkLike(c.column)
	return &single{attribute: c.column, operator: NotEqual, value: pattern, like: true}
}

// LikeIgnoreCase returns a case insensitive like condition, string columns only
func (c ColumnConditions[T]) LikeIgnoreCase(pattern T) Condition {
	checkCaseInsensitive(c.column)
	return &single{attribute: c.column, operator: Equal, value: pattern, like: true, caseInsensitive: true}
}

// In returns a condition matching any of values. No values renders is null,
// a single value is equivalent to EqualTo.
func (c ColumnConditions[T]) In(values ...T) Condition {
	return in(c.column, In, toAny(values), false)
}

// NotIn returns a condition matching none of values. No values renders is not
// null, a single value is equivalent to NotEqualTo.
func (c ColumnConditions[T]) NotIn(values ...T) Condition {
	return in(c.column, NotIn, toAny(values), false)
}

// InIgnoreCase returns a case insensitive In, string columns only
func (c ColumnConditions[T]) InIgnoreCase(values ...T) Condition {
	checkCaseInsensitive(c.column)
	return in(c.column, In, toAny(values), true)
}

// NotInIgnoreCase returns a case insensitive NotIn, string columns only
func (c ColumnConditions[T]) NotInIgnoreCase(values ...T) Condition {
	checkCaseInsensitive(c.column)
	return in(c.column, NotIn, toAny(values), true)
}

// LessThan returns a col < value condition
func (c ColumnConditions[T]) LessThan(value T) Condition {
	return &single{attribute: c.column, operator: LessThan, value: value}
}

// LessThanOrEqualTo returns a col <= value condition
func (c ColumnConditions[T]) LessThanOrEqualTo(value T) Condition {
	return &single{attribute: c.column, operator: LessThanOrEqual, value: value}
}

// GreaterThan returns a col > value condition
func (c ColumnConditions[T]) GreaterThan(value T) Condition {
	return &single{attribute: c.column, operator: GreaterThan, value: value}
}

// GreaterThanOrEqualTo returns a col >= value condition
func (c ColumnConditions[T]) GreaterThanOrEqualTo(value T) Condition {
	return &single{attribute: c.column, operator: GreaterThanOrEqual, value: value}
}

// Between returns an inclusive range condition
func (c ColumnConditions[T]) Between(lower, upper T) Condition {
	return &dual{attribute: c.column, operator: Between, lower: lower, upper: upper}
}

// BetweenExclusive returns an exclusive range condition
func (c ColumnConditions[T]) BetweenExclusive(lower, upper T) Condition {
	return &dual{attribute: c.column, operator: BetweenExclusive, lower: lower, upper: upper}
}

// NotBetween returns a condition matching values outside the inclusive range
func (c ColumnConditions[T]) NotBetween(lower, upper T) Condition {
	return &dual{attribute: c.column, operator: NotBetween, lower: lower, upper: upper}
}

// NotBetweenExclusive returns a condition matching values outside the exclusive range
func (c ColumnConditions[T]) NotBetweenExclusive(lower, upper T) Condition {
	return &dual{attribute: c.column, operator: NotBetweenExclusive, lower: lower, upper: upper}
}

// IsNull returns a col is null condition
func (c ColumnConditions[T]) IsNull() Condition {
	return &single{attribute: c.column, operator: Equal}
}

// IsNotNull returns a col is not null condition
func (c ColumnConditions[T]) IsNotNull() Condition {
	return &single{attribute: c.column, operator: NotEqual}
}

// Equals returns a condition matching any of values on an untyped attribute.
// No values or a nil value renders is null.
func Equals(attribute schema.Attribute, values ...any) Condition {
	checkValues(attribute, values)
	return in(attribute, In, values, false)
}

// NotEquals returns a condition matching none of values on an untyped
// attribute. No values or a nil value renders is not null.
func NotEquals(attribute schema.Attribute, values ...any) Condition {
	checkValues(attribute, values)
	return in(attribute, NotIn, values, false)
}

// in returns the condition for an in or not in operator, degrading to a
// single value condition for zero or one values
func in(attribute schema.Attribute, operator Operator, values []any, caseInsensitive bool) Condition {
	singleOperator := Equal
	if operator == NotIn {
		singleOperator = NotEqual
	}
	switch len(values) {
	case 0:
		return &single{attribute: attribute, operator: singleOperator}
	case 1:
		return &single{attribute: attribute, operator: singleOperator, value: values[0], caseInsensitive: caseInsensitive && values[0] != nil}
	}
	for _, value := range values {
		if value == nil {
			panic(schema.ContractViolation("null values are not supported by %s conditions on %s", operator, attribute))
		}
	}
	return &multi{
		attribute:       attribute,
		operator:        operator,
		values:          append([]any(nil), values...),
		caseInsensitive: caseInsensitive,
	}
}

func checkLike(attribute schema.Attribute) {
	if attribute.Kind() != schema.KindString {
		panic(schema.ContractViolation("like conditions require a string attribute, %s is %s", attribute, attribute.Kind()))
	}
}

func toAny[T any](values []T) []any {
	result := make([]any, len(values))
	for i, value := range values {
		result[i] = value
	}
	return result
}
