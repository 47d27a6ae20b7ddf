// Package condition provides immutable predicate trees over the attributes of
// an entity type, rendered to parameterized SQL boolean expressions.
//
// Conditions render with `?` placeholders; Values returns the values in
// placeholder order. Misuse detected at construction, such as case
// insensitive comparison of non-string attributes or combining conditions of
// different entity types, panics with an error wrapping
// schema.ErrContractViolation.
package condition

import (
	"strings"

	"github.com/conduit-lang/entityorm/internal/orm/schema"
)

// InClauseLimit is the maximum number of values in a single in clause
const InClauseLimit = 100

// Condition is a predicate over the attributes of one entity type
type Condition interface {
	// EntityType returns the entity type the condition applies to
	EntityType() schema.EntityType
	// Values returns the values in placeholder order
	Values() []any
	// Attributes returns the attribute of each value, in placeholder order
	Attributes() []schema.Attribute
	// SQL renders the condition using the column expressions of definition,
	// an empty string meaning no restriction
	SQL(definition *schema.EntityDefinition) string
}

// Operator is a comparison operator
type Operator int

// Operators
const (
	Equal Operator = iota
	NotEqual
	LessThan
	LessThanOrEqual
	GreaterThan
	GreaterThanOrEqual
	Between
	BetweenExclusive
	NotBetween
	NotBetweenExclusive
	In
	NotIn
)

// String returns the operator name
func (o Operator) String() string {
	switch o {
	case Equal:
		return "equal"
	case NotEqual:
		return "not equal"
	case LessThan:
		return "less than"
	case LessThanOrEqual:
		return "less than or equal"
	case GreaterThan:
		return "greater than"
	case GreaterThanOrEqual:
		return "greater than or equal"
	case Between:
		return "between"
	case BetweenExclusive:
		return "between exclusive"
	case NotBetween:
		return "not between"
	case NotBetweenExclusive:
		return "not between exclusive"
	case In:
		return "in"
	case NotIn:
		return "not in"
	default:
		return "unknown"
	}
}

// Render returns the SQL and values of condition
func Render(condition Condition, definition *schema.EntityDefinition) (string, []any) {
	return condition.SQL(definition), condition.Values()
}

// all is the condition without restriction
type all struct {
	entityType schema.EntityType
}

// All returns a condition selecting all rows of entityType
func All(entityType schema.EntityType) Condition {
	return all{entityType: entityType}
}

func (a all) EntityType() schema.EntityType     { return a.entityType }
func (all) Values() []any                       { return nil }
func (all) Attributes() []schema.Attribute      { return nil }
func (all) SQL(*schema.EntityDefinition) string { return "" }

// column returns the column expression of attribute, case folded when
// caseInsensitive
func column(definition *schema.EntityDefinition, attribute schema.Attribute, caseInsensitive bool) string {
	columnDefinition, ok := definition.Column(attribute)
	if !ok {
		panic(schema.ContractViolation("%s is not a column of %s", attribute, definition.Type()))
	}
	if caseInsensitive {
		return "upper(" + columnDefinition.Expression() + ")"
	}
	return columnDefinition.Expression()
}

func placeholder(caseInsensitive bool) string {
	if caseInsensitive {
		return "upper(?)"
	}
	return "?"
}

func containsWildcards(value any) bool {
	s, ok := value.(string)
	return ok && strings.ContainsAny(s, "%_")
}

func checkCaseInsensitive(attribute schema.Attribute) {
	if attribute.Kind() != schema.KindString {
		panic(schema.ContractViolation("case insensitive conditions require a string attribute, %s is %s", attribute, attribute.Kind()))
	}
}

func checkValues(attribute schema.Attribute, values []any) {
	for _, value := range values {
		if err := attribute.ValidateType(value); err != nil {
			panic(err)
		}
	}
}

func repeat(attribute schema.Attribute, n int) []schema.Attribute {
	attributes := make([]schema.Attribute, n)
	for i := range attributes {
		attributes[i] = attribute
	}
	return attributes
}

// single compares an attribute with one value, nil values rendering is null
type single struct {
	attribute       schema.Attribute
	operator        Operator
	value           any
	like            bool
	caseInsensitive bool
}

func (s *single) EntityType() schema.EntityType { return s.attribute.EntityType() }

func (s *single) Values() []any {
	if s.value == nil {
		return nil
	}
	return []any{s.value}
}

func (s *single) Attributes() []schema.Attribute {
	if s.value == nil {
		return nil
	}
	return []schema.Attribute{s.attribute}
}

func (s *single) SQL(definition *schema.EntityDefinition) string {
	if s.value == nil {
		expression := column(definition, s.attribute, false)
		if s.operator == NotEqual {
			return expression + " is not null"
		}
		return expression + " is null"
	}
	expression := column(definition, s.attribute, s.caseInsensitive)
	value := placeholder(s.caseInsensitive)
	switch s.operator {
	case Equal:
		if s.like || containsWildcards(s.value) {
			return expression + " like " + value
		}
		return expression + " = " + value
	case NotEqual:
		if s.like || containsWildcards(s.value) {
			return expression + " not like " + value
		}
		return expression + " <> " + value
	case LessThan:
		return expression + " < " + value
	case LessThanOrEqual:
		return expression + " <= " + value
	case GreaterThan:
		return expression + " > " + value
	case GreaterThanOrEqual:
		return expression + " >= " + value
	default:
		panic(schema.ContractViolation("operator %s is not supported by single value conditions", s.operator))
	}
}

// multi tests membership of an attribute value in a list of values
type multi struct {
	attribute       schema.Attribute
	operator        Operator
	values          []any
	caseInsensitive bool
}

func (m *multi) EntityType() schema.EntityType  { return m.attribute.EntityType() }
func (m *multi) Values() []any                  { return append([]any(nil), m.values...) }
func (m *multi) Attributes() []schema.Attribute { return repeat(m.attribute, len(m.values)) }

func (m *multi) SQL(definition *schema.EntityDefinition) string {
	expression := column(definition, m.attribute, m.caseInsensitive)
	value := placeholder(m.caseInsensitive)
	keyword, separator := " in (", " or "
	if m.operator == NotIn {
		keyword, separator = " not in (", " and "
	}
	if len(m.values) <= InClauseLimit {
		return inList(expression, keyword, value, len(m.values))
	}
	var b strings.Builder
	b.WriteString("(")
	for start := 0; start < len(m.values); start += InClauseLimit {
		if start > 0 {
			b.WriteString(separator)
		}
		b.WriteString(inList(expression, keyword, value, min(InClauseLimit, len(m.values)-start)))
	}
	b.WriteString(")")
	return b.String()
}

func inList(expression, keyword, value string, count int) string {
	var b strings.Builder
	b.WriteString(expression)
	b.WriteString(keyword)
	for i := 0; i < count; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(value)
	}
	b.WriteString(")")
	return b.String()
}

// dual compares an attribute with a lower and upper bound
type dual struct {
	attribute schema.Attribute
	operator  Operator
	lower     any
	upper     any
}

func (d *dual) EntityType() schema.EntityType  { return d.attribute.EntityType() }
func (d *dual) Values() []any                  { return []any{d.lower, d.upper} }
func (d *dual) Attributes() []schema.Attribute { return repeat(d.attribute, 2) }

func (d *dual) SQL(definition *schema.EntityDefinition) string {
	expression := column(definition, d.attribute, false)
	var lower, upper, conjunction string
	switch d.operator {
	case Between:
		lower, upper, conjunction = " >= ", " <= ", " and "
	case BetweenExclusive:
		lower, upper, conjunction = " > ", " < ", " and "
	case NotBetween:
		lower, upper, conjunction = " < ", " > ", " or "
	case NotBetweenExclusive:
		lower, upper, conjunction = " <= ", " >= ", " or "
	default:
		panic(schema.ContractViolation("operator %s is not supported by range conditions", d.operator))
	}
	return "(" + expression + lower + "?" + conjunction + expression + upper + "?)"
}

// custom is rendered by a condition provider registered with the entity definition
type custom struct {
	conditionType schema.ConditionType
	attributes    []schema.Attribute
	values        []any
}

// Custom returns a condition rendered by the provider registered for
// conditionType. When attributes are given there must be one per value.
func Custom(conditionType schema.ConditionType, attributes []schema.Attribute, values []any) Condition {
	if len(attributes) > 0 && len(attributes) != len(values) {
		panic(schema.ContractViolation("custom condition %s requires one attribute per value, got %d attributes and %d values",
			conditionType.Name, len(attributes), len(values)))
	}
	return &custom{
		conditionType: conditionType,
		attributes:    append([]schema.Attribute(nil), attributes...),
		values:        append([]any(nil), values...),
	}
}

func (c *custom) EntityType() schema.EntityType  { return c.conditionType.EntityType }
func (c *custom) Values() []any                  { return append([]any(nil), c.values...) }
func (c *custom) Attributes() []schema.Attribute { return append([]schema.Attribute(nil), c.attributes...) }

func (c *custom) SQL(definition *schema.EntityDefinition) string {
	provider, ok := definition.ConditionProvider(c.conditionType)
	if !ok {
		panic(schema.ContractViolation("no condition provider registered for %s in %s", c.conditionType.Name, definition.Type()))
	}
	return provider(c.Attributes(), c.Values())
}
