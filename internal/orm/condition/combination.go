package condition

import (
	"strings"

	"github.com/conduit-lang/entityorm/internal/orm/schema"
)

// Conjunction joins the conditions of a combination
type Conjunction int

// Conjunctions
const (
	AndConjunction Conjunction = iota
	OrConjunction
)

// String returns the SQL keyword
func (c Conjunction) String() string {
	if c == OrConjunction {
		return "or"
	}
	return "and"
}

// Combination joins conditions of the same entity type with a conjunction
type Combination struct {
	conjunction Conjunction
	conditions  []Condition
}

// And combines conditions with and
func And(conditions ...Condition) *Combination {
	return Combine(AndConjunction, conditions...)
}

// Or combines conditions with or
func Or(conditions ...Condition) *Combination {
	return Combine(OrConjunction, conditions...)
}

// Combine combines conditions with the given conjunction. It panics if the
// conditions do not share an entity type, empty combinations excepted.
func Combine(conjunction Conjunction, conditions ...Condition) *Combination {
	var entityType schema.EntityType
	for _, condition := range conditions {
		switch {
		case condition.EntityType() == (schema.EntityType{}):
		case entityType == (schema.EntityType{}):
			entityType = condition.EntityType()
		case condition.EntityType() != entityType:
			panic(schema.ContractViolation("conditions of a combination must share the entity type %s, got %s",
				entityType, condition.EntityType()))
		}
	}
	return &Combination{
		conjunction: conjunction,
		conditions:  append([]Condition(nil), conditions...),
	}
}

// Conjunction returns the conjunction
func (c *Combination) Conjunction() Conjunction {
	return c.conjunction
}

// Conditions returns the combined conditions
func (c *Combination) Conditions() []Condition {
	return append([]Condition(nil), c.conditions...)
}

// EntityType implements Condition, the zero value for empty combinations
func (c *Combination) EntityType() schema.EntityType {
	for _, condition := range c.conditions {
		if entityType := condition.EntityType(); entityType != (schema.EntityType{}) {
			return entityType
		}
	}
	return schema.EntityType{}
}

// Values implements Condition
func (c *Combination) Values() []any {
	var values []any
	for _, condition := range c.conditions {
		values = append(values, condition.Values()...)
	}
	return values
}

// Attributes implements Condition
func (c *Combination) Attributes() []schema.Attribute {
	var attributes []schema.Attribute
	for _, condition := range c.conditions {
		attributes = append(attributes, condition.Attributes()...)
	}
	return attributes
}

// SQL implements Condition. Empty combinations render an empty string, a
// single condition renders as is.
func (c *Combination) SQL(definition *schema.EntityDefinition) string {
	switch len(c.conditions) {
	case 0:
		return ""
	case 1:
		return c.conditions[0].SQL(definition)
	}
	parts := make([]string, 0, len(c.conditions))
	for _, condition := range c.conditions {
		if sql := condition.SQL(definition); sql != "" {
			parts = append(parts, sql)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, " "+c.conjunction.String()+" ") + ")"
}
