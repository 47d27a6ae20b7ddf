package schema

import "strings"

// Order is a single order by attribute
type Order struct {
	Attribute Attribute
	Ascending bool
}

// OrderBy is an ordered list of order by attributes
type OrderBy struct {
	orders []Order
}

// Ascending returns an order by the given attributes ascending
func Ascending(attributes ...Attribute) OrderBy {
	return OrderBy{}.Ascending(attributes...)
}

// Descending returns an order by the given attributes descending
func Descending(attributes ...Attribute) OrderBy {
	return OrderBy{}.Descending(attributes...)
}

// Ascending appends ascending attributes
func (o OrderBy) Ascending(attributes ...Attribute) OrderBy {
	return o.with(true, attributes)
}

// Descending appends descending attributes
func (o OrderBy) Descending(attributes ...Attribute) OrderBy {
	return o.with(false, attributes)
}

func (o OrderBy) with(ascending bool, attributes []Attribute) OrderBy {
	orders := append([]Order(nil), o.orders...)
	for _, attribute := range attributes {
		orders = append(orders, Order{Attribute: attribute, Ascending: ascending})
	}
	return OrderBy{orders: orders}
}

// Orders returns the order by attributes in order
func (o OrderBy) Orders() []Order {
	return append([]Order(nil), o.orders...)
}

// SQL renders the order by clause without the "order by" keywords
func (o OrderBy) SQL(definition *EntityDefinition) string {
	parts := make([]string, 0, len(o.orders))
	for _, order := range o.orders {
		expression := order.Attribute.Name()
		if column, ok := definition.Column(order.Attribute); ok {
			expression = column.Expression()
		}
		if !order.Ascending {
			expression += " desc"
		}
		parts = append(parts, expression)
	}
	return strings.Join(parts, ", ")
}
