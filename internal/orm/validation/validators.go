package validation

import (
	"fmt"
	"unicode/utf8"

	"github.com/conduit-lang/entityorm/internal/orm/schema"
)

func label(definition schema.AttributeDefinition) string {
	if caption := definition.Caption(); caption != "" {
		return caption
	}
	return definition.Attribute().Name()
}

func nullError(definition schema.AttributeDefinition) *NullValidationError {
	return &NullValidationError{attributeError{
		attribute: definition.Attribute(),
		message:   fmt.Sprintf("value required: %s", label(definition)),
	}}
}

// checkRange validates a numeric value against the attribute minimum and maximum
func checkRange(definition schema.AttributeDefinition, value any) AttributeError {
	number, ok := toFloat64(value)
	if !ok {
		return nil
	}
	minimum, hasMinimum := definition.Minimum()
	maximum, hasMaximum := definition.Maximum()
	var message string
	switch {
	case hasMinimum && number < minimum:
		message = fmt.Sprintf("%s must be at least %v", label(definition), minimum)
	case hasMaximum && number > maximum:
		message = fmt.Sprintf("%s must be at most %v", label(definition), maximum)
	default:
		return nil
	}
	return &RangeValidationError{
		attributeError: attributeError{attribute: definition.Attribute(), message: message},
		Value:          value,
		Minimum:        minimum,
		Maximum:        maximum,
	}
}

// checkLength validates a string value against the attribute maximum length
func checkLength(definition schema.AttributeDefinition, value any) AttributeError {
	str, ok := value.(string)
	maxLength := definition.MaxLength()
	if !ok || maxLength <= 0 || utf8.RuneCountInString(str) <= maxLength {
		return nil
	}
	return &LengthValidationError{
		attributeError: attributeError{
			attribute: definition.Attribute(),
			message:   fmt.Sprintf("%s must be at most %d characters", label(definition), maxLength),
		},
		Value:     str,
		MaxLength: maxLength,
	}
}

// checkItem validates the value of an enumerated attribute
func checkItem(definition schema.AttributeDefinition, value any) AttributeError {
	items := definition.Items()
	if len(items) == 0 {
		return nil
	}
	for _, item := range items {
		if schema.ValuesEqual(item, value) {
			return nil
		}
	}
	return &ItemValidationError{
		attributeError: attributeError{
			attribute: definition.Attribute(),
			message:   fmt.Sprintf("%s: invalid item %v", label(definition), value),
		},
		Value: value,
	}
}

func toFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
