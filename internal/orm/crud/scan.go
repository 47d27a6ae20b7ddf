package crud

import (
	"database/sql"
	"fmt"
	"reflect"

	"github.com/conduit-lang/entityorm/internal/orm/entity"
	"github.com/conduit-lang/entityorm/internal/orm/schema"
)

// scanDestination returns a **T scan destination for attribute, so null
// values scan as a nil *T
func scanDestination(attribute schema.Attribute) any {
	return reflect.New(reflect.PointerTo(attribute.Type())).Interface()
}

// scannedValue returns the value held by a scan destination, nil for null
func scannedValue(dest any) any {
	ptr := reflect.ValueOf(dest).Elem()
	if ptr.IsNil() {
		return nil
	}
	return ptr.Elem().Interface()
}

// scanEntities scans rows holding the given columns into entities
func scanEntities(rows *sql.Rows, def *schema.EntityDefinition, columns []*schema.ColumnDefinition) ([]entity.Entity, error) {
	var result []entity.Entity
	for rows.Next() {
		dest := make([]any, len(columns))
		for i, column := range columns {
			dest[i] = scanDestination(column.Attribute())
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", def.Type(), err)
		}

		entries := make([]entity.Entry, len(columns))
		for i, column := range columns {
			entries[i] = entity.Entry{Attribute: column.Attribute(), Value: scannedValue(dest[i])}
		}
		e, err := entity.FromEntries(def, entries, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", def.Type(), err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", def.Type(), err)
	}
	return result, nil
}

// scanValues scans rows holding a single column into values
func scanValues(rows *sql.Rows, attribute schema.Attribute) ([]any, error) {
	var values []any
	for rows.Next() {
		dest := scanDestination(attribute)
		if err := rows.Scan(dest); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", attribute, err)
		}
		values = append(values, scannedValue(dest))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", attribute, err)
	}
	return values, nil
}
