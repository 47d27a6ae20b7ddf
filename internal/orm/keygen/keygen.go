// Package keygen provides the primary key generation strategies used when
// inserting entities.
//
// Generators either run before the insert, populating a null primary key
// which is then included in the statement, or after the insert, fetching the
// value the database generated. Generators that run before the insert never
// overwrite a primary key value assigned manually.
package keygen

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/conduit-lang/entityorm/internal/orm/database"
	"github.com/conduit-lang/entityorm/internal/orm/dialect"
	"github.com/conduit-lang/entityorm/internal/orm/schema"
)

// Default returns the manual key generator, primary key values are provided by the caller
func Default() schema.KeyGenerator {
	return schema.ManualKeyGenerator()
}

// queryFunc returns the query selecting a key value for the given dialect
type queryFunc func(d dialect.Dialect) (string, error)

// queried selects the key value with a query, before or after the insert
type queried struct {
	query       queryFunc
	afterInsert bool
}

func (q *queried) Inserted() bool  { return !q.afterInsert }
func (q *queried) Generated() bool { return false }

func (q *queried) BeforeInsert(ctx context.Context, values schema.Values, definition *schema.EntityDefinition, conn database.Connection) error {
	if q.afterInsert {
		return nil
	}
	column, err := keyColumn(definition, schema.KindInteger)
	if err != nil {
		return err
	}
	if !values.IsNull(column.Attribute()) {
		return nil
	}
	return q.selectAndPut(ctx, values, column, conn)
}

func (q *queried) AfterInsert(ctx context.Context, values schema.Values, definition *schema.EntityDefinition, conn database.Connection, _ sql.Result) error {
	if !q.afterInsert {
		return nil
	}
	column, err := keyColumn(definition, schema.KindInteger)
	if err != nil {
		return err
	}
	return q.selectAndPut(ctx, values, column, conn)
}

func (q *queried) selectAndPut(ctx context.Context, values schema.Values, column *schema.ColumnDefinition, conn database.Connection) error {
	query, err := q.query(conn.Dialect())
	if err != nil {
		return fmt.Errorf("key generator for %s: %w", column.Attribute(), err)
	}
	var value int64
	if err := conn.QueryScalar(ctx, query, &value); err != nil {
		return fmt.Errorf("failed to generate key for %s: %w", column.Attribute(), err)
	}
	return putInteger(values, column, value)
}

// Queried returns a generator selecting the key value with query before the
// insert, when the primary key is null
func Queried(query string) schema.KeyGenerator {
	return &queried{query: func(dialect.Dialect) (string, error) { return query, nil }}
}

// Increment returns a generator selecting max(column) + 1 from table before
// the insert, when the primary key is null
func Increment(table, column string) schema.KeyGenerator {
	query := fmt.Sprintf("select coalesce(max(%s), 0) + 1 from %s", column, table)
	return &queried{query: func(dialect.Dialect) (string, error) { return query, nil }}
}

// Sequence returns a generator selecting the next value of sequence before
// the insert, when the primary key is null
func Sequence(sequence string) schema.KeyGenerator {
	return &queried{query: func(d dialect.Dialect) (string, error) { return d.SequenceQuery(sequence) }}
}

// Automatic returns a generator selecting the value generated for
// valueSource, a table or sequence depending on the dialect, after the insert
func Automatic(valueSource string) schema.KeyGenerator {
	return &queried{
		query:       func(d dialect.Dialect) (string, error) { return d.AutoIncrementQuery(valueSource) },
		afterInsert: true,
	}
}

// identity reads the key value generated by an identity column
type identity struct{}

// Identity returns a generator for identity columns. The key value is read
// from the statement result after the insert, or returned by the insert
// statement itself on dialects without last insert id support.
func Identity() schema.KeyGenerator {
	return identity{}
}

func (identity) Inserted() bool  { return false }
func (identity) Generated() bool { return true }

func (identity) BeforeInsert(context.Context, schema.Values, *schema.EntityDefinition, database.Connection) error {
	return nil
}

func (identity) AfterInsert(_ context.Context, values schema.Values, definition *schema.EntityDefinition, conn database.Connection, result sql.Result) error {
	column, err := keyColumn(definition, schema.KindInteger)
	if err != nil {
		return err
	}
	if !values.IsNull(column.Attribute()) {
		return nil
	}
	if result == nil || !conn.Dialect().SupportsLastInsertID() {
		return fmt.Errorf("failed to generate key for %s: %w", column.Attribute(), database.ErrNoData)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read generated key for %s: %w", column.Attribute(), err)
	}
	return putInteger(values, column, id)
}

// uuidGenerator sets a random uuid on string key columns
type uuidGenerator struct{}

// UUID returns a generator setting a random uuid string before the insert,
// when the primary key is null
func UUID() schema.KeyGenerator {
	return uuidGenerator{}
}

func (uuidGenerator) Inserted() bool  { return true }
func (uuidGenerator) Generated() bool { return false }

func (uuidGenerator) BeforeInsert(_ context.Context, values schema.Values, definition *schema.EntityDefinition, _ database.Connection) error {
	column, err := keyColumn(definition, schema.KindString)
	if err != nil {
		return err
	}
	if !values.IsNull(column.Attribute()) {
		return nil
	}
	_, err = values.Put(column.Attribute(), uuid.NewString())
	return err
}

func (uuidGenerator) AfterInsert(context.Context, schema.Values, *schema.EntityDefinition, database.Connection, sql.Result) error {
	return nil
}

// keyColumn returns the single primary key column, which must be of the given kind
func keyColumn(definition *schema.EntityDefinition, kind schema.Kind) (*schema.ColumnDefinition, error) {
	columns := definition.PrimaryKeyColumns()
	if len(columns) != 1 {
		return nil, schema.ContractViolation("key generation requires a single column primary key, %s has %d", definition.Type(), len(columns))
	}
	if columns[0].Attribute().Kind() != kind {
		return nil, schema.ContractViolation("key generation for %s requires a %s column, got %s", columns[0].Attribute(), kind, columns[0].Attribute().Kind())
	}
	return columns[0], nil
}

// putInteger converts value to the declared integer type of column and puts it
func putInteger(values schema.Values, column *schema.ColumnDefinition, value int64) error {
	converted := reflect.ValueOf(value).Convert(column.Attribute().Type()).Interface()
	_, err := values.Put(column.Attribute(), converted)
	return err
}
