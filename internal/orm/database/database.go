// Package database provides the connection abstraction consumed by key
// generators and the entity connection, backed by database/sql.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/conduit-lang/entityorm/internal/orm/dialect"
	"github.com/conduit-lang/entityorm/internal/orm/transaction"
)

// QueryKind classifies executed statements for counting.
type QueryKind int

const (
	KindSelect QueryKind = iota
	KindInsert
	KindUpdate
	KindDelete
	KindOther
)

// String returns the string representation of the query kind
func (k QueryKind) String() string {
	switch k {
	case KindSelect:
		return "select"
	case KindInsert:
		return "insert"
	case KindUpdate:
		return "update"
	case KindDelete:
		return "delete"
	default:
		return "other"
	}
}

// Counter is notified after each executed statement.
type Counter interface {
	Count(kind QueryKind)
}

// CounterFunc adapts a function to the Counter interface.
type CounterFunc func(kind QueryKind)

// Count calls f(kind).
func (f CounterFunc) Count(kind QueryKind) { f(kind) }

// Connection is the minimal database access needed by key generators.
type Connection interface {
	// Dialect returns the SQL dialect of the connection.
	Dialect() dialect.Dialect
	// QueryScalar executes query and scans the single resulting value into dest.
	// A query returning no row fails with ErrNoData.
	QueryScalar(ctx context.Context, query string, dest any, args ...any) error
}

// ExecQuerier wraps the standard Exec and Query methods, implemented by both
// *sql.DB and *sql.Tx.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// DB is a Connection backed by a *sql.DB. Statements run on the transaction
// found in the context, if any.
type DB struct {
	db           *sql.DB
	dialect      dialect.Dialect
	counter      Counter
	logger       *zap.Logger
	transactions *transaction.Manager
}

// Option configures a DB.
type Option func(*DB)

// WithCounter sets the statement counter.
func WithCounter(counter Counter) Option {
	return func(d *DB) {
		d.counter = counter
	}
}

// WithLogger sets the logger used for statement logging.
func WithLogger(logger *zap.Logger) Option {
	return func(d *DB) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New wraps db using the given dialect.
func New(db *sql.DB, d dialect.Dialect, opts ...Option) *DB {
	c := &DB{
		db:           db,
		dialect:      d,
		logger:       zap.NewNop(),
		transactions: transaction.NewManager(db),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open opens a database with the given driver and data source name.
func Open(driver, dsn string, d dialect.Dialect, opts ...Option) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	return New(db, d, opts...), nil
}

// SQL returns the underlying *sql.DB.
func (c *DB) SQL() *sql.DB {
	return c.db
}

// Dialect implements Connection.
func (c *DB) Dialect() dialect.Dialect {
	return c.dialect
}

// Logger returns the statement logger.
func (c *DB) Logger() *zap.Logger {
	return c.logger
}

// Transactions returns the transaction manager bound to this database.
func (c *DB) Transactions() *transaction.Manager {
	return c.transactions
}

// Close closes the underlying database.
func (c *DB) Close() error {
	return c.db.Close()
}

// Exec executes a statement that returns no rows.
func (c *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	query = c.dialect.Bind(query)
	c.logger.Debug("exec", zap.String("sql", query), zap.Int("values", len(args)))
	result, err := c.executor(ctx).ExecContext(ctx, query, args...)
	c.count(query)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	return result, nil
}

// Query executes a query returning rows.
func (c *DB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	query = c.dialect.Bind(query)
	c.logger.Debug("query", zap.String("sql", query), zap.Int("values", len(args)))
	rows, err := c.executor(ctx).QueryContext(ctx, query, args...)
	c.count(query)
	if err != nil {
		return nil, ConvertDBError(err)
	}
	return rows, nil
}

// QueryScalar implements Connection.
func (c *DB) QueryScalar(ctx context.Context, query string, dest any, args ...any) error {
	query = c.dialect.Bind(query)
	c.logger.Debug("query scalar", zap.String("sql", query))
	err := c.executor(ctx).QueryRowContext(ctx, query, args...).Scan(dest)
	c.count(query)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNoData, query)
	}
	if err != nil {
		return ConvertDBError(err)
	}
	return nil
}

func (c *DB) executor(ctx context.Context) ExecQuerier {
	if tx, ok := transaction.FromContext(ctx); ok && tx.Tx() != nil {
		return tx.Tx()
	}
	return c.db
}

func (c *DB) count(query string) {
	if c.counter != nil {
		c.counter.Count(kindOf(query))
	}
}

func kindOf(query string) QueryKind {
	query = strings.TrimSpace(query)
	end := strings.IndexAny(query, " \n\t(")
	if end < 0 {
		end = len(query)
	}
	switch strings.ToLower(query[:end]) {
	case "select", "with":
		return KindSelect
	case "insert":
		return KindInsert
	case "update":
		return KindUpdate
	case "delete":
		return KindDelete
	default:
		return KindOther
	}
}
