// Package transaction manages database transactions shared by the entity
// connection through the context.
package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// ErrTransactionTimeout is returned when a transaction exceeds its timeout
	ErrTransactionTimeout = errors.New("transaction timeout")
	// ErrNestedTransactionNotSupported is returned when nesting without an open transaction
	ErrNestedTransactionNotSupported = errors.New("nested transactions require an existing transaction")
	// ErrTransactionClosed is returned when committing or rolling back a finished transaction
	ErrTransactionClosed = errors.New("transaction already closed")
)

// savepointCounter keeps savepoint names unique across transactions
var savepointCounter atomic.Uint64

// IsolationLevel represents the transaction isolation level
type IsolationLevel int

const (
	// Default uses the isolation level of the database
	Default IsolationLevel = iota
	// ReadCommitted prevents dirty reads
	ReadCommitted
	// RepeatableRead prevents non-repeatable reads
	RepeatableRead
	// Serializable provides full isolation
	Serializable
)

// String returns the string representation of the isolation level
func (l IsolationLevel) String() string {
	switch l {
	case ReadCommitted:
		return "READ COMMITTED"
	case RepeatableRead:
		return "REPEATABLE READ"
	case Serializable:
		return "SERIALIZABLE"
	default:
		return "DEFAULT"
	}
}

// options converts the level to sql.TxOptions, nil for the database default
func (l IsolationLevel) options() *sql.TxOptions {
	switch l {
	case ReadCommitted:
		return &sql.TxOptions{Isolation: sql.LevelReadCommitted}
	case RepeatableRead:
		return &sql.TxOptions{Isolation: sql.LevelRepeatableRead}
	case Serializable:
		return &sql.TxOptions{Isolation: sql.LevelSerializable}
	default:
		return nil
	}
}

// Transaction is an open database transaction, possibly a savepoint within one
type Transaction struct {
	tx            *sql.Tx
	ctx           context.Context
	level         int
	savepointName string
	closed        atomic.Bool
	cancelFunc    context.CancelFunc
	parent        *Transaction

	mu       sync.Mutex
	onCommit []func()
}

// Manager begins transactions on a database
type Manager struct {
	db *sql.DB
}

// NewManager creates a new transaction manager
func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db}
}

// Begin starts a new transaction using the database default isolation level
func (m *Manager) Begin(ctx context.Context) (*Transaction, error) {
	return m.BeginWithIsolation(ctx, Default)
}

// BeginWithIsolation starts a new transaction with the specified isolation level
func (m *Manager) BeginWithIsolation(ctx context.Context, level IsolationLevel) (*Transaction, error) {
	tx, err := m.db.BeginTx(ctx, level.options())
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return &Transaction{tx: tx, ctx: ctx}, nil
}

// WithTransaction runs fn with a context carrying a transaction. When ctx
// already carries one, fn joins it and the outer caller decides the outcome.
// Otherwise the transaction commits when fn returns nil and rolls back on
// error or panic.
func (m *Manager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.WithTransactionIsolation(ctx, Default, fn)
}

// WithTransactionIsolation is WithTransaction using the given isolation level
// for a newly started transaction
func (m *Manager) WithTransactionIsolation(ctx context.Context, level IsolationLevel, fn func(ctx context.Context) error) error {
	if _, ok := FromContext(ctx); ok {
		return fn(ctx)
	}

	tx, err := m.BeginWithIsolation(ctx, level)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx.Context()); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

// Context returns a context with the transaction embedded
func (t *Transaction) Context() context.Context {
	return WithContext(t.ctx, t)
}

// Tx returns the underlying sql.Tx
func (t *Transaction) Tx() *sql.Tx {
	return t.tx
}

// Level returns the nesting level, 0 for a top-level transaction
func (t *Transaction) Level() int {
	return t.level
}

// Closed returns true after commit or rollback
func (t *Transaction) Closed() bool {
	return t.closed.Load()
}

// Commit commits the transaction, releasing the savepoint of a nested one
func (t *Transaction) Commit() error {
	if t.cancelFunc != nil {
		defer t.cancelFunc()
	}
	if !t.closed.CompareAndSwap(false, true) {
		return ErrTransactionClosed
	}

	if t.level > 0 {
		if _, err := t.tx.ExecContext(t.ctx, "RELEASE SAVEPOINT "+t.savepointName); err != nil {
			t.takeCommitHooks()
			return fmt.Errorf("failed to release savepoint: %w", err)
		}
		for _, fn := range t.takeCommitHooks() {
			t.parent.OnCommit(fn)
		}
		return nil
	}
	if err := t.tx.Commit(); err != nil {
		t.takeCommitHooks()
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	for _, fn := range t.takeCommitHooks() {
		fn()
	}
	return nil
}

// OnCommit registers fn to run once the top-level transaction commits. The
// functions registered within a savepoint are handed to the enclosing
// transaction when the savepoint is released and discarded on rollback.
func (t *Transaction) OnCommit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onCommit = append(t.onCommit, fn)
}

func (t *Transaction) takeCommitHooks() []func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	hooks := t.onCommit
	t.onCommit = nil
	return hooks
}

// Rollback rolls back the transaction, or to the savepoint of a nested one.
// Rolling back a closed transaction is a no-op.
func (t *Transaction) Rollback() error {
	if t.cancelFunc != nil {
		defer t.cancelFunc()
	}
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}
	t.takeCommitHooks()

	if t.level > 0 {
		if _, err := t.tx.ExecContext(t.ctx, "ROLLBACK TO SAVEPOINT "+t.savepointName); err != nil {
			return fmt.Errorf("failed to rollback to savepoint: %w", err)
		}
		return nil
	}
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("failed to rollback transaction: %w", err)
	}
	return nil
}

// BeginNested creates a savepoint within this transaction
func (t *Transaction) BeginNested(ctx context.Context) (*Transaction, error) {
	if t.tx == nil || t.closed.Load() {
		return nil, ErrNestedTransactionNotSupported
	}

	name := fmt.Sprintf("sp_%d_%d", savepointCounter.Add(1), t.level+1)
	if _, err := t.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return nil, fmt.Errorf("failed to create savepoint: %w", err)
	}

	return &Transaction{
		tx:            t.tx,
		ctx:           ctx,
		level:         t.level + 1,
		savepointName: name,
		parent:        t,
	}, nil
}
