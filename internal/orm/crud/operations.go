// Package crud provides the local entity connection: inserting, updating,
// deleting and selecting entities through a database.DB.
//
// Every modifying operation runs in a transaction, joining the transaction
// carried by the context when there is one. Selected entities have their
// foreign keys loaded up to the fetch depth of the select, or the fetch depth
// of each foreign key definition by default.
package crud

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/entityorm/internal/orm/database"
	"github.com/conduit-lang/entityorm/internal/orm/entity"
	"github.com/conduit-lang/entityorm/internal/orm/schema"
	"github.com/conduit-lang/entityorm/internal/orm/transaction"
	"github.com/conduit-lang/entityorm/internal/orm/validation"
)

// Operation represents a CRUD operation type
type Operation int

const (
	// OperationInsert represents an insert operation
	OperationInsert Operation = iota
	// OperationSelect represents a select operation
	OperationSelect
	// OperationUpdate represents an update operation
	OperationUpdate
	// OperationDelete represents a delete operation
	OperationDelete
)

// String returns the string representation of the operation
func (o Operation) String() string {
	switch o {
	case OperationInsert:
		return "insert"
	case OperationSelect:
		return "select"
	case OperationUpdate:
		return "update"
	case OperationDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Validator validates entities before they are written
type Validator interface {
	ValidateInsert(e entity.Entity) error
	ValidateUpdate(e entity.Entity) error
}

// Operations provides CRUD operations for the entities of a domain
type Operations struct {
	conn              *database.DB
	entities          *schema.Entities
	validator         Validator
	logger            *zap.Logger
	optimisticLocking bool
}

// Option configures Operations
type Option func(*Operations)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *Operations) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithValidator replaces the default validator
func WithValidator(validator Validator) Option {
	return func(o *Operations) {
		o.validator = validator
	}
}

// WithOptimisticLocking enables comparing the original values of updated
// entities with the values currently in the database
func WithOptimisticLocking(enabled bool) Option {
	return func(o *Operations) {
		o.optimisticLocking = enabled
	}
}

// New creates a new Operations instance
func New(conn *database.DB, entities *schema.Entities, opts ...Option) *Operations {
	o := &Operations{
		conn:      conn,
		entities:  entities,
		validator: validation.New(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Entities returns the entity definitions
func (o *Operations) Entities() *schema.Entities {
	return o.entities
}

// Connection returns the underlying database
func (o *Operations) Connection() *database.DB {
	return o.conn
}

// definition returns the definition of entityType
func (o *Operations) definition(entityType schema.EntityType) (*schema.EntityDefinition, error) {
	def, ok := o.entities.Definition(entityType)
	if !ok {
		return nil, schema.ContractViolation("entity type %s is not defined in domain %s", entityType, o.entities.Domain())
	}
	return def, nil
}

// writable fails for entity types defined as read only
func writable(def *schema.EntityDefinition, operation Operation) error {
	if def.ReadOnly() {
		return fmt.Errorf("%w: cannot %s %s", ErrReadOnly, operation, def.Type())
	}
	return nil
}

// inTransaction runs fn within a transaction, logging failures
func (o *Operations) inTransaction(ctx context.Context, operation Operation, fn func(ctx context.Context) error) error {
	err := o.conn.Transactions().WithTransaction(ctx, fn)
	if err != nil {
		o.logger.Warn("operation failed", zap.Stringer("operation", operation), zap.Error(err))
	}
	return err
}

// saveOnCommit saves entities once the transaction carried by ctx commits,
// leaving them modified when it rolls back
func saveOnCommit(ctx context.Context, entities []entity.Entity) {
	tx, ok := transaction.FromContext(ctx)
	if !ok {
		return
	}
	tx.OnCommit(func() {
		for _, e := range entities {
			_ = e.SaveAll()
		}
	})
}
