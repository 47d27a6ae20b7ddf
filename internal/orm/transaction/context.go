package transaction

import (
	"context"
)

type contextKey struct{}

// FromContext retrieves an open transaction from the context
func FromContext(ctx context.Context) (*Transaction, bool) {
	tx, ok := ctx.Value(contextKey{}).(*Transaction)
	if !ok || tx.Closed() {
		return nil, false
	}
	return tx, true
}

// WithContext returns a new context with the transaction embedded
func WithContext(ctx context.Context, tx *Transaction) context.Context {
	return context.WithValue(ctx, contextKey{}, tx)
}
