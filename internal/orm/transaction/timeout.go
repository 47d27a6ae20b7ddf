package transaction

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// WithTimeout runs WithTransaction with a deadline, rolling back when it passes
func (m *Manager) WithTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := m.WithTransaction(timeoutCtx, fn)
	if err != nil && errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: transaction exceeded %v", ErrTransactionTimeout, timeout)
	}
	return err
}

// BeginWithTimeout starts a transaction which must finish within timeout
func (m *Manager) BeginWithTimeout(ctx context.Context, timeout time.Duration) (*Transaction, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)

	tx, err := m.Begin(timeoutCtx)
	if err != nil {
		cancel()
		return nil, err
	}
	tx.cancelFunc = cancel

	return tx, nil
}
