package application

import "context"

// Transactor runs fn inside a single store transaction. Repositories called with the
// context passed to fn take part in that transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type noopTransactor struct{}

func (noopTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func defaultTransactor(tx Transactor) Transactor {
	if tx != nil {
		return tx
	}
	return noopTransactor{}
}
