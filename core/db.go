package core

import "context"

type (
	// Transactor runs a unit of work atomically.
	// The ctx passed to fn carries the transaction; repositories pick it up from there,
	// so every repository call made with that ctx is part of the same unit of work.
	// Nested calls join the outer transaction.
	Transactor interface {
		InTx(ctx context.Context, fn func(ctx context.Context) error) error
	}

	// Pinger is implemented by stores that can report their health.
	Pinger interface {
		PingContext(ctx context.Context) error
	}
)

type txKey struct{}

// ContextWithTx returns a copy of ctx carrying tx.
func ContextWithTx(ctx context.Context, tx interface{}) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext returns the transaction carried by ctx, if any.
func TxFromContext(ctx context.Context) interface{} {
	return ctx.Value(txKey{})
}
