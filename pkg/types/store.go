package types

import "context"

// PlanStore owns the durable collection of plans. Every call is a complete
// operation against the backing resource under one exclusive lock span;
// implementations keep no long-lived in-process state.
type PlanStore interface {
	// ReadAll returns every stored plan in stored order. An absent store
	// yields an empty slice and no error. Content that cannot be parsed
	// yields ErrCorruptStore.
	ReadAll(ctx context.Context) ([]Plan, error)

	// WriteAll replaces the whole collection atomically.
	WriteAll(ctx context.Context, plans []Plan) error

	// Update reads the collection, passes it to fn and writes back what fn
	// returns, all under a single lock acquisition. Absent or corrupt content
	// is passed to fn as an empty collection. When fn returns ErrNoChange
	// nothing is written and Update returns nil; any other error from fn
	// aborts the write and is returned.
	Update(ctx context.Context, fn func([]Plan) ([]Plan, error)) error

	// Close releases resources held by the store. Idempotent.
	Close() error
}
