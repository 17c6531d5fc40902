package targets

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Inserter provides a synchronous interface around inserting a chunk into a backend. An
// error means the chunk was not accepted.
type Inserter[T any] interface {
	Insert(context.Context, T) error
}

// Finalizer is optionally implemented by inserters that hold resources, such as files,
// which must be finalized when their target is closed or aborted.
type Finalizer interface {
	Close(context.Context) error
	Abort(ctx context.Context, reason error) error
}

// InsertFunc is shorthand for creating an inserter from a function
type InsertFunc[T any] func(context.Context, T) error

func (f InsertFunc[T]) Insert(ctx context.Context, chunk T) error {
	return f(ctx, chunk)
}

// MemoryInserter is a reference implementation of an inserter, storing chunks in an
// in-memory buffer. It satisfies all requirements of an inserter, including race-safety.
//
// Beyond offering a useful reference implementation, this can be used for testing sink
// logic without being coupled to an actual backend.
type MemoryInserter[T any] struct {
	store []T
	sync.Mutex
}

func NewMemoryInserter[T any]() *MemoryInserter[T] {
	return &MemoryInserter[T]{store: []T{}}
}

func (i *MemoryInserter[T]) Insert(ctx context.Context, chunk T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	i.Lock()
	defer i.Unlock()

	i.store = append(i.store, chunk)

	return nil
}

func (i *MemoryInserter[T]) Store() []T {
	i.Lock()
	defer i.Unlock()

	return append([]T{}, i.store...)
}

// ErrLimitExceeded is returned by a limited inserter once it has accepted its quota.
var ErrLimitExceeded = errors.New("insert limit exceeded")

// Limit wraps an inserter so it accepts at most limit chunks, failing every insert
// thereafter. Finalization passes through to the underlying inserter.
func Limit[T any](i Inserter[T], limit int) Inserter[T] {
	return &limitedInserter[T]{Inserter: i, limit: limit}
}

type limitedInserter[T any] struct {
	Inserter[T]
	limit, count int
	sync.Mutex
}

func (i *limitedInserter[T]) Insert(ctx context.Context, chunk T) error {
	i.Lock()
	defer i.Unlock()

	if i.count >= i.limit {
		return fmt.Errorf("%w: accepted %d of %d", ErrLimitExceeded, i.count, i.limit)
	}

	if err := i.Inserter.Insert(ctx, chunk); err != nil {
		return err
	}

	i.count++

	return nil
}

func (i *limitedInserter[T]) Close(ctx context.Context) error {
	return closeInserter(ctx, i.Inserter)
}

func (i *limitedInserter[T]) Abort(ctx context.Context, reason error) error {
	return abortInserter(ctx, i.Inserter, reason)
}

// closeInserter closes the inserter if it needs finalizing, and is a no-op otherwise
func closeInserter(ctx context.Context, i interface{}) error {
	if finalizer, ok := i.(Finalizer); ok {
		return finalizer.Close(ctx)
	}

	return nil
}

func abortInserter(ctx context.Context, i interface{}, reason error) error {
	if finalizer, ok := i.(Finalizer); ok {
		return finalizer.Abort(ctx, reason)
	}

	return nil
}
