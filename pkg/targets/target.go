package targets

import (
	"context"
	"errors"
	"sync"

	"github.com/lawrencejones/concatsink/pkg/concat"
)

var (
	// ErrLocked is returned from Lock while another writer holds the target
	ErrLocked = errors.New("target is locked by another writer")
	// ErrReleased is returned from any writer operation after the writer was released
	ErrReleased = errors.New("writer has been released")
	// ErrClosed is returned when writing to a target that has been closed or aborted
	ErrClosed = errors.New("target has been closed")
)

var _ concat.Target[string] = &Target[string]{}

// Target adapts a synchronous Inserter into a concat.Target. It hands out a single
// exclusive writer at a time, and tracks whether the target has been finalized so tests
// and callers can inspect what the sink did to it.
type Target[T any] struct {
	name     string
	inserter Inserter[T]

	mu      sync.Mutex
	writer  *writer[T]
	written int
	closed  bool
	aborted bool
	reason  error
}

func New[T any](name string, inserter Inserter[T]) *Target[T] {
	return &Target[T]{name: name, inserter: inserter}
}

// NewMemory is shorthand for a target collecting chunks into memory
func NewMemory[T any](name string) (*Target[T], *MemoryInserter[T]) {
	inserter := NewMemoryInserter[T]()
	return New[T](name, inserter), inserter
}

// NewLimitedMemory builds a memory target that accepts at most limit chunks, then fails
func NewLimitedMemory[T any](name string, limit int) (*Target[T], *MemoryInserter[T]) {
	inserter := NewMemoryInserter[T]()
	return New[T](name, Limit[T](inserter, limit)), inserter
}

func (t *Target[T]) Name() string { return t.name }

// Lock returns an exclusive writer, failing with ErrLocked if one is already live.
func (t *Target[T]) Lock(ctx context.Context) (concat.Writer[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.writer != nil {
		return nil, ErrLocked
	}

	t.writer = &writer[T]{target: t}

	return t.writer, nil
}

func (t *Target[T]) Locked() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.writer != nil
}

func (t *Target[T]) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.closed
}

func (t *Target[T]) Aborted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.aborted
}

// AbortReason returns the reason given to Abort, if the target was aborted
func (t *Target[T]) AbortReason() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.reason
}

// Written returns the count of chunks successfully inserted through this target
func (t *Target[T]) Written() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.written
}

type writer[T any] struct {
	target *Target[T]
}

// check verifies this writer still holds the target, and the target is open. Callers must
// hold the target mutex.
func (w *writer[T]) check() error {
	if w.target.writer != w {
		return ErrReleased
	}

	if w.target.closed || w.target.aborted {
		return ErrClosed
	}

	return nil
}

func (w *writer[T]) Ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	w.target.mu.Lock()
	defer w.target.mu.Unlock()

	return w.check()
}

// Write inserts the chunk without holding the target mutex. The writer is exclusive, so
// there's nobody else to race with besides the inspection methods.
func (w *writer[T]) Write(ctx context.Context, chunk T) error {
	w.target.mu.Lock()
	err := w.check()
	w.target.mu.Unlock()

	if err != nil {
		return err
	}

	if err := w.target.inserter.Insert(ctx, chunk); err != nil {
		return err
	}

	w.target.mu.Lock()
	w.target.written++
	w.target.mu.Unlock()

	return nil
}

func (w *writer[T]) Close(ctx context.Context) error {
	w.target.mu.Lock()
	if err := w.check(); err != nil {
		w.target.mu.Unlock()
		return err
	}
	w.target.closed = true
	w.target.mu.Unlock()

	return closeInserter(ctx, w.target.inserter)
}

func (w *writer[T]) Abort(ctx context.Context, reason error) error {
	w.target.mu.Lock()
	if err := w.check(); err != nil {
		w.target.mu.Unlock()
		return err
	}
	w.target.aborted, w.target.reason = true, reason
	w.target.mu.Unlock()

	return abortInserter(ctx, w.target.inserter, reason)
}

// Release gives up the lock. Releasing twice, or after another writer has taken over, is a
// no-op.
func (w *writer[T]) Release() {
	w.target.mu.Lock()
	defer w.target.mu.Unlock()

	if w.target.writer == w {
		w.target.writer = nil
	}
}
