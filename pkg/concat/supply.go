package concat

import (
	"context"
	"iter"
)

// Supply is where a sink gets its targets from. A sink opens exactly one Cursor over its
// supply, when it starts, and never opens another. Construct one with Slice, Seq,
// FromCursor, Factory, SeqFactory or Generator.
type Supply[T any] interface {
	open(context.Context) (Cursor[T], error)
}

// Cursor is a forward-only pointer into a supply of targets.
type Cursor[T any] interface {
	// Next returns the next target, or false if the supply is exhausted. The reason is why
	// the caller moved past the previous target (nil if it wasn't a failure), and is made
	// available to supplies that want to observe it, such as generators.
	Next(ctx context.Context, reason error) (Target[T], bool, error)

	// Complete tells the supply no more targets will be requested because the sink finished
	// normally. Supplies should run any outstanding cleanup.
	Complete(context.Context) error

	// Fail is like Complete, but the sink is stopping because of the given reason.
	Fail(ctx context.Context, reason error) error
}

// Slice supplies each of the given targets in order.
func Slice[T any](targets ...Target[T]) Supply[T] {
	return sliceSupply[T](append([]Target[T](nil), targets...))
}

type sliceSupply[T any] []Target[T]

func (s sliceSupply[T]) open(context.Context) (Cursor[T], error) {
	return &sliceCursor[T]{targets: s}, nil
}

type sliceCursor[T any] struct {
	targets []Target[T]
}

func (c *sliceCursor[T]) Next(ctx context.Context, _ error) (Target[T], bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	if len(c.targets) == 0 {
		return nil, false, nil
	}

	target := c.targets[0]
	c.targets = c.targets[1:]

	return target, true, nil
}

func (c *sliceCursor[T]) Complete(context.Context) error {
	c.targets = nil
	return nil
}

func (c *sliceCursor[T]) Fail(context.Context, error) error {
	c.targets = nil
	return nil
}

// Seq supplies targets from a single-pass sequence, which may be infinite. The sequence is
// pulled one target at a time and stopped when the sink terminates, so any deferred
// cleanup inside the sequence runs then.
func Seq[T any](seq iter.Seq[Target[T]]) Supply[T] {
	return seqSupply[T](seq)
}

type seqSupply[T any] iter.Seq[Target[T]]

func (s seqSupply[T]) open(context.Context) (Cursor[T], error) {
	next, stop := iter.Pull(iter.Seq[Target[T]](s))
	return &seqCursor[T]{next: next, stop: stop}, nil
}

type seqCursor[T any] struct {
	next func() (Target[T], bool)
	stop func()
}

func (c *seqCursor[T]) Next(ctx context.Context, _ error) (Target[T], bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	target, ok := c.next()
	return target, ok, nil
}

func (c *seqCursor[T]) Complete(context.Context) error {
	c.stop()
	return nil
}

func (c *seqCursor[T]) Fail(context.Context, error) error {
	c.stop()
	return nil
}

// FromCursor supplies targets from a cursor the caller has already built.
func FromCursor[T any](cursor Cursor[T]) Supply[T] {
	return cursorSupply[T]{cursor: cursor}
}

type cursorSupply[T any] struct {
	cursor Cursor[T]
}

func (s cursorSupply[T]) open(context.Context) (Cursor[T], error) {
	return s.cursor, nil
}

// Factory supplies targets from the cursor returned by fn. fn is called exactly once,
// when the sink starts, and may block for as long as ctx allows.
func Factory[T any](fn func(context.Context) (Cursor[T], error)) Supply[T] {
	return factorySupply[T](fn)
}

type factorySupply[T any] func(context.Context) (Cursor[T], error)

func (s factorySupply[T]) open(ctx context.Context) (Cursor[T], error) {
	return s(ctx)
}

// SeqFactory supplies targets from the sequence returned by fn, which is called exactly
// once when the sink starts.
func SeqFactory[T any](fn func() iter.Seq[Target[T]]) Supply[T] {
	return seqFactorySupply[T](fn)
}

type seqFactorySupply[T any] func() iter.Seq[Target[T]]

func (s seqFactorySupply[T]) open(ctx context.Context) (Cursor[T], error) {
	return seqSupply[T](s()).open(ctx)
}
