package concat

import (
	"context"
	"iter"
)

// Yield hands a target to the sink, blocking until the sink has moved past it. The
// returned bool is false once the sink has stopped consuming targets, at which point the
// generator should return. The error is why the sink moved on: the write failure that
// forced an advance, or the abort reason when the sink failed. It is nil for explicit
// advances and for normal completion.
type Yield[T any] func(Target[T]) (bool, error)

// GeneratorFunc produces targets by calling yield once per target. Any cleanup deferred
// around a yield runs exactly once, when the sink moves past that target or terminates:
//
//	func(ctx context.Context, yield concat.Yield[string]) error {
//		for idx := 0; idx < 3; idx++ {
//			more, err := func() (bool, error) {
//				target := open(idx)
//				defer cleanup(target)
//
//				return yield(target)
//			}()
//
//			if !more {
//				return nil
//			}
//		}
//
//		return nil
//	}
//
// The generator runs with the context given to the sink's Start. Any error it returns is
// surfaced from the sink operation that caused it to finish.
type GeneratorFunc[T any] func(ctx context.Context, yield Yield[T]) error

// Generator supplies targets from fn, which is invoked exactly once when the sink starts.
func Generator[T any](fn GeneratorFunc[T]) Supply[T] {
	return fn
}

func (fn GeneratorFunc[T]) open(ctx context.Context) (Cursor[T], error) {
	cursor := &generatorCursor[T]{}
	cursor.next, cursor.stop = iter.Pull(func(yield func(Target[T]) bool) {
		cursor.err = fn(ctx, func(target Target[T]) (bool, error) {
			if !yield(target) {
				return false, cursor.halt
			}

			return true, cursor.resume
		})
	})

	return cursor, nil
}

// generatorCursor drives a GeneratorFunc as a coroutine. The reasons passed to Next and
// Fail are stashed before switching into the generator, so yield can return them.
type generatorCursor[T any] struct {
	next   func() (Target[T], bool)
	stop   func()
	resume error // returned from yield when advancing
	halt   error // returned from yield when stopping
	err    error // returned from the generator, not yet reported
}

func (c *generatorCursor[T]) Next(ctx context.Context, reason error) (Target[T], bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	c.resume = reason
	target, ok := c.next()
	if !ok {
		return nil, false, c.takeErr()
	}

	return target, true, nil
}

func (c *generatorCursor[T]) Complete(context.Context) error {
	c.halt = nil
	c.stop()

	return c.takeErr()
}

func (c *generatorCursor[T]) Fail(_ context.Context, reason error) error {
	c.halt = reason
	c.stop()

	return c.takeErr()
}

func (c *generatorCursor[T]) takeErr() error {
	err := c.err
	c.err = nil

	return err
}
