package concat

import "context"

// Target is a destination the sink can route chunks into. A target hands out at most one
// Writer at a time: Lock must fail while a previous Writer has not been released.
type Target[T any] interface {
	Lock(context.Context) (Writer[T], error)
}

// Writer is an exclusive handle on a Target.
type Writer[T any] interface {
	// Ready blocks until the target is willing to accept another chunk, or the context
	// expires.
	Ready(context.Context) error

	// Write submits a chunk. An error means the target rejected the chunk, usually because
	// it is full, and the chunk has not been written.
	Write(context.Context, T) error

	// Close and Abort finalize the underlying target, successfully or otherwise.
	Close(context.Context) error
	Abort(ctx context.Context, reason error) error

	// Release relinquishes exclusivity without finalizing the target, allowing another
	// writer to Lock it.
	Release()
}
