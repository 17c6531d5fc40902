// Package pipe pumps a sequence of chunks into a sink, driving the sink through its
// lifecycle: Start once, Write each chunk in order, then Close on success or Abort on
// failure.
package pipe

import (
	"context"
	"fmt"
	"iter"

	"github.com/lawrencejones/concatsink/internal/telem"

	kitlog "github.com/go-kit/kit/log"
	"go.opencensus.io/trace"
)

// Sink is the write side of a pipe. Pipe guarantees these methods are never called
// concurrently, and that exactly one of Close or Abort terminates the sink.
type Sink[T any] interface {
	Start(context.Context) error
	Write(context.Context, T) error
	Close(context.Context) error
	Abort(ctx context.Context, reason error) error
}

// Pipe writes every chunk from source into sink. If starting the sink, writing a chunk or
// the context fails, the sink is aborted with that error and the error is returned.
// Otherwise the sink is closed, and the error from Close is returned.
//
// Termination uses a context detached from ctx's cancellation, so an aborted pipe can
// still clean up after itself.
func Pipe[T any](ctx context.Context, logger kitlog.Logger, source iter.Seq[T], sink Sink[T]) (err error) {
	ctx, span, logger := telem.StartSpan(ctx, logger, "pkg/pipe.Pipe")
	defer span.End()

	var count int
	defer func() {
		logger.Log("event", "pipe.finish", "count", count, "error", err)
		if err != nil {
			span.SetStatus(trace.Status{Code: trace.StatusCodeUnknown, Message: err.Error()})
		}
	}()

	abort := func(reason error) error {
		if abortErr := sink.Abort(context.WithoutCancel(ctx), reason); abortErr != nil {
			logger.Log("event", "pipe.abort_failed", "error", abortErr, "msg", "sink failed to abort")
		}

		return reason
	}

	if err := sink.Start(ctx); err != nil {
		return abort(fmt.Errorf("failed to start sink: %w", err))
	}

	for chunk := range source {
		if err := ctx.Err(); err != nil {
			return abort(err)
		}

		if err := sink.Write(ctx, chunk); err != nil {
			return abort(err)
		}

		count++
	}

	if err := ctx.Err(); err != nil {
		return abort(err)
	}

	return sink.Close(context.WithoutCancel(ctx))
}
