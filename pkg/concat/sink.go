package concat

import (
	"context"
	"fmt"

	"github.com/lawrencejones/concatsink/internal/telem"

	kitlog "github.com/go-kit/kit/log"
)

// State is the lifecycle position of a Sink.
type State int

const (
	StateUninitialised State = iota // Start has not yet succeeded
	StateActive                     // a target holds the cursor, or is about to
	StateExhausted                  // the supply ran out of targets
	StateClosed
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateUninitialised:
		return "uninitialised"
	case StateActive:
		return "active"
	case StateExhausted:
		return "exhausted"
	case StateClosed:
		return "closed"
	case StateAborted:
		return "aborted"
	}

	return fmt.Sprintf("State(%d)", int(s))
}

// Sink writes a flat sequence of chunks into a succession of targets, pulled one at a
// time from its supply. When the active target rejects a chunk, the sink advances to the
// next target and retries the chunk there, exactly once.
//
// A Sink is not safe for concurrent use. Callers should Start it once, Write any number of
// chunks, then terminate with one of Close or Abort.
//
// Targets the sink advances past are released but never closed or aborted: whatever
// supplied the target, or the target itself, is responsible for noticing it is finished.
// Only the target active at termination is finalized by the sink.
type Sink[T any] struct {
	supply Supply[T]
	opts   options
	logger kitlog.Logger

	cursor Cursor[T]
	target Target[T]
	writer Writer[T]
	index  int
	state  State
}

// New builds a sink that will draw targets from the given supply. The supply is not
// touched until Start.
func New[T any](supply Supply[T], opts ...Option) *Sink[T] {
	o := options{logger: kitlog.NewNopLogger()}
	for _, opt := range opts {
		opt(&o)
	}

	return &Sink[T]{
		supply: supply,
		opts:   o,
		logger: kitlog.With(o.logger, "component", "concat_sink"),
	}
}

// State returns where the sink is in its lifecycle.
func (s *Sink[T]) State() State {
	return s.state
}

// Index returns how many targets the sink has pulled from its supply.
func (s *Sink[T]) Index() int {
	return s.index
}

// Start opens the supply and locks the first target. An empty supply fails with
// ErrSupplyExhausted.
func (s *Sink[T]) Start(ctx context.Context) error {
	ctx, span, logger := telem.StartSpan(ctx, s.logger, "pkg/concat.Sink.Start")
	defer span.End()

	if s.state != StateUninitialised {
		return fmt.Errorf("%w: cannot start a sink that is %s", ErrInvalidState, s.state)
	}

	if s.supply == nil {
		return fmt.Errorf("%w: sink has no supply", ErrInvalidState)
	}

	cursor, err := s.supply.open(ctx)
	if err != nil {
		return fmt.Errorf("failed to open supply: %w", err)
	}

	s.cursor, s.state = cursor, StateActive
	logger.Log("event", "start", "msg", "opened supply, locking first target")

	return s.advance(ctx, logger, nil, advanceReasonStart)
}

// Write submits the chunk to the active target. If the target rejects it, the sink
// advances and retries the chunk against the next target. Should the retry also fail, that
// error is returned as-is.
func (s *Sink[T]) Write(ctx context.Context, chunk T) error {
	ctx, span, logger := telem.StartSpan(ctx, s.logger, "pkg/concat.Sink.Write")
	defer span.End()

	if s.writer == nil {
		sinkWritesTotal.WithLabelValues(writeOutcomeInvalid).Inc()
		return fmt.Errorf("%w: no active writer, sink is %s", ErrInvalidState, s.state)
	}

	err := s.write(ctx, chunk)
	if err == nil {
		sinkWritesTotal.WithLabelValues(writeOutcomeSuccess).Inc()
		return nil
	}

	logger.Log("event", "write_rejected", "index", s.index, "error", err,
		"msg", "target rejected chunk, advancing to retry")

	if err := s.advance(ctx, logger, err, advanceReasonFailure); err != nil {
		sinkWritesTotal.WithLabelValues(writeOutcomeFailed).Inc()
		return err
	}

	if err := s.write(ctx, chunk); err != nil {
		sinkWritesTotal.WithLabelValues(writeOutcomeFailed).Inc()
		return err
	}

	sinkWritesTotal.WithLabelValues(writeOutcomeRetried).Inc()
	return nil
}

func (s *Sink[T]) write(ctx context.Context, chunk T) error {
	if err := s.writer.Ready(ctx); err != nil {
		return err
	}

	return s.writer.Write(ctx, chunk)
}

// Advance releases the active target and moves on to the next one, exactly as a rejected
// write would. The reason is passed to the supply.
func (s *Sink[T]) Advance(ctx context.Context, reason error) error {
	ctx, span, logger := telem.StartSpan(ctx, s.logger, "pkg/concat.Sink.Advance")
	defer span.End()

	if s.state != StateActive {
		return fmt.Errorf("%w: cannot advance a sink that is %s", ErrInvalidState, s.state)
	}

	return s.advance(ctx, logger, reason, advanceReasonExplicit)
}

// advance releases the current writer, without finalizing its target, and locks the next
// target from the cursor.
func (s *Sink[T]) advance(ctx context.Context, logger kitlog.Logger, reason error, label string) error {
	s.release()

	target, ok, err := s.cursor.Next(ctx, reason)
	if err != nil {
		return fmt.Errorf("failed to get next target: %w", err)
	}

	if !ok {
		s.state = StateExhausted
		sinkSupplyExhaustedTotal.Inc()
		logger.Log("event", "supply_exhausted", "index", s.index, "msg", "no targets left in supply")

		return fmt.Errorf("%w: used %d targets", ErrSupplyExhausted, s.index)
	}

	if target == nil {
		return fmt.Errorf("supply yielded nil target after %d targets", s.index)
	}

	writer, err := target.Lock(ctx)
	if err != nil {
		return fmt.Errorf("failed to lock target %d: %w", s.index+1, err)
	}

	s.target, s.writer = target, writer
	s.index++

	sinkAdvancesTotal.WithLabelValues(label).Inc()
	logger.Log("event", "advance", "index", s.index, "reason", label)

	return nil
}

// release relinquishes the active writer, if we have one.
func (s *Sink[T]) release() {
	if s.writer != nil {
		s.writer.Release()
	}

	s.target, s.writer = nil, nil
}

func (s *Sink[T]) terminated() bool {
	return s.state == StateClosed || s.state == StateAborted
}

// Close tells the supply we've finished, then closes and releases the active target.
// Closing a sink that has already terminated does nothing.
//
// If both the supply and the target fail, the target's error is returned.
func (s *Sink[T]) Close(ctx context.Context) error {
	ctx, span, logger := telem.StartSpan(ctx, s.logger, "pkg/concat.Sink.Close")
	defer span.End()

	if s.terminated() {
		return nil
	}

	s.state = StateClosed
	defer s.release()

	var completeErr error
	if s.cursor != nil {
		if completeErr = s.cursor.Complete(ctx); completeErr != nil {
			completeErr = fmt.Errorf("failed to complete supply: %w", completeErr)
		}
	}

	logger.Log("event", "close", "index", s.index, "prevent_close", s.opts.preventClose, "error", completeErr)
	if s.writer != nil && !s.opts.preventClose {
		if err := s.writer.Close(ctx); err != nil {
			return err
		}
	}

	return completeErr
}

// Abort tells the supply we've failed, then aborts and releases the active target. Errors
// from the supply are logged and discarded, so the target is always aborted. Aborting a
// sink that has already terminated does nothing.
func (s *Sink[T]) Abort(ctx context.Context, reason error) error {
	ctx, span, logger := telem.StartSpan(ctx, s.logger, "pkg/concat.Sink.Abort")
	defer span.End()

	if s.terminated() {
		return nil
	}

	s.state = StateAborted
	defer s.release()

	logger.Log("event", "abort", "index", s.index, "prevent_abort", s.opts.preventAbort, "reason", reason)
	if s.cursor != nil {
		s.failSupply(ctx, logger, reason)
	}

	if s.writer != nil && !s.opts.preventAbort {
		return s.writer.Abort(ctx, reason)
	}

	return nil
}

// failSupply signals failure into the cursor. Generators run arbitrary cleanup here, and
// nothing they do may stop us from aborting the target.
func (s *Sink[T]) failSupply(ctx context.Context, logger kitlog.Logger, reason error) {
	defer func() {
		if p := recover(); p != nil {
			logger.Log("event", "abort_supply_panic", "panic", p, "msg", "supply panicked during abort, ignoring")
		}
	}()

	if err := s.cursor.Fail(ctx, reason); err != nil {
		logger.Log("event", "abort_supply_error", "error", err, "msg", "supply failed during abort, ignoring")
	}
}
