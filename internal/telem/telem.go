package telem

import (
	"context"

	kitlog "github.com/go-kit/kit/log"
	"go.opencensus.io/trace"
)

// ctxKey is a private type, only constructable by this package, which helps namespace
// values we store in a context. We use a string instead of ints as they are far more
// debuggable when spewing the context.
type ctxKey string

const (
	loggerKey = ctxKey("LoggerKey")
)

// WithLogger stores the logger in the context, so any function further down the stack
// can recover it with LoggerFrom.
func WithLogger(ctx context.Context, logger kitlog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// LoggerFrom returns the logger stored in the context, or the fallback when no logger has
// been set. A nil fallback is replaced with a no-op logger.
func LoggerFrom(ctx context.Context, fallback kitlog.Logger) kitlog.Logger {
	if logger, ok := ctx.Value(loggerKey).(kitlog.Logger); ok && logger != nil {
		return logger
	}

	if fallback == nil {
		return kitlog.NewNopLogger()
	}

	return fallback
}

// StartSpan opens a new span and returns the given logger tagged with the span's trace ID,
// like so:
//
//	ctx, span, logger := telem.StartSpan(ctx, s.logger, "pkg/concat.Sink.Write")
//	defer span.End()
//
// Pass the component's own logger, not one returned from an earlier StartSpan, or the
// trace ID will be tagged twice. A nil logger falls back to whatever the context carries,
// which has already been tagged.
func StartSpan(ctx context.Context, logger kitlog.Logger, name string) (context.Context, *trace.Span, kitlog.Logger) {
	ctx, span := trace.StartSpan(ctx, name)
	if logger == nil {
		return ctx, span, LoggerFrom(ctx, nil)
	}

	// No span means no tracing is configured, and there's no point tagging a nil trace ID
	if span != nil {
		logger = kitlog.With(logger, "trace_id", span.SpanContext().TraceID)
	}

	return WithLogger(ctx, logger), span, logger
}
