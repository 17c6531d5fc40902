package concat

import (
	kitlog "github.com/go-kit/kit/log"
)

type options struct {
	preventClose bool
	preventAbort bool
	logger       kitlog.Logger
}

// Option configures a Sink.
type Option func(*options)

// WithPreventClose stops the sink from closing the active target when the sink is closed.
// The target is still released.
func WithPreventClose() Option {
	return func(o *options) {
		o.preventClose = true
	}
}

// WithPreventAbort stops the sink from aborting the active target when the sink is
// aborted. The supply is still told about the failure, and the target is still released.
func WithPreventAbort() Option {
	return func(o *options) {
		o.preventAbort = true
	}
}

// WithLogger sets the logger the sink reports its events through. Defaults to a no-op.
func WithLogger(logger kitlog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
