package concat

import "errors"

var (
	// ErrInvalidState is returned when an operation is attempted while the sink has no
	// active writer, such as writing before Start or after the sink has terminated.
	ErrInvalidState = errors.New("sink is in an invalid state for this operation")

	// ErrSupplyExhausted is returned when the sink needs another target and the supply has
	// none left. No progress is possible after this, so the remaining chunks can't be
	// written.
	ErrSupplyExhausted = errors.New("target supply exhausted")
)
