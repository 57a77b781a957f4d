package kernel

import (
	"errors"
	"fmt"
)

// Errors reported by the real-time I/O fabric. They are wrapped in an
// RTIOError.
var (
	ErrUnderflow              = errors.New("rtio underflow")
	ErrOverflow               = errors.New("rtio input overflow")
	ErrDestinationUnreachable = errors.New("rtio destination unreachable")
	ErrFabricTimeout          = errors.New("rtio fabric timeout")
	ErrInvalidCommand         = errors.New("rtio invalid command")
)

// Errors caused by the use of the kernel API.
var (
	ErrBatchRunning = errors.New("batched mode is already running")
	ErrBatchFull    = errors.New("batch buffer is full")
	ErrTooManyLanes = errors.New("too many data lanes")
	ErrNoReply      = errors.New("no reply from the bridge")
)

// RTIOError describes an exceptional status that the fabric reported for a
// channel.
type RTIOError struct {
	Kind      error
	Channel   uint32
	Timestamp int64
	Slack     int64
	Input     bool
}

func (e *RTIOError) Error() string {
	switch {
	case errors.Is(e.Kind, ErrUnderflow):
		return fmt.Sprintf("%s at %d mu, channel %d, slack %d mu",
			e.Kind, e.Timestamp, e.Channel, e.Slack)
	case errors.Is(e.Kind, ErrDestinationUnreachable) && !e.Input:
		return fmt.Sprintf("%s, output, at %d mu, channel %d",
			e.Kind, e.Timestamp, e.Channel)
	case errors.Is(e.Kind, ErrDestinationUnreachable):
		return fmt.Sprintf("%s, input, on channel %d", e.Kind, e.Channel)
	default:
		return fmt.Sprintf("%s on channel %d", e.Kind, e.Channel)
	}
}

// Unwrap returns the kind of the error so that errors.Is works with the
// sentinel values.
func (e *RTIOError) Unwrap() error {
	return e.Kind
}
