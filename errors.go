package logfan

import (
	"errors"
	"fmt"
)

var (
	// ErrQueueUnavailable reports that the listener cannot be reached. The
	// slog binding downgrades it to a stderr notice so application code
	// never fails because logging did.
	ErrQueueUnavailable = errors.New("logfan: queue unavailable")

	// ErrQueueClosed reports a send on a queue after Close.
	ErrQueueClosed = errors.New("logfan: queue closed")

	// ErrShutdownTimeout reports that a listener did not confirm shutdown
	// within the allowed window. The listener is torn down regardless, so
	// callers usually log this and move on.
	ErrShutdownTimeout = errors.New("logfan: shutdown timed out")

	// ErrAlreadyStarted reports a second Start on a listener. Listeners are
	// single use: build a new one instead of restarting.
	ErrAlreadyStarted = errors.New("logfan: listener already started")

	// ErrNilRecord reports a Send with a nil record. On the wire nil marks
	// the shutdown sentinel, which only Stop may emit.
	ErrNilRecord = errors.New("logfan: nil record")
)

// ConfigError reports an invalid sink or listener configuration. It is
// fatal at startup: a misconfigured listener refuses to run rather than
// silently dropping a destination.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("logfan: invalid configuration: %s", e.Reason)
	}
	return fmt.Sprintf("logfan: invalid configuration: %s: %s", e.Field, e.Reason)
}
