package publisher

import (
	"context"
	"errors"
)

// Publisher publishes a payload to a subject and returns the broker-assigned
// message identifier. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, subject string, payload []byte) (string, error)
}

// Failure categories. Broker errors are mapped onto these sentinels so the
// handler can pick a response status with errors.Is while the wrapped cause
// stays available for logging.
var (
	// ErrTimeout means the broker did not acknowledge within the bound.
	ErrTimeout = errors.New("publish timed out")

	// ErrUnavailable means the broker rejected or could not accept the
	// publish (not connected, no responders, stream missing).
	ErrUnavailable = errors.New("broker unavailable")

	// ErrInvalidPayload means the broker refused the message itself,
	// e.g. it exceeds the server's maximum payload size.
	ErrInvalidPayload = errors.New("invalid payload")
)
