package llm

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors classify every failure mode of the gateway. Callers
// branch with errors.Is; the wrapped message carries the human-readable
// detail (status codes, body excerpts, the offending model key).
var (
	// ErrConfiguration covers unknown model keys and missing credentials.
	ErrConfiguration = errors.New("configuration error")

	// ErrUpstream covers non-2xx responses from a provider.
	ErrUpstream = errors.New("upstream error")

	// ErrTimeout covers requests cancelled by the operation deadline.
	ErrTimeout = errors.New("timeout")

	// ErrProtocol covers responses that are 2xx but not parseable as the
	// expected chat-completion shape.
	ErrProtocol = errors.New("protocol error")
)

// configErrorf wraps ErrConfiguration with a formatted detail message.
func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// upstreamErrorf wraps ErrUpstream with a formatted detail message.
func upstreamErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUpstream, fmt.Sprintf(format, args...))
}

// protocolErrorf wraps ErrProtocol with a formatted detail message.
func protocolErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrProtocol, fmt.Sprintf(format, args...))
}

// classifyTransportError maps a failed http.Client.Do error to the
// taxonomy. Deadline expiry becomes ErrTimeout; everything else is an
// upstream failure (DNS, refused connection, reset mid-body).
func classifyTransportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrUpstream, err)
}
