// Package transport defines the message-delivery capability SPDM treats as
// an external collaborator (spec.md §6): it carries whole SPDM messages
// between peers and knows nothing about SPDM framing itself.
package transport

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTimeout is returned by Receive when no message arrives within the
	// caller-supplied timeout.
	ErrTimeout = errors.New("transport: receive timed out")
	// ErrClosed is returned by Send/Receive once Close has been called.
	ErrClosed = errors.New("transport: closed")
)

// Message is one whole SPDM message as handed to or received from the
// wire, tagged with whether it travels inside an established session and,
// if so, which one.
type Message struct {
	InSession bool
	SessionID uint32
	Data      []byte
}

// Transport is the capability the connection and session engines send and
// receive complete SPDM messages through. It is opaque to SPDM framing —
// implementations must deliver whole messages, never partial frames.
type Transport interface {
	Send(ctx context.Context, msg Message) error
	Receive(ctx context.Context, timeout time.Duration) (Message, error)
	Close() error
}
