// Package loopback provides an in-memory Transport pair for tests and the
// demo CLIs, modeled on the teacher's transport.MockTransport: no network,
// just channels connecting two in-process ends.
package loopback

import (
	"context"
	"sync"
	"time"

	"github.com/openspdm/spdm-go/transport"
)

// End is one side of an in-memory transport pair.
type End struct {
	out      chan transport.Message
	in       chan transport.Message
	mu       sync.Mutex
	closed   bool
	sent     []transport.Message
}

// NewPair returns two connected Ends; messages sent on one arrive on the
// other's Receive.
func NewPair() (*End, *End) {
	ab := make(chan transport.Message, 64)
	ba := make(chan transport.Message, 64)
	a := &End{out: ab, in: ba}
	b := &End{out: ba, in: ab}
	return a, b
}

var _ transport.Transport = (*End)(nil)

func (e *End) Send(ctx context.Context, msg transport.Message) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return transport.ErrClosed
	}
	e.sent = append(e.sent, msg)
	e.mu.Unlock()

	select {
	case e.out <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *End) Receive(ctx context.Context, timeout time.Duration) (transport.Message, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return transport.Message{}, transport.ErrClosed
	}
	e.mu.Unlock()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case msg := <-e.in:
		return msg, nil
	case <-deadline:
		return transport.Message{}, transport.ErrTimeout
	case <-ctx.Done():
		return transport.Message{}, ctx.Err()
	}
}

func (e *End) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return nil
}

// SentMessages returns everything Send has captured, for test assertions.
func (e *End) SentMessages() []transport.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]transport.Message(nil), e.sent...)
}
