// Package wstransport carries whole SPDM messages as binary WebSocket
// frames, adapted from the teacher's transport/websocket client/server
// pair. Unlike the teacher's JSON request/response envelope, SPDM messages
// are opaque binary blobs, so each frame is tagged with a small fixed
// header (in-session flag + session id) instead of being wrapped in JSON.
package wstransport

import (
	"context"
	"encoding/binary"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/openspdm/spdm-go/transport"
)

const frameHeaderLen = 5 // 1 byte in-session flag + 4 byte little-endian session id

func encodeFrame(msg transport.Message) []byte {
	frame := make([]byte, frameHeaderLen+len(msg.Data))
	if msg.InSession {
		frame[0] = 1
	}
	binary.LittleEndian.PutUint32(frame[1:5], msg.SessionID)
	copy(frame[frameHeaderLen:], msg.Data)
	return frame
}

func decodeFrame(frame []byte) (transport.Message, error) {
	if len(frame) < frameHeaderLen {
		return transport.Message{}, fmt.Errorf("wstransport: frame shorter than header (%d bytes)", len(frame))
	}
	return transport.Message{
		InSession: frame[0] == 1,
		SessionID: binary.LittleEndian.Uint32(frame[1:5]),
		Data:      append([]byte(nil), frame[frameHeaderLen:]...),
	}, nil
}

// Transport wraps a single *websocket.Conn (either dialed as a client or
// accepted as a server) as a transport.Transport. A background goroutine
// reads frames off the connection into an internal channel so Receive can
// honor a caller timeout.
type Transport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu       sync.Mutex
	closed   bool
	incoming chan transport.Message
	readErr  chan error
}

var _ transport.Transport = (*Transport)(nil)

func newTransport(conn *websocket.Conn, writeTimeout time.Duration) *Transport {
	t := &Transport{
		conn:         conn,
		writeTimeout: writeTimeout,
		incoming:     make(chan transport.Message, 16),
		readErr:      make(chan error, 1),
	}
	go t.readLoop()
	return t
}

// Dial connects to a Responder's WebSocket endpoint.
func Dial(ctx context.Context, url string, dialTimeout, writeTimeout time.Duration) (*Transport, error) {
	dialer := &websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("wstransport: dial failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("wstransport: dial failed: %w", err)
	}
	return newTransport(conn, writeTimeout), nil
}

// Upgrader upgrades inbound HTTP connections to WebSocket transports for a
// Responder's listener.
type Upgrader struct {
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
}

// NewUpgrader returns an Upgrader with permissive origin checking, matching
// the teacher's demo-server posture (tightened by the caller's own
// http.Handler wrapping if needed).
func NewUpgrader(writeTimeout time.Duration) *Upgrader {
	return &Upgrader{
		upgrader:     websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		writeTimeout: writeTimeout,
	}
}

// Accept upgrades one HTTP request into a Transport.
func (u *Upgrader) Accept(w http.ResponseWriter, r *http.Request) (*Transport, error) {
	conn, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("wstransport: upgrade failed: %w", err)
	}
	return newTransport(conn, u.writeTimeout), nil
}

func (t *Transport) readLoop() {
	for {
		kind, data, err := t.conn.ReadMessage()
		if err != nil {
			t.readErr <- err
			close(t.incoming)
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		msg, err := decodeFrame(data)
		if err != nil {
			t.readErr <- err
			continue
		}
		t.incoming <- msg
	}
}

func (t *Transport) Send(ctx context.Context, msg transport.Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return transport.ErrClosed
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = t.conn.SetWriteDeadline(deadline)
	} else if t.writeTimeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	}
	if err := t.conn.WriteMessage(websocket.BinaryMessage, encodeFrame(msg)); err != nil {
		return fmt.Errorf("wstransport: write failed: %w", err)
	}
	return nil
}

func (t *Transport) Receive(ctx context.Context, timeout time.Duration) (transport.Message, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	select {
	case msg, ok := <-t.incoming:
		if !ok {
			return transport.Message{}, fmt.Errorf("wstransport: connection closed: %w", <-t.readErr)
		}
		return msg, nil
	case <-deadline:
		return transport.Message{}, transport.ErrTimeout
	case <-ctx.Done():
		return transport.Message{}, ctx.Err()
	}
}

func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	_ = t.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return t.conn.Close()
}
