// Package transcript maintains the running hashes SPDM signs and MACs
// against: VCA (version/capability/algorithm negotiation), M1M2
// (digest/certificate/challenge), L (measurement), and one TH buffer per
// session (key-exchange/finish). Buffers are append-only; a Marker
// returned by Append lets a caller roll back to that point when a
// signature verification fails or a trailing field must be inserted
// after the hash was already fed.
package transcript

import (
	"fmt"
	"hash"
	"sync"
)

// Kind names one of the three connection-scoped transcripts. Session
// transcripts (TH) are addressed by session ID instead, since there may
// be many concurrent sessions per Context.
type Kind int

const (
	VCA Kind = iota
	M1M2
	L
)

func (k Kind) String() string {
	switch k {
	case VCA:
		return "VCA"
	case M1M2:
		return "M1M2"
	case L:
		return "L"
	default:
		return "unknown"
	}
}

// Marker identifies a byte offset within one logical transcript, returned
// by Append and consumed by Rollback.
type Marker struct {
	bufferKind string // "VCA", "M1M2", "L", or "TH:<sessionID>"
	offset     int
}

// buffer is one logical transcript: raw bytes are always retained (bounded
// by maxRetain) so Rollback can recompute the hash context from scratch,
// since Go's hash.Hash is not generally cloneable.
type buffer struct {
	raw        []byte
	newHash    func() hash.Hash
	h          hash.Hash
	maxRetain  int
}

const defaultMaxRetain = 1 << 20 // 1 MiB; SPDM transcripts are message-bounded, not streams

func newBuffer() *buffer {
	return &buffer{maxRetain: defaultMaxRetain}
}

func (b *buffer) append(data []byte) int {
	offset := len(b.raw)
	b.raw = append(b.raw, data...)
	if len(b.raw) > b.maxRetain {
		// Drop the oldest bytes, finalized or not; markers into the dropped
		// range can no longer be rolled back to, which matches how SPDM
		// never re-targets a marker after the owning message round-trip
		// completes.
		overflow := len(b.raw) - b.maxRetain
		b.raw = b.raw[overflow:]
	}
	if b.h != nil {
		b.h.Write(data)
	}
	return offset
}

func (b *buffer) finalize(newHash func() hash.Hash) []byte {
	b.newHash = newHash
	b.h = newHash()
	b.h.Write(b.raw)
	return b.h.Sum(nil)
}

func (b *buffer) digest() ([]byte, error) {
	if b.h == nil {
		return nil, fmt.Errorf("transcript: digest requested before finalize")
	}
	return b.h.Sum(nil), nil
}

func (b *buffer) rollback(offset int) error {
	if offset < 0 || offset > len(b.raw) {
		return fmt.Errorf("transcript: rollback offset %d out of range [0,%d]", offset, len(b.raw))
	}
	b.raw = b.raw[:offset]
	if b.newHash != nil {
		b.h = b.newHash()
		b.h.Write(b.raw)
	}
	return nil
}

// Manager owns every transcript buffer for one Context plus the per-session
// TH forks created at KEY_EXCHANGE/PSK_EXCHANGE time.
type Manager struct {
	mu       sync.RWMutex
	buffers  map[Kind]*buffer
	sessions map[string]*buffer
}

// NewManager returns a Manager with VCA, M1M2, and L initialized empty.
func NewManager() *Manager {
	return &Manager{
		buffers: map[Kind]*buffer{
			VCA:  newBuffer(),
			M1M2: newBuffer(),
			L:    newBuffer(),
		},
		sessions: make(map[string]*buffer),
	}
}

// Append adds data to the named transcript, returning a Marker that
// Rollback can later target.
func (m *Manager) Append(kind Kind, data []byte) (Marker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buffers[kind]
	if !ok {
		return Marker{}, fmt.Errorf("transcript: unknown kind %v", kind)
	}
	offset := b.append(data)
	return Marker{bufferKind: kind.String(), offset: offset}, nil
}

// AppendSession adds data to the TH buffer for sessionID. The buffer must
// already exist (ForkForSession creates it from the current VCA bytes); an
// unforked sessionID is an error.
func (m *Manager) AppendSession(sessionID string, data []byte) (Marker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.sessions[sessionID]
	if !ok {
		return Marker{}, fmt.Errorf("transcript: session %q not forked", sessionID)
	}
	offset := b.append(data)
	return Marker{bufferKind: "TH:" + sessionID, offset: offset}, nil
}

// ForkForSession snapshots the current VCA bytes as the starting point of
// a new TH transcript for sessionID, per spec.md §3's TH definition
// ("VCA ∥ (cert chain bytes ∥ KEY_EXCHANGE ...)").
func (m *Manager) ForkForSession(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[sessionID]; exists {
		return fmt.Errorf("transcript: session %q already forked", sessionID)
	}
	vca := m.buffers[VCA]
	th := newBuffer()
	th.raw = append([]byte(nil), vca.raw...)
	m.sessions[sessionID] = th
	return nil
}

// DropSession releases the TH buffer for sessionID (called on END_SESSION
// or fatal session teardown).
func (m *Manager) DropSession(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// Finalize switches kind's hashing context to hashFn (called once
// algorithm negotiation fixes the hash algorithm) and returns the digest
// of everything appended so far. Every later Append also feeds the live
// hash incrementally.
func (m *Manager) Finalize(kind Kind, hashFn func() hash.Hash) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buffers[kind]
	if !ok {
		return nil, fmt.Errorf("transcript: unknown kind %v", kind)
	}
	return b.finalize(hashFn), nil
}

// FinalizeSession is Finalize's session-scoped counterpart, used the first
// time a session's negotiated hash algorithm is known (always true by
// KEY_EXCHANGE time, since algorithm negotiation precedes it).
func (m *Manager) FinalizeSession(sessionID string, hashFn func() hash.Hash) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("transcript: session %q not forked", sessionID)
	}
	return b.finalize(hashFn), nil
}

// Digest returns the current hash of kind without mutating it. Finalize
// must have been called first.
func (m *Manager) Digest(kind Kind) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.buffers[kind]
	if !ok {
		return nil, fmt.Errorf("transcript: unknown kind %v", kind)
	}
	return b.digest()
}

// DigestSession is Digest's session-scoped counterpart.
func (m *Manager) DigestSession(sessionID string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("transcript: session %q not forked", sessionID)
	}
	return b.digest()
}

// Rollback truncates the transcript marker.bufferKind addresses back to
// marker's offset, recomputing the hash context from the retained raw
// bytes if the buffer had been finalized.
func (m *Manager) Rollback(marker Marker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for kind, b := range m.buffers {
		if kind.String() == marker.bufferKind {
			return b.rollback(marker.offset)
		}
	}
	for sid, b := range m.sessions {
		if "TH:"+sid == marker.bufferKind {
			return b.rollback(marker.offset)
		}
	}
	return fmt.Errorf("transcript: marker targets unknown buffer %q", marker.bufferKind)
}

// Reset clears VCA/M1M2/L and all session forks, used when the Context
// resets to NotStarted (e.g. on ERROR(REQUEST_RESYNCH)).
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffers = map[Kind]*buffer{
		VCA:  newBuffer(),
		M1M2: newBuffer(),
		L:    newBuffer(),
	}
	m.sessions = make(map[string]*buffer)
}
