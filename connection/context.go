// Package connection implements the SPDM connection engine: version,
// capability, and algorithm negotiation, certificate provisioning,
// CHALLENGE-based authentication, and measurement retrieval. It owns the
// per-connection Context both roles read and mutate, and dispatches
// incoming messages by request_response_code the way the teacher's
// handshake server dispatches by phase.
package connection

import (
	"sync"

	"github.com/google/uuid"

	"github.com/openspdm/spdm-go/internal/logger"
	"github.com/openspdm/spdm-go/spdmcrypto"
	"github.com/openspdm/spdm-go/transcript"
	"github.com/openspdm/spdm-go/transport"
	"github.com/openspdm/spdm-go/wire"
)

// Role distinguishes which side of the exchange a Context represents.
type Role int

const (
	RoleRequester Role = iota
	RoleResponder
)

func (r Role) String() string {
	if r == RoleRequester {
		return "requester"
	}
	return "responder"
}

// State is the connection_state enum from spec.md §3.
type State int

const (
	StateNotStarted State = iota
	StateAfterVersion
	StateAfterCapabilities
	StateNegotiatedAlgorithms
	StateAfterDigests
	StateAfterCertificate
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not_started"
	case StateAfterVersion:
		return "after_version"
	case StateAfterCapabilities:
		return "after_capabilities"
	case StateNegotiatedAlgorithms:
		return "negotiated_algorithms"
	case StateAfterDigests:
		return "after_digests"
	case StateAfterCertificate:
		return "after_certificate"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// ResponseState is the response_state enum from spec.md §3/§4.4.
type ResponseState int

const (
	ResponseNormal ResponseState = iota
	ResponseBusy
	ResponseNeedResync
	ResponseNotReady
	ResponseProcessingEncap
)

// NegotiatedAlgorithms is the algorithm_selection record from spec.md §3,
// fixed once NEGOTIATE_ALGORITHMS/ALGORITHMS completes.
type NegotiatedAlgorithms struct {
	BaseHash        spdmcrypto.HashAlgo
	BaseAsym        spdmcrypto.AsymAlgo
	Dhe             spdmcrypto.DheGroup
	Aead            spdmcrypto.AeadAlgo
	MeasurementHash spdmcrypto.MeasurementHashAlgo
}

const maxSlots = 8

// PendingNotReady is the cached request a responder replays when the
// requester retries with RESPOND_IF_READY, per spec.md §4.4's
// response-state gating.
type PendingNotReady struct {
	RequestCode wire.RequestResponseCode
	Token       byte
	Request     []byte
	Extended    wire.NotReadyExtendedData
}

// SessionEngine is the capability surface the connection engine calls into
// for every session-scoped opcode (KEY_EXCHANGE, PSK_EXCHANGE, FINISH,
// PSK_FINISH, KEY_UPDATE, END_SESSION, HEARTBEAT, and session-record
// encrypt/decrypt). Kept as an interface so connection never imports
// session directly, mirroring how spdmcrypto.Backend keeps connection
// decoupled from any one crypto implementation.
type SessionEngine interface {
	HandleKeyExchange(c *Context, body []byte) ([]byte, error)
	HandlePSKExchange(c *Context, body []byte) ([]byte, error)
	HandleFinish(c *Context, body []byte) ([]byte, error)
	HandlePSKFinish(c *Context, body []byte) ([]byte, error)
	HandleKeyUpdate(c *Context, sessionID uint32, body []byte) ([]byte, error)
	HandleEndSession(c *Context, sessionID uint32, body []byte) ([]byte, error)
	HandleHeartbeat(c *Context, sessionID uint32, body []byte) ([]byte, error)
	DecryptRecord(sessionID uint32, record []byte) ([]byte, error)
	EncryptRecord(sessionID uint32, payload []byte) ([]byte, error)
}

// Context holds every piece of state one SPDM connection accumulates
// across its lifetime, per spec.md §3's Context type.
type Context struct {
	mu sync.RWMutex

	// ConnectionID correlates this Context's log lines across the
	// connection's lifetime, the way the teacher's session.Metadata tags
	// each session with a generated ID.
	ConnectionID string

	Role      Role
	Transport transport.Transport
	Crypto    spdmcrypto.Backend
	Log       logger.Logger
	Transcripts *transcript.Manager
	Sessions  SessionEngine

	LocalVersion wire.Version
	PeerVersions []wire.VersionEntry
	Version      wire.Version

	LocalCapabilities wire.CapabilityFlags
	PeerCapabilities  wire.CapabilityFlags
	LocalCTExponent   byte
	PeerCTExponent    byte

	Algorithms NegotiatedAlgorithms

	State         State
	ResponseState ResponseState

	LocalCertChains [maxSlots][]byte // DER-encoded cert_chain per slot, caller-provisioned
	PeerCertChains  [maxSlots][]byte
	PeerCertDigests [maxSlots][]byte

	// LocalSigningKey is the private-key handle spdmcrypto.Signer.Sign
	// expects, used for CHALLENGE_AUTH and (mutual-auth) FINISH/GET_MEASUREMENTS
	// signatures. PeerPublicKeys holds the per-slot public-key handle
	// Signer.Verify expects, populated once a chain is parsed out-of-band.
	LocalSigningKey any
	PeerPublicKeys  [maxSlots]any

	// MeasurementSource supplies this responder's measurement blocks for a
	// given GET_MEASUREMENTS Operation byte (0x00 = count, 0xFF = all, else
	// one specific index). A nil source reports an empty measurement set.
	MeasurementSource func(operation byte) []wire.MeasurementBlock

	CurrentToken byte
	pending      *PendingNotReady

	ActiveSessions map[uint32]struct{}

	// currentSessionID is set transiently by HandleSessionRequest so a
	// session-scoped handler resolved purely by opcode can still learn
	// which session it is running against.
	currentSessionID uint32

	dispatch map[wire.RequestResponseCode]Handler
}

// Handler processes one decoded request body for opcode and returns the
// encoded response to send back (or an error to translate into ERROR).
type Handler func(c *Context, body []byte) ([]byte, error)

// NewContext constructs a Context for role, wired to the given transport,
// crypto backend, and logger. localVersion is this side's highest
// supported SPDM version; localCaps is the capability mask this side is
// prepared to advertise.
func NewContext(role Role, t transport.Transport, crypto spdmcrypto.Backend, log logger.Logger, localVersion wire.Version, localCaps wire.CapabilityFlags) *Context {
	c := &Context{
		ConnectionID:      uuid.NewString(),
		Role:              role,
		Transport:         t,
		Crypto:            crypto,
		Log:               log,
		Transcripts:       transcript.NewManager(),
		LocalVersion:      localVersion,
		LocalCapabilities: localCaps,
		State:             StateNotStarted,
		ResponseState:     ResponseNormal,
		ActiveSessions:    make(map[uint32]struct{}),
	}
	c.dispatch = c.defaultHandlers()
	return c
}

// RegisterHandler installs (or overrides) the handler for opcode, letting
// a caller plug in vendor-defined request codes without modifying the
// engine, per spec.md §9's "registered handlers" design note.
func (c *Context) RegisterHandler(opcode wire.RequestResponseCode, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dispatch[opcode] = h
}

// SetResponseState installs response_state under lock, for subsystems
// outside this package (encap's Busy/ProcessingEncap driver) that need to
// change the state applyResponseStateGate reads on every inbound request.
func (c *Context) SetResponseState(s ResponseState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ResponseState = s
}

func (c *Context) setState(s State) {
	c.mu.Lock()
	c.State = s
	c.mu.Unlock()
}

func (c *Context) getState() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.State
}

// nextToken increments and returns CurrentToken, used to tag a new
// RESPONSE_NOT_READY cache entry.
func (c *Context) nextToken() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CurrentToken++
	return c.CurrentToken
}

// Reset returns the Context to StateNotStarted and ResponseNormal and clears
// the negotiated algorithms, the pending NOT_READY entry, CurrentToken and
// every transcript; version, capability and peer certificate fields are
// left as they are. Used on ERROR(REQUEST_RESYNCH) per spec.md §4.4.
func (c *Context) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.State = StateNotStarted
	c.ResponseState = ResponseNormal
	c.Algorithms = NegotiatedAlgorithms{}
	c.pending = nil
	c.CurrentToken = 0
	c.Transcripts.Reset()
}
