package session

import (
	"sync"
	"time"

	"github.com/openspdm/spdm-go/connection"
	"github.com/openspdm/spdm-go/spdmcrypto"
)

// Session is one establishing or established SPDM secure session: the
// key-schedule state plus the directional AEAD keys derived from it.
// Mirrors the teacher's SecureSession in shape (direction-separated keys,
// explicit Close/IsExpired lifecycle, mutex-guarded state) generalized to
// spec.md §4.5's HKDF-Expand-Label schedule and implicit-nonce record
// layer instead of the teacher's per-message random nonce.
type Session struct {
	mu sync.RWMutex

	id     uint32
	role   connection.Role
	phase  Phase
	config Config

	createdAt  time.Time
	lastUsedAt time.Time

	hk      spdmcrypto.Hkdfer
	aead    spdmcrypto.AEAD
	hashLen int
	keyLen  int
	ivLen   int

	secrets *Secrets

	reqKeys *directionalKeys
	rspKeys *directionalKeys

	// oldReqKeys/oldRspKeys retain the pre-rotation key set for one
	// direction after a KEY_UPDATE, discarded the first time a message
	// decrypts successfully under the new key (see dropOldInboundLocked),
	// per spec.md §4.5: "the requester keeps both old and new key sets
	// active until the acknowledgement round-trips, then discards the old."
	oldReqKeys *directionalKeys
	oldRspKeys *directionalKeys

	usePSK bool
}

func newSession(id uint32, role connection.Role, hk spdmcrypto.Hkdfer, aead spdmcrypto.AEAD, hashLen int, cfg Config) *Session {
	now := time.Now()
	return &Session{
		id:         id,
		role:       role,
		phase:      PhaseHandshaking,
		config:     cfg,
		createdAt:  now,
		lastUsedAt: now,
		hk:         hk,
		aead:       aead,
		hashLen:    hashLen,
		keyLen:     aead.KeySize(),
		ivLen:      aead.NonceSize(),
	}
}

// ID returns the session_id this Session was allocated under.
func (s *Session) ID() uint32 { return s.id }

// State returns the session's current lifecycle phase.
func (s *Session) State() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// IsExpired reports whether the session has been closed or has exceeded
// its configured idle timeout or maximum age.
func (s *Session) IsExpired() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.phase == PhaseTerminated {
		return true
	}
	now := time.Now()
	if s.config.MaxAge > 0 && now.After(s.createdAt.Add(s.config.MaxAge)) {
		return true
	}
	if s.config.IdleTimeout > 0 && now.After(s.lastUsedAt.Add(s.config.IdleTimeout)) {
		return true
	}
	return false
}

// activateDataKeys derives request/response application-data traffic keys
// from secrets (already populated up through RequestDataSecret/
// ResponseDataSecret) and zeroizes the handshake secret, per spec.md
// §4.5: "Once a session reaches Established, its handshake secret must be
// zeroized; only traffic keys remain."
func (s *Session) activateDataKeys(secrets *Secrets) error {
	reqKey, reqIV, err := DeriveRecordKeys(s.hk, secrets.RequestDataSecret, s.keyLen, s.ivLen)
	if err != nil {
		return err
	}
	rspKey, rspIV, err := DeriveRecordKeys(s.hk, secrets.ResponseDataSecret, s.keyLen, s.ivLen)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets = secrets
	s.reqKeys = &directionalKeys{key: reqKey, ivSalt: reqIV}
	s.rspKeys = &directionalKeys{key: rspKey, ivSalt: rspIV}
	s.secrets.ZeroHandshakeSecret()
	s.phase = PhaseEstablished
	return nil
}

func (s *Session) outboundLocked() *directionalKeys {
	if s.role == connection.RoleRequester {
		return s.reqKeys
	}
	return s.rspKeys
}

// inboundLocked returns the current and (if a rotation is still within its
// grace window) prior key set for the direction this Session receives on.
func (s *Session) inboundLocked() (*directionalKeys, *directionalKeys) {
	if s.role == connection.RoleRequester {
		return s.rspKeys, s.oldRspKeys
	}
	return s.reqKeys, s.oldReqKeys
}

func (s *Session) dropOldInboundLocked() {
	if s.role == connection.RoleRequester {
		if s.oldRspKeys != nil {
			s.oldRspKeys.zero()
			s.oldRspKeys = nil
		}
		return
	}
	if s.oldReqKeys != nil {
		s.oldReqKeys.zero()
		s.oldReqKeys = nil
	}
}

// EncryptOutbound seals an application-data record under this session's
// current outbound key.
func (s *Session) EncryptOutbound(payload []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseEstablished {
		return nil, errNotEstablished
	}
	ct, err := sealRecord(s.aead, s.outboundLocked(), payload)
	if err != nil {
		return nil, err
	}
	s.lastUsedAt = time.Now()
	return ct, nil
}

// DecryptInbound opens an application-data record, trying the current
// inbound key first and falling back to the prior key set if a rotation's
// acknowledgement has not yet round-tripped. A successful decrypt under
// the current key retires any still-pending prior key.
func (s *Session) DecryptInbound(record []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseEstablished {
		return nil, errNotEstablished
	}
	cur, old := s.inboundLocked()
	if pt, err := openRecord(s.aead, cur, record); err == nil {
		s.dropOldInboundLocked()
		s.lastUsedAt = time.Now()
		return pt, nil
	} else if old == nil {
		return nil, err
	}
	pt, err := openRecord(s.aead, old, record)
	if err != nil {
		return nil, err
	}
	s.lastUsedAt = time.Now()
	return pt, nil
}

// rotate applies spec.md §4.5's KEY_UPDATE derivation
// (new_secret = HKDF-Expand-Label(old_secret, "key update", "")) to the
// response-direction secret, and additionally to the request-direction
// secret when all is true. The response direction is always included
// because DSP0274 routes KEY_UPDATE requests from Requester to Responder;
// "rotate outbound only" names the Responder's outbound (response) leg.
func (s *Session) rotate(all bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseEstablished {
		return errNotEstablished
	}

	newRspSecret, err := UpdateSecret(s.hk, s.secrets.ResponseDataSecret, s.hashLen)
	if err != nil {
		return err
	}
	rspKey, rspIV, err := DeriveRecordKeys(s.hk, newRspSecret, s.keyLen, s.ivLen)
	if err != nil {
		return err
	}
	s.oldRspKeys = s.rspKeys
	s.secrets.ResponseDataSecret = newRspSecret
	s.rspKeys = &directionalKeys{key: rspKey, ivSalt: rspIV}

	if all {
		newReqSecret, err := UpdateSecret(s.hk, s.secrets.RequestDataSecret, s.hashLen)
		if err != nil {
			return err
		}
		reqKey, reqIV, err := DeriveRecordKeys(s.hk, newReqSecret, s.keyLen, s.ivLen)
		if err != nil {
			return err
		}
		s.oldReqKeys = s.reqKeys
		s.secrets.RequestDataSecret = newReqSecret
		s.reqKeys = &directionalKeys{key: reqKey, ivSalt: reqIV}
	}
	return nil
}

// Close zeroizes every secret and key this Session holds and marks it
// terminated; subsequent record operations fail with errNotEstablished.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseTerminated {
		return
	}
	s.phase = PhaseTerminated
	for _, d := range []*directionalKeys{s.reqKeys, s.rspKeys, s.oldReqKeys, s.oldRspKeys} {
		if d != nil {
			d.zero()
		}
	}
	if s.secrets != nil {
		s.secrets.Zero()
	}
	s.reqKeys, s.rspKeys, s.oldReqKeys, s.oldRspKeys = nil, nil, nil, nil
}
