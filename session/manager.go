package session

import (
	"crypto/hmac"
	"strconv"
	"sync"
	"time"

	"github.com/openspdm/spdm-go/connection"
	"github.com/openspdm/spdm-go/internal/logger"
	"github.com/openspdm/spdm-go/internal/metrics"
	"github.com/openspdm/spdm-go/spdmcrypto"
	"github.com/openspdm/spdm-go/wire"
)

// Manager implements connection.SessionEngine: it allocates session IDs,
// drives KEY_EXCHANGE/PSK_EXCHANGE/FINISH/PSK_FINISH/KEY_UPDATE/
// END_SESSION/HEARTBEAT on the responder side, and owns the record-layer
// encrypt/decrypt entry points both roles use. Grounded on the teacher's
// core/session.Manager (map + RWMutex + background cleanup ticker).
type Manager struct {
	mu       sync.RWMutex
	sessions map[uint32]*Session
	nextID   uint32

	// pendingHandshake is the most recently KEY_EXCHANGE'd (or
	// PSK_EXCHANGE'd) session still awaiting FINISH (or PSK_FINISH).
	// connection.SessionEngine's HandleFinish/HandlePSKFinish methods carry
	// no session_id parameter (FINISH precedes session establishment, so
	// nothing yet marks a transport.Message as in-session); this tracks the
	// one handshake in flight, which is sufficient as long as a connection
	// does not pipeline a second KEY_EXCHANGE before the first completes.
	pendingHandshake uint32

	config Config
	psk    PSKLookup
	log    logger.Logger

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
}

// NewManager returns a Manager with the default idle/max-age policy. psk
// may be nil if PSK_EXCHANGE is never used by this side.
func NewManager(psk PSKLookup, log logger.Logger) *Manager {
	m := &Manager{
		sessions:    make(map[uint32]*Session),
		nextID:      1,
		config:      DefaultConfig(),
		psk:         psk,
		log:         log,
		stopCleanup: make(chan struct{}),
	}
	m.cleanupTicker = time.NewTicker(30 * time.Second)
	go m.runCleanup()
	return m
}

func (m *Manager) runCleanup() {
	for {
		select {
		case <-m.cleanupTicker.C:
			m.reapExpired()
		case <-m.stopCleanup:
			return
		}
	}
}

func (m *Manager) reapExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		if s.IsExpired() {
			s.Close()
			delete(m.sessions, id)
			metrics.SessionsExpired.Inc()
			metrics.SessionsActive.Dec()
		}
	}
}

// Close stops the cleanup goroutine and zeroizes every live session.
func (m *Manager) Close() {
	close(m.stopCleanup)
	m.cleanupTicker.Stop()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.Close()
		delete(m.sessions, id)
	}
}

func (m *Manager) allocateID() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	return id
}

func sessionIDString(id uint32) string {
	return strconv.FormatUint(uint64(id), 10)
}

func (m *Manager) get(id uint32) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) put(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.id] = s
}

func (m *Manager) remove(id uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.Close()
		delete(m.sessions, id)
	}
}

func hashLenFor(algo spdmcrypto.HashAlgo) (int, error) {
	info, err := spdmcrypto.GetHashInfo(algo)
	if err != nil {
		return 0, err
	}
	return info.DigestLen, nil
}

// measurementSummaryHash implements spec.md §4.5's optional
// MeasurementSummaryHash: 0 omits it entirely, 1 hashes the blocks
// MeasurementSource returns for index 1, and any other value hashes the
// blocks it returns for MeasurementIndexAll.
func measurementSummaryHash(c *connection.Context, hasher spdmcrypto.Hasher, summaryType byte) []byte {
	if summaryType == 0 || c.MeasurementSource == nil {
		return nil
	}
	operation := wire.MeasurementIndexAll
	if summaryType == 1 {
		operation = 0x01
	}
	blocks := c.MeasurementSource(operation)
	if len(blocks) == 0 {
		return nil
	}
	var buf []byte
	for _, b := range blocks {
		buf = append(buf, b.Index, b.MeasurementSpec)
		buf = append(buf, b.MeasurementData...)
	}
	return hasher.Sum(buf)
}

// HandleKeyExchange is the responder side of spec.md §4.5's DHE session
// establishment: it generates an ephemeral key pair, computes the shared
// secret, derives the handshake secrets from TH1, signs TH1 (mutual-auth
// capable responders always sign KEY_EXCHANGE_RSP), and appends
// ResponderVerifyData. The session remains PhaseHandshaking until FINISH.
func (m *Manager) HandleKeyExchange(c *connection.Context, body []byte) ([]byte, error) {
	start := time.Now()
	req, err := wire.DecodeKeyExchangeRequest(body)
	if err != nil {
		return nil, err
	}
	if c.LocalSigningKey == nil {
		return nil, errNoSigningKey
	}

	hasher, err := c.Crypto.Hash(c.Algorithms.BaseHash)
	if err != nil {
		return nil, err
	}
	hk, err := c.Crypto.Hkdf(c.Algorithms.BaseHash)
	if err != nil {
		return nil, err
	}
	hmacer, err := c.Crypto.Hmac(c.Algorithms.BaseHash)
	if err != nil {
		return nil, err
	}
	kex, err := c.Crypto.KeyExchange(c.Algorithms.Dhe)
	if err != nil {
		return nil, err
	}
	aead, err := c.Crypto.Aead(c.Algorithms.Aead)
	if err != nil {
		return nil, err
	}
	signer, err := c.Crypto.Signature(c.Algorithms.BaseAsym)
	if err != nil {
		return nil, err
	}
	hashLen, err := hashLenFor(c.Algorithms.BaseHash)
	if err != nil {
		return nil, err
	}

	priv, pub, err := kex.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	shared, err := kex.FinishExchange(priv, req.DHEPublic)
	if err != nil {
		return nil, err
	}

	nonce, err := c.Crypto.Random(wire.NonceLen)
	if err != nil {
		return nil, err
	}

	id := m.allocateID()
	sid := sessionIDString(id)
	if err := c.Transcripts.ForkForSession(sid); err != nil {
		return nil, err
	}
	if _, err := c.Transcripts.AppendSession(sid, body); err != nil {
		return nil, err
	}

	rsp := wire.KeyExchangeRspResponse{
		SessionID:              id,
		MeasurementSummaryHash: measurementSummaryHash(c, hasher, req.MeasurementSummaryHashType),
		DHEPublic:              pub,
	}
	copy(rsp.RandomNonce[:], nonce)

	if _, err := c.Transcripts.AppendSession(sid, wire.EncodeKeyExchangeRspUpToSignature(rsp)); err != nil {
		return nil, err
	}
	th1, err := c.Transcripts.FinalizeSession(sid, spdmcrypto.HashConstructor(hasher))
	if err != nil {
		return nil, err
	}

	sig, err := signer.Sign(c.LocalSigningKey, th1)
	if err != nil {
		return nil, err
	}
	rsp.Signature = sig
	if _, err := c.Transcripts.AppendSession(sid, sig); err != nil {
		return nil, err
	}

	secrets, err := DeriveHandshakeSecrets(hk, hashLen, shared, th1)
	if err != nil {
		return nil, err
	}
	rsp.ResponderVerifyData = hmacer.Sum(secrets.FinishedKeyResp, th1)
	if _, err := c.Transcripts.AppendSession(sid, rsp.ResponderVerifyData); err != nil {
		return nil, err
	}

	sess := newSession(id, connection.RoleResponder, hk, aead, hashLen, m.config)
	sess.secrets = secrets
	m.put(sess)

	m.mu.Lock()
	m.pendingHandshake = id
	m.mu.Unlock()

	metrics.SessionsCreated.WithLabelValues("key_exchange", "success").Inc()
	metrics.SessionDuration.WithLabelValues("establish").Observe(time.Since(start).Seconds())
	c.Log.Info("KEY_EXCHANGE accepted", logger.String("session_id", sid))
	return wire.EncodeKeyExchangeRspResponse(rsp), nil
}

// HandlePSKExchange mirrors HandleKeyExchange for the PSK path: there is
// no DHE share and no signature, only a shared secret resolved by hint via
// the manager's PSKLookup.
func (m *Manager) HandlePSKExchange(c *connection.Context, body []byte) ([]byte, error) {
	start := time.Now()
	req, err := wire.DecodePSKExchangeRequest(body)
	if err != nil {
		return nil, err
	}
	if m.psk == nil {
		return nil, errPSKHintUnknown
	}
	psk, err := m.psk(req.PSKHint)
	if err != nil {
		return nil, err
	}

	hasher, err := c.Crypto.Hash(c.Algorithms.BaseHash)
	if err != nil {
		return nil, err
	}
	hk, err := c.Crypto.Hkdf(c.Algorithms.BaseHash)
	if err != nil {
		return nil, err
	}
	hmacer, err := c.Crypto.Hmac(c.Algorithms.BaseHash)
	if err != nil {
		return nil, err
	}
	aead, err := c.Crypto.Aead(c.Algorithms.Aead)
	if err != nil {
		return nil, err
	}
	hashLen, err := hashLenFor(c.Algorithms.BaseHash)
	if err != nil {
		return nil, err
	}

	nonce, err := c.Crypto.Random(wire.NonceLen)
	if err != nil {
		return nil, err
	}

	id := m.allocateID()
	sid := sessionIDString(id)
	if err := c.Transcripts.ForkForSession(sid); err != nil {
		return nil, err
	}
	if _, err := c.Transcripts.AppendSession(sid, body); err != nil {
		return nil, err
	}

	rsp := wire.PSKExchangeRspResponse{
		SessionID:              id,
		MeasurementSummaryHash: measurementSummaryHash(c, hasher, req.MeasurementSummaryHashType),
	}
	copy(rsp.RandomNonce[:], nonce)

	prefix := wire.EncodePSKExchangeRspResponse(rsp)
	if _, err := c.Transcripts.AppendSession(sid, prefix); err != nil {
		return nil, err
	}
	th1, err := c.Transcripts.FinalizeSession(sid, spdmcrypto.HashConstructor(hasher))
	if err != nil {
		return nil, err
	}

	secrets, err := DeriveHandshakeSecrets(hk, hashLen, psk, th1)
	if err != nil {
		return nil, err
	}
	rsp.ResponderVerifyData = hmacer.Sum(secrets.FinishedKeyResp, th1)
	if _, err := c.Transcripts.AppendSession(sid, rsp.ResponderVerifyData); err != nil {
		return nil, err
	}

	sess := newSession(id, connection.RoleResponder, hk, aead, hashLen, m.config)
	sess.secrets = secrets
	sess.usePSK = true
	m.put(sess)

	m.mu.Lock()
	m.pendingHandshake = id
	m.mu.Unlock()

	metrics.SessionsCreated.WithLabelValues("psk_exchange", "success").Inc()
	metrics.SessionDuration.WithLabelValues("establish").Observe(time.Since(start).Seconds())
	return wire.EncodePSKExchangeRspResponse(rsp), nil
}

// HandleFinish verifies RequesterVerifyData (and, for mutual auth, the
// requester's signature) over TH2, derives the application-data secrets,
// and moves the session to PhaseEstablished.
func (m *Manager) HandleFinish(c *connection.Context, body []byte) ([]byte, error) {
	m.mu.RLock()
	id := m.pendingHandshake
	m.mu.RUnlock()
	sess, ok := m.get(id)
	if !ok || sess.State() != PhaseHandshaking {
		return nil, errSessionNotFound
	}
	sid := sessionIDString(id)

	hasher, err := c.Crypto.Hash(c.Algorithms.BaseHash)
	if err != nil {
		return nil, err
	}
	hmacer, err := c.Crypto.Hmac(c.Algorithms.BaseHash)
	if err != nil {
		return nil, err
	}
	signer, err := c.Crypto.Signature(c.Algorithms.BaseAsym)
	if err != nil {
		return nil, err
	}
	req, err := wire.DecodeFinishRequest(body, signer.SignatureSize(), hmacer.Size())
	if err != nil {
		return nil, err
	}

	if _, err := c.Transcripts.AppendSession(sid, wire.EncodeFinishRequestUpToVerifyData(req)); err != nil {
		return nil, err
	}

	if req.SignatureIncluded {
		thPreSig, err := c.Transcripts.FinalizeSession(sid, spdmcrypto.HashConstructor(hasher))
		if err != nil {
			return nil, err
		}
		if c.PeerPublicKeys[req.SlotID] == nil || signer.Verify(c.PeerPublicKeys[req.SlotID], thPreSig, req.Signature) != nil {
			return nil, errAuthFailed
		}
		if _, err := c.Transcripts.AppendSession(sid, req.Signature); err != nil {
			return nil, err
		}
	}

	thForVerify, err := c.Transcripts.FinalizeSession(sid, spdmcrypto.HashConstructor(hasher))
	if err != nil {
		return nil, err
	}
	expected := hmacer.Sum(sess.secrets.FinishedKeyReq, thForVerify)
	if !hmac.Equal(expected, req.RequesterVerifyData) {
		return nil, errFinishedMismatch
	}
	if _, err := c.Transcripts.AppendSession(sid, req.RequesterVerifyData); err != nil {
		return nil, err
	}

	th2, err := c.Transcripts.FinalizeSession(sid, spdmcrypto.HashConstructor(hasher))
	if err != nil {
		return nil, err
	}
	if err := sess.secrets.DeriveDataSecrets(sess.hk, sess.hashLen, th2); err != nil {
		return nil, err
	}
	if err := sess.activateDataKeys(sess.secrets); err != nil {
		return nil, err
	}
	c.Transcripts.DropSession(sid)

	m.mu.Lock()
	m.pendingHandshake = 0
	m.mu.Unlock()

	metrics.SessionsActive.Inc()
	return wire.EncodeFinishRspResponse(wire.FinishRspResponse{}), nil
}

// HandlePSKFinish is HandleFinish's PSK counterpart: no signature, just
// RequesterVerifyData over TH2.
func (m *Manager) HandlePSKFinish(c *connection.Context, body []byte) ([]byte, error) {
	m.mu.RLock()
	id := m.pendingHandshake
	m.mu.RUnlock()
	sess, ok := m.get(id)
	if !ok || sess.State() != PhaseHandshaking {
		return nil, errSessionNotFound
	}
	sid := sessionIDString(id)

	hasher, err := c.Crypto.Hash(c.Algorithms.BaseHash)
	if err != nil {
		return nil, err
	}
	hmacer, err := c.Crypto.Hmac(c.Algorithms.BaseHash)
	if err != nil {
		return nil, err
	}
	req, err := wire.DecodePSKFinishRequest(body, hmacer.Size())
	if err != nil {
		return nil, err
	}

	th, err := c.Transcripts.FinalizeSession(sid, spdmcrypto.HashConstructor(hasher))
	if err != nil {
		return nil, err
	}
	expected := hmacer.Sum(sess.secrets.FinishedKeyReq, th)
	if !hmac.Equal(expected, req.RequesterVerifyData) {
		return nil, errFinishedMismatch
	}
	if _, err := c.Transcripts.AppendSession(sid, req.RequesterVerifyData); err != nil {
		return nil, err
	}

	th2, err := c.Transcripts.FinalizeSession(sid, spdmcrypto.HashConstructor(hasher))
	if err != nil {
		return nil, err
	}
	if err := sess.secrets.DeriveDataSecrets(sess.hk, sess.hashLen, th2); err != nil {
		return nil, err
	}
	if err := sess.activateDataKeys(sess.secrets); err != nil {
		return nil, err
	}
	c.Transcripts.DropSession(sid)

	m.mu.Lock()
	m.pendingHandshake = 0
	m.mu.Unlock()

	metrics.SessionsActive.Inc()
	return wire.EncodePSKFinishRspResponse(wire.PSKFinishRspResponse{}), nil
}

// HandleKeyUpdate is the responder side of spec.md §4.5's rekey: it
// rotates the requested direction(s) and acknowledges with the same
// Operation/Tag so the requester can match the reply.
func (m *Manager) HandleKeyUpdate(c *connection.Context, sessionID uint32, body []byte) ([]byte, error) {
	req, err := wire.DecodeKeyUpdateRequest(body)
	if err != nil {
		return nil, err
	}
	sess, ok := m.get(sessionID)
	if !ok {
		return nil, errSessionNotFound
	}

	switch req.Operation {
	case wire.KeyUpdateOpUpdateKey:
		if err := sess.rotate(false); err != nil {
			return nil, err
		}
		metrics.KeyUpdates.WithLabelValues("update_key").Inc()
	case wire.KeyUpdateOpUpdateAllKeys:
		if err := sess.rotate(true); err != nil {
			return nil, err
		}
		metrics.KeyUpdates.WithLabelValues("update_all_keys").Inc()
	case wire.KeyUpdateOpVerifyNewKey:
		metrics.KeyUpdates.WithLabelValues("verify_new_key").Inc()
	default:
		return nil, errKeyUpdateNotPending
	}

	return wire.EncodeKeyUpdateAckResponse(wire.KeyUpdateAckResponse{Operation: req.Operation, Tag: req.Tag}), nil
}

// HandleEndSession tears the session down on ACK, per spec.md §4.5:
// "on ACK the session is removed and all secrets zeroized."
func (m *Manager) HandleEndSession(c *connection.Context, sessionID uint32, body []byte) ([]byte, error) {
	if _, err := wire.DecodeEndSessionRequest(body); err != nil {
		return nil, err
	}
	if _, ok := m.get(sessionID); !ok {
		return nil, errSessionNotFound
	}
	m.remove(sessionID)
	metrics.SessionsClosed.Inc()
	metrics.SessionsActive.Dec()
	return wire.EncodeEndSessionAckResponse(wire.EndSessionAckResponse{}), nil
}

// HandleHeartbeat resets the session's idle timer and acknowledges.
func (m *Manager) HandleHeartbeat(c *connection.Context, sessionID uint32, body []byte) ([]byte, error) {
	if _, err := wire.DecodeHeartbeatRequest(body); err != nil {
		return nil, err
	}
	sess, ok := m.get(sessionID)
	if !ok {
		return nil, errSessionNotFound
	}
	sess.mu.Lock()
	sess.lastUsedAt = time.Now()
	sess.mu.Unlock()
	return wire.EncodeHeartbeatAckResponse(wire.HeartbeatAckResponse{}), nil
}

// DecryptRecord opens one record-layer message for sessionID.
func (m *Manager) DecryptRecord(sessionID uint32, record []byte) ([]byte, error) {
	start := time.Now()
	sess, ok := m.get(sessionID)
	if !ok {
		return nil, errSessionNotFound
	}
	pt, err := sess.DecryptInbound(record)
	metrics.RecordProcessingDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RecordsProcessed.WithLabelValues("decrypt", "failure").Inc()
		return nil, err
	}
	metrics.RecordsProcessed.WithLabelValues("decrypt", "success").Inc()
	metrics.RecordSize.Observe(float64(len(pt)))
	return pt, nil
}

// EncryptRecord seals one record-layer message for sessionID.
func (m *Manager) EncryptRecord(sessionID uint32, payload []byte) ([]byte, error) {
	start := time.Now()
	sess, ok := m.get(sessionID)
	if !ok {
		return nil, errSessionNotFound
	}
	ct, err := sess.EncryptOutbound(payload)
	metrics.RecordProcessingDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RecordsProcessed.WithLabelValues("encrypt", "failure").Inc()
		return nil, err
	}
	metrics.RecordsProcessed.WithLabelValues("encrypt", "success").Inc()
	metrics.RecordSize.Observe(float64(len(payload)))
	return ct, nil
}
