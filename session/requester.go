package session

import (
	"crypto/hmac"
	"time"

	"github.com/openspdm/spdm-go/connection"
	"github.com/openspdm/spdm-go/internal/metrics"
	"github.com/openspdm/spdm-go/spdmcrypto"
	"github.com/openspdm/spdm-go/wire"
)

// EstablishSession drives the requester side of spec.md §4.5's DHE session
// establishment (KEY_EXCHANGE followed by FINISH) over send, mirroring
// connection.Context.Connect's phase-by-phase style. peerSlot selects
// which negotiated certificate slot verifies the responder's KEY_EXCHANGE_RSP
// signature; mutualAuth additionally signs FINISH with c.LocalSigningKey.
func (m *Manager) EstablishSession(c *connection.Context, send func(req []byte) ([]byte, error), slotID byte, summaryType byte, peerSlot byte, mutualAuth bool) (*Session, error) {
	start := time.Now()

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
	nonce, err := c.Crypto.Random(wire.NonceLen)
	if err != nil {
		return nil, err
	}

	req := wire.KeyExchangeRequest{MeasurementSummaryHashType: summaryType, SlotID: slotID, DHEPublic: pub}
	copy(req.RandomNonce[:], nonce)
	reqBytes := wire.EncodeKeyExchangeRequest(req)

	rspBytes, err := send(reqBytes)
	if err != nil {
		return nil, err
	}

	summaryLen := 0
	if summaryType != 0 {
		summaryLen = hashLen
	}
	rsp, err := wire.DecodeKeyExchangeRspResponse(rspBytes, summaryLen, signer.SignatureSize(), hmacer.Size())
	if err != nil {
		return nil, err
	}

	shared, err := kex.FinishExchange(priv, rsp.DHEPublic)
	if err != nil {
		return nil, err
	}

	sid := sessionIDString(rsp.SessionID)
	if err := c.Transcripts.ForkForSession(sid); err != nil {
		return nil, err
	}
	if _, err := c.Transcripts.AppendSession(sid, reqBytes); err != nil {
		return nil, err
	}
	if _, err := c.Transcripts.AppendSession(sid, wire.EncodeKeyExchangeRspUpToSignature(rsp)); err != nil {
		return nil, err
	}
	th1, err := c.Transcripts.FinalizeSession(sid, spdmcrypto.HashConstructor(hasher))
	if err != nil {
		return nil, err
	}

	if c.PeerPublicKeys[peerSlot] == nil || signer.Verify(c.PeerPublicKeys[peerSlot], th1, rsp.Signature) != nil {
		c.Transcripts.DropSession(sid)
		return nil, errAuthFailed
	}
	if _, err := c.Transcripts.AppendSession(sid, rsp.Signature); err != nil {
		return nil, err
	}

	secrets, err := DeriveHandshakeSecrets(hk, hashLen, shared, th1)
	if err != nil {
		return nil, err
	}
	if !hmac.Equal(hmacer.Sum(secrets.FinishedKeyResp, th1), rsp.ResponderVerifyData) {
		c.Transcripts.DropSession(sid)
		return nil, errFinishedMismatch
	}
	if _, err := c.Transcripts.AppendSession(sid, rsp.ResponderVerifyData); err != nil {
		return nil, err
	}

	finishReq := wire.FinishRequest{SignatureIncluded: mutualAuth, SlotID: slotID}
	if mutualAuth {
		if c.LocalSigningKey == nil {
			c.Transcripts.DropSession(sid)
			return nil, errNoSigningKey
		}
	}
	if _, err := c.Transcripts.AppendSession(sid, wire.EncodeFinishRequestUpToVerifyData(finishReq)); err != nil {
		return nil, err
	}
	if mutualAuth {
		thPreSig, err := c.Transcripts.FinalizeSession(sid, spdmcrypto.HashConstructor(hasher))
		if err != nil {
			return nil, err
		}
		sig, err := signer.Sign(c.LocalSigningKey, thPreSig)
		if err != nil {
			return nil, err
		}
		finishReq.Signature = sig
		if _, err := c.Transcripts.AppendSession(sid, sig); err != nil {
			return nil, err
		}
	}

	thForVerify, err := c.Transcripts.FinalizeSession(sid, spdmcrypto.HashConstructor(hasher))
	if err != nil {
		return nil, err
	}
	finishReq.RequesterVerifyData = hmacer.Sum(secrets.FinishedKeyReq, thForVerify)
	if _, err := c.Transcripts.AppendSession(sid, finishReq.RequesterVerifyData); err != nil {
		return nil, err
	}

	th2, err := c.Transcripts.FinalizeSession(sid, spdmcrypto.HashConstructor(hasher))
	if err != nil {
		return nil, err
	}
	if err := secrets.DeriveDataSecrets(hk, hashLen, th2); err != nil {
		return nil, err
	}

	if _, err := send(wire.EncodeFinishRequest(finishReq)); err != nil {
		c.Transcripts.DropSession(sid)
		return nil, err
	}
	c.Transcripts.DropSession(sid)

	sess := newSession(rsp.SessionID, connection.RoleRequester, hk, aead, hashLen, m.config)
	if err := sess.activateDataKeys(secrets); err != nil {
		return nil, err
	}
	m.put(sess)

	metrics.SessionsCreated.WithLabelValues("key_exchange", "success").Inc()
	metrics.SessionsActive.Inc()
	metrics.SessionDuration.WithLabelValues("establish").Observe(time.Since(start).Seconds())
	return sess, nil
}

// EstablishPSKSession mirrors EstablishSession for the PSK path: no DHE
// share, no signature, the shared secret is psk itself.
func (m *Manager) EstablishPSKSession(c *connection.Context, send func(req []byte) ([]byte, error), pskHint, psk []byte, summaryType byte) (*Session, error) {
	start := time.Now()

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
	req := wire.PSKExchangeRequest{MeasurementSummaryHashType: summaryType, PSKHint: pskHint}
	copy(req.RandomNonce[:], nonce)
	reqBytes := wire.EncodePSKExchangeRequest(req)

	rspBytes, err := send(reqBytes)
	if err != nil {
		return nil, err
	}
	rsp, err := wire.DecodePSKExchangeRspResponse(rspBytes, hmacer.Size())
	if err != nil {
		return nil, err
	}

	sid := sessionIDString(rsp.SessionID)
	if err := c.Transcripts.ForkForSession(sid); err != nil {
		return nil, err
	}
	if _, err := c.Transcripts.AppendSession(sid, reqBytes); err != nil {
		return nil, err
	}
	if _, err := c.Transcripts.AppendSession(sid, wire.EncodePSKExchangeRspResponse(rsp)); err != nil {
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
	if !hmac.Equal(hmacer.Sum(secrets.FinishedKeyResp, th1), rsp.ResponderVerifyData) {
		c.Transcripts.DropSession(sid)
		return nil, errFinishedMismatch
	}
	if _, err := c.Transcripts.AppendSession(sid, rsp.ResponderVerifyData); err != nil {
		return nil, err
	}

	finishReq := wire.PSKFinishRequest{RequesterVerifyData: hmacer.Sum(secrets.FinishedKeyReq, th1)}
	if _, err := c.Transcripts.AppendSession(sid, finishReq.RequesterVerifyData); err != nil {
		return nil, err
	}
	th2, err := c.Transcripts.FinalizeSession(sid, spdmcrypto.HashConstructor(hasher))
	if err != nil {
		return nil, err
	}
	if err := secrets.DeriveDataSecrets(hk, hashLen, th2); err != nil {
		return nil, err
	}

	if _, err := send(wire.EncodePSKFinishRequest(finishReq)); err != nil {
		c.Transcripts.DropSession(sid)
		return nil, err
	}
	c.Transcripts.DropSession(sid)

	sess := newSession(rsp.SessionID, connection.RoleRequester, hk, aead, hashLen, m.config)
	sess.usePSK = true
	if err := sess.activateDataKeys(secrets); err != nil {
		return nil, err
	}
	m.put(sess)

	metrics.SessionsCreated.WithLabelValues("psk_exchange", "success").Inc()
	metrics.SessionsActive.Inc()
	metrics.SessionDuration.WithLabelValues("establish").Observe(time.Since(start).Seconds())
	return sess, nil
}

// InitiateKeyUpdate drives spec.md §4.5's requester-side rekey: send
// KEY_UPDATE, wait for KEY_UPDATE_ACK with the matching tag, then rotate
// the local Session to match what HandleKeyUpdate just rotated responder
// side. VerifyNewKey performs no local rotation, only the round trip.
func (m *Manager) InitiateKeyUpdate(sess *Session, send func(req []byte) ([]byte, error), op wire.KeyUpdateOperation, tag byte) error {
	reqBytes := wire.EncodeKeyUpdateRequest(wire.KeyUpdateRequest{Operation: op, Tag: tag})
	rspBytes, err := send(reqBytes)
	if err != nil {
		return err
	}
	ack, err := wire.DecodeKeyUpdateAckResponse(rspBytes)
	if err != nil {
		return err
	}
	if ack.Operation != op || ack.Tag != tag {
		return errKeyUpdateTagMismatch
	}

	switch op {
	case wire.KeyUpdateOpUpdateKey:
		if err := sess.rotate(false); err != nil {
			return err
		}
		metrics.KeyUpdates.WithLabelValues("update_key").Inc()
	case wire.KeyUpdateOpUpdateAllKeys:
		if err := sess.rotate(true); err != nil {
			return err
		}
		metrics.KeyUpdates.WithLabelValues("update_all_keys").Inc()
	case wire.KeyUpdateOpVerifyNewKey:
		metrics.KeyUpdates.WithLabelValues("verify_new_key").Inc()
	default:
		return errKeyUpdateNotPending
	}
	return nil
}

// InitiateEndSession drives spec.md §4.5's END_SESSION: on ACK the local
// Session is zeroized and dropped from the manager's table.
func (m *Manager) InitiateEndSession(sess *Session, send func(req []byte) ([]byte, error)) error {
	rspBytes, err := send(wire.EncodeEndSessionRequest(wire.EndSessionRequest{}))
	if err != nil {
		return err
	}
	if _, err := wire.DecodeEndSessionAckResponse(rspBytes); err != nil {
		return err
	}
	m.remove(sess.id)
	metrics.SessionsClosed.Inc()
	metrics.SessionsActive.Dec()
	return nil
}

// SendHeartbeat issues HEARTBEAT and resets the local idle timer on ACK.
func (m *Manager) SendHeartbeat(sess *Session, send func(req []byte) ([]byte, error)) error {
	rspBytes, err := send(wire.EncodeHeartbeatRequest(wire.HeartbeatRequest{}))
	if err != nil {
		return err
	}
	if _, err := wire.DecodeHeartbeatAckResponse(rspBytes); err != nil {
		return err
	}
	sess.mu.Lock()
	sess.lastUsedAt = time.Now()
	sess.mu.Unlock()
	return nil
}
