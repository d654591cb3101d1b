package session

import (
	"encoding/binary"

	"github.com/openspdm/spdm-go/spdmcrypto"
)

// HkdfExpandLabel implements the HKDF-Expand-Label construction from
// spec.md §4.5: an info field of length(2) || "spdm1.1 "+label (length-
// prefixed, not null-padded) || context(length-prefixed), expanded via the
// negotiated hash's HKDF.
func HkdfExpandLabel(hk spdmcrypto.Hkdfer, secret []byte, label string, context []byte, length int) ([]byte, error) {
	full := "spdm1.1 " + label
	info := make([]byte, 0, 2+1+len(full)+1+len(context))
	info = binary.BigEndian.AppendUint16(info, uint16(length))
	info = append(info, byte(len(full)))
	info = append(info, full...)
	info = append(info, byte(len(context)))
	info = append(info, context...)
	return hk.Expand(secret, info, length)
}

// Secrets holds the full handshake/data key-schedule chain from spec.md
// §4.5, derived incrementally as KEY_EXCHANGE/FINISH progress.
type Secrets struct {
	HandshakeSecret         []byte
	RequestHandshakeSecret  []byte
	ResponseHandshakeSecret []byte
	FinishedKeyReq          []byte
	FinishedKeyResp         []byte
	MasterSecret            []byte
	RequestDataSecret       []byte
	ResponseDataSecret      []byte
}

// ZeroHandshakeSecret wipes handshake_secret once FINISH completes and
// master_secret has been derived from it, per spec.md §4.5: "Once a
// session reaches Established, its handshake secret must be zeroized;
// only traffic keys remain."
func (s *Secrets) ZeroHandshakeSecret() {
	for i := range s.HandshakeSecret {
		s.HandshakeSecret[i] = 0
	}
	s.HandshakeSecret = nil
}

// Zero overwrites every secret slice in place so no handshake key material
// outlives the Session that produced it.
func (s *Secrets) Zero() {
	for _, b := range [][]byte{
		s.HandshakeSecret, s.RequestHandshakeSecret, s.ResponseHandshakeSecret,
		s.FinishedKeyReq, s.FinishedKeyResp, s.MasterSecret,
		s.RequestDataSecret, s.ResponseDataSecret,
	} {
		for i := range b {
			b[i] = 0
		}
	}
	*s = Secrets{}
}

// DeriveHandshakeSecrets runs spec.md §4.5's handshake-secret derivation:
// handshake_secret = HKDF-Extract(salt=0, IKM=dheOrPSK), then the
// direction-separated handshake secrets and finished keys keyed off TH1.
func DeriveHandshakeSecrets(hk spdmcrypto.Hkdfer, hashLen int, dheOrPSK, th1Hash []byte) (*Secrets, error) {
	s := &Secrets{}
	s.HandshakeSecret = hk.Extract(make([]byte, hashLen), dheOrPSK)

	var err error
	s.RequestHandshakeSecret, err = HkdfExpandLabel(hk, s.HandshakeSecret, "req hs data", th1Hash, hashLen)
	if err != nil {
		return nil, err
	}
	s.ResponseHandshakeSecret, err = HkdfExpandLabel(hk, s.HandshakeSecret, "rsp hs data", th1Hash, hashLen)
	if err != nil {
		return nil, err
	}
	s.FinishedKeyReq, err = HkdfExpandLabel(hk, s.RequestHandshakeSecret, "finished", nil, hashLen)
	if err != nil {
		return nil, err
	}
	s.FinishedKeyResp, err = HkdfExpandLabel(hk, s.ResponseHandshakeSecret, "finished", nil, hashLen)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// DeriveDataSecrets runs spec.md §4.5's post-FINISH derivation:
// master_secret = HKDF-Extract(salt=handshake_secret, IKM=0), then the
// direction-separated application data secrets keyed off TH2. Called after
// FINISH completes, at which point the handshake secret itself is zeroized
// by the caller (spec.md §4.5: "handshake secrets are zeroized").
func (s *Secrets) DeriveDataSecrets(hk spdmcrypto.Hkdfer, hashLen int, th2Hash []byte) error {
	s.MasterSecret = hk.Extract(s.HandshakeSecret, make([]byte, hashLen))

	var err error
	s.RequestDataSecret, err = HkdfExpandLabel(hk, s.MasterSecret, "req app data", th2Hash, hashLen)
	if err != nil {
		return err
	}
	s.ResponseDataSecret, err = HkdfExpandLabel(hk, s.MasterSecret, "rsp app data", th2Hash, hashLen)
	return err
}

// DeriveRecordKeys expands one directional traffic secret into an AEAD key
// and IV salt, per spec.md §4.5's "AEAD key and IV salt per direction are
// derived from the corresponding traffic secret".
func DeriveRecordKeys(hk spdmcrypto.Hkdfer, secret []byte, keyLen, ivLen int) (key, ivSalt []byte, err error) {
	key, err = HkdfExpandLabel(hk, secret, "key", nil, keyLen)
	if err != nil {
		return nil, nil, err
	}
	ivSalt, err = HkdfExpandLabel(hk, secret, "iv", nil, ivLen)
	if err != nil {
		return nil, nil, err
	}
	return key, ivSalt, nil
}

// UpdateSecret rotates a single traffic secret per spec.md §4.5's
// KEY_UPDATE: new_secret = HKDF-Expand-Label(old_secret, "key update", "").
func UpdateSecret(hk spdmcrypto.Hkdfer, oldSecret []byte, hashLen int) ([]byte, error) {
	return HkdfExpandLabel(hk, oldSecret, "key update", nil, hashLen)
}
