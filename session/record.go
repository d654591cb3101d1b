package session

import (
	"encoding/binary"
	"fmt"

	"github.com/openspdm/spdm-go/spdmcrypto"
)

// directionalKeys holds one direction's derived AEAD key, IV salt, and
// sequence counter, generalizing the teacher's single random-nonce-per-
// message AEAD (session.SecureSession.EncryptOutbound/DecryptInbound) to
// SPDM's implicit, monotonically-tracked sequence number per spec.md §4.5:
// "The per-message nonce is iv_salt XOR encode(seq_num, iv_len) with
// big-endian right-aligned sequence."
type directionalKeys struct {
	key    []byte
	ivSalt []byte
	seq    uint64
}

func (d *directionalKeys) nonce() []byte {
	nonce := append([]byte(nil), d.ivSalt...)
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], d.seq)
	off := len(nonce) - 8
	for i := 0; i < 8 && off+i >= 0; i++ {
		nonce[off+i] ^= seqBytes[i]
	}
	return nonce
}

func (d *directionalKeys) zero() {
	for i := range d.key {
		d.key[i] = 0
	}
	for i := range d.ivSalt {
		d.ivSalt[i] = 0
	}
	d.key, d.ivSalt, d.seq = nil, nil, 0
}

// sealRecord encrypts payload under dir's current key/nonce with no
// associated data (the whole record is authenticated through the AEAD tag
// alone) and advances the sequence counter.
func sealRecord(aead spdmcrypto.AEAD, dir *directionalKeys, payload []byte) ([]byte, error) {
	if dir.key == nil {
		return nil, fmt.Errorf("session: record key not established")
	}
	ct, err := aead.Seal(dir.key, dir.nonce(), payload, nil)
	if err != nil {
		return nil, err
	}
	dir.seq++
	return ct, nil
}

// openRecord decrypts record under dir's current key/nonce and advances
// the sequence counter only on success, so a forged record never
// desynchronizes the legitimate stream.
func openRecord(aead spdmcrypto.AEAD, dir *directionalKeys, record []byte) ([]byte, error) {
	if dir.key == nil {
		return nil, fmt.Errorf("session: record key not established")
	}
	pt, err := aead.Open(dir.key, dir.nonce(), record, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", spdmcrypto.ErrDecryptFailed, err)
	}
	dir.seq++
	return pt, nil
}
