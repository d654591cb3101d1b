package software

import (
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openspdm/spdm-go/spdmcrypto"
)

func TestHashSum(t *testing.T) {
	b := New()
	h, err := b.Hash(spdmcrypto.HashSHA256)
	require.NoError(t, err)
	assert.Equal(t, 32, h.Size())
	assert.Len(t, h.Sum([]byte("hello")), 32)
}

func TestHmacDeterministic(t *testing.T) {
	b := New()
	m, err := b.Hmac(spdmcrypto.HashSHA256)
	require.NoError(t, err)
	key := []byte("key")
	assert.Equal(t, m.Sum(key, []byte("a")), m.Sum(key, []byte("a")))
	assert.NotEqual(t, m.Sum(key, []byte("a")), m.Sum(key, []byte("b")))
}

func TestHkdfExpandLength(t *testing.T) {
	b := New()
	h, err := b.Hkdf(spdmcrypto.HashSHA256)
	require.NoError(t, err)
	prk := h.Extract([]byte("salt"), []byte("ikm"))
	out, err := h.Expand(prk, []byte("info"), 48)
	require.NoError(t, err)
	assert.Len(t, out, 48)
}

func TestAeadAES256GCMRoundTrip(t *testing.T) {
	b := New()
	a, err := b.Aead(spdmcrypto.AeadAES256GCM)
	require.NoError(t, err)
	key := make([]byte, a.KeySize())
	nonce := make([]byte, a.NonceSize())
	ct, err := a.Seal(key, nonce, []byte("plaintext"), []byte("aad"))
	require.NoError(t, err)
	pt, err := a.Open(key, nonce, ct, []byte("aad"))
	require.NoError(t, err)
	assert.Equal(t, []byte("plaintext"), pt)
}

func TestAeadChaChaRoundTrip(t *testing.T) {
	b := New()
	a, err := b.Aead(spdmcrypto.AeadChaCha20Poly1305)
	require.NoError(t, err)
	key := make([]byte, a.KeySize())
	nonce := make([]byte, a.NonceSize())
	ct, err := a.Seal(key, nonce, []byte("plaintext"), nil)
	require.NoError(t, err)
	pt, err := a.Open(key, nonce, ct, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte("plaintext"), pt)
}

func TestAeadOpenWrongKeyFails(t *testing.T) {
	b := New()
	a, err := b.Aead(spdmcrypto.AeadAES128GCM)
	require.NoError(t, err)
	key := make([]byte, a.KeySize())
	nonce := make([]byte, a.NonceSize())
	ct, err := a.Seal(key, nonce, []byte("plaintext"), nil)
	require.NoError(t, err)
	wrongKey := make([]byte, a.KeySize())
	wrongKey[0] = 1
	_, err = a.Open(wrongKey, nonce, ct, nil)
	assert.ErrorIs(t, err, spdmcrypto.ErrDecryptFailed)
}

func TestKeyExchangeX25519(t *testing.T) {
	b := New()
	kx, err := b.KeyExchange(spdmcrypto.DheX25519)
	require.NoError(t, err)

	aPriv, aPub, err := kx.GenerateKeyPair()
	require.NoError(t, err)
	bPriv, bPub, err := kx.GenerateKeyPair()
	require.NoError(t, err)

	sharedA, err := kx.FinishExchange(aPriv, bPub)
	require.NoError(t, err)
	sharedB, err := kx.FinishExchange(bPriv, aPub)
	require.NoError(t, err)
	assert.Equal(t, sharedA, sharedB)
}

func TestSignatureEd25519RoundTrip(t *testing.T) {
	b := New()
	signer, err := b.Signature(spdmcrypto.AsymEdDSA25519)
	require.NoError(t, err)
	pub, priv, err := newEd25519(t)
	require.NoError(t, err)

	sig, err := signer.Sign(priv, []byte("message"))
	require.NoError(t, err)
	assert.NoError(t, signer.Verify(pub, []byte("message"), sig))
	assert.Error(t, signer.Verify(pub, []byte("tampered"), sig))
}

func TestSignatureECDSAP256RoundTrip(t *testing.T) {
	b := New()
	signer, err := b.Signature(spdmcrypto.AsymECDSAP256)
	require.NoError(t, err)
	priv := newECDSA(t)

	sig, err := signer.Sign(priv, []byte("message-digest-32-bytes-long!!!"))
	require.NoError(t, err)
	assert.Len(t, sig, signer.SignatureSize())
	assert.NoError(t, signer.Verify(&priv.PublicKey, []byte("message-digest-32-bytes-long!!!"), sig))
}

func TestSignatureSecp256k1RoundTrip(t *testing.T) {
	b := New()
	signer, err := b.Signature(spdmcrypto.AsymECDSASecp256k1)
	require.NoError(t, err)

	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)

	digest := make([]byte, 32)
	copy(digest, []byte("thirtytwobytehashplaceholder!!!"))

	sig, err := signer.Sign(priv, digest)
	require.NoError(t, err)
	assert.NoError(t, signer.Verify(priv.PubKey(), digest, sig))
}

func TestRandomLength(t *testing.T) {
	b := New()
	out, err := b.Random(32)
	require.NoError(t, err)
	assert.Len(t, out, 32)
}

func TestUnsupportedHashAlgo(t *testing.T) {
	b := New()
	_, err := b.Hash(spdmcrypto.HashAlgo(0x4000))
	assert.ErrorIs(t, err, spdmcrypto.ErrUnsupportedAlgorithm)
}
