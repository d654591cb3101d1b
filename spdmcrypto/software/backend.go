// Package software implements spdmcrypto.Backend entirely with Go's
// standard library plus golang.org/x/crypto and the secp256k1 library the
// teacher already depends on, matching the stdlib-first primitive choices
// of the teacher's session.SecureSession and crypto/keys package.
package software

import (
	"crypto"
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"fmt"
	"hash"
	"io"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secp256k1ecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/openspdm/spdm-go/spdmcrypto"
)

// Backend is the shipped "software" spdmcrypto.Backend: every primitive
// runs in-process, no HSM or TPM offload.
type Backend struct{}

// New returns a ready-to-use software Backend.
func New() *Backend { return &Backend{} }

var _ spdmcrypto.Backend = (*Backend)(nil)

func newHashFunc(algo spdmcrypto.HashAlgo) (func() hash.Hash, error) {
	switch algo {
	case spdmcrypto.HashSHA256:
		return sha256.New, nil
	case spdmcrypto.HashSHA384:
		return sha512.New384, nil
	case spdmcrypto.HashSHA512:
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("%w: hash algo 0x%x", spdmcrypto.ErrUnsupportedAlgorithm, uint32(algo))
	}
}

type hasher struct{ newHash func() hash.Hash }

func (h hasher) Sum(data []byte) []byte {
	hh := h.newHash()
	hh.Write(data)
	return hh.Sum(nil)
}

func (h hasher) Size() int { return h.newHash().Size() }

func (b *Backend) Hash(algo spdmcrypto.HashAlgo) (spdmcrypto.Hasher, error) {
	nh, err := newHashFunc(algo)
	if err != nil {
		return nil, err
	}
	return hasher{newHash: nh}, nil
}

type hmacer struct{ newHash func() hash.Hash }

func (m hmacer) Sum(key, data []byte) []byte {
	mac := hmac.New(m.newHash, key)
	mac.Write(data)
	return mac.Sum(nil)
}

func (m hmacer) Size() int { return m.newHash().Size() }

func (b *Backend) Hmac(algo spdmcrypto.HashAlgo) (spdmcrypto.Hmacer, error) {
	nh, err := newHashFunc(algo)
	if err != nil {
		return nil, err
	}
	return hmacer{newHash: nh}, nil
}

type hkdfer struct{ newHash func() hash.Hash }

func (h hkdfer) Extract(salt, ikm []byte) []byte {
	return hkdf.Extract(h.newHash, ikm, salt)
}

func (h hkdfer) Expand(prk, info []byte, length int) ([]byte, error) {
	r := hkdf.Expand(h.newHash, prk, info)
	out := make([]byte, length)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, fmt.Errorf("spdmcrypto/software: hkdf expand: %w", err)
	}
	return out, nil
}

func (b *Backend) Hkdf(algo spdmcrypto.HashAlgo) (spdmcrypto.Hkdfer, error) {
	nh, err := newHashFunc(algo)
	if err != nil {
		return nil, err
	}
	return hkdfer{newHash: nh}, nil
}

type aesGCMAead struct{ keySize int }

func (a aesGCMAead) KeySize() int   { return a.keySize }
func (a aesGCMAead) NonceSize() int { return 12 }

func (a aesGCMAead) newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (a aesGCMAead) Seal(key, nonce, plaintext, aad []byte) ([]byte, error) {
	aead, err := a.newAEAD(key)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, plaintext, aad), nil
}

func (a aesGCMAead) Open(key, nonce, ciphertext, aad []byte) ([]byte, error) {
	aead, err := a.newAEAD(key)
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", spdmcrypto.ErrDecryptFailed, err)
	}
	return pt, nil
}

type chachaAead struct{}

func (chachaAead) KeySize() int   { return chacha20poly1305.KeySize }
func (chachaAead) NonceSize() int { return chacha20poly1305.NonceSize }

func (chachaAead) Seal(key, nonce, plaintext, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, plaintext, aad), nil
}

func (chachaAead) Open(key, nonce, ciphertext, aad []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	pt, err := aead.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", spdmcrypto.ErrDecryptFailed, err)
	}
	return pt, nil
}

func (b *Backend) Aead(algo spdmcrypto.AeadAlgo) (spdmcrypto.AEAD, error) {
	switch algo {
	case spdmcrypto.AeadAES128GCM:
		return aesGCMAead{keySize: 16}, nil
	case spdmcrypto.AeadAES256GCM:
		return aesGCMAead{keySize: 32}, nil
	case spdmcrypto.AeadChaCha20Poly1305:
		return chachaAead{}, nil
	default:
		return nil, fmt.Errorf("%w: aead algo 0x%x", spdmcrypto.ErrUnsupportedAlgorithm, uint32(algo))
	}
}

type ecdhExchanger struct{ curve ecdh.Curve }

func (e ecdhExchanger) GenerateKeyPair() (any, []byte, error) {
	priv, err := e.curve.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, err
	}
	return priv, priv.PublicKey().Bytes(), nil
}

func (e ecdhExchanger) FinishExchange(private any, peerPublic []byte) ([]byte, error) {
	priv, ok := private.(*ecdh.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("spdmcrypto/software: expected *ecdh.PrivateKey, got %T", private)
	}
	peer, err := e.curve.NewPublicKey(peerPublic)
	if err != nil {
		return nil, fmt.Errorf("spdmcrypto/software: invalid peer public key: %w", err)
	}
	return priv.ECDH(peer)
}

func (e ecdhExchanger) PublicKeySize() int {
	switch e.curve {
	case ecdh.X25519():
		return 32
	case ecdh.P256():
		return 65
	case ecdh.P384():
		return 97
	default:
		return 0
	}
}

func (b *Backend) KeyExchange(group spdmcrypto.DheGroup) (spdmcrypto.KeyExchanger, error) {
	switch group {
	case spdmcrypto.DheX25519:
		return ecdhExchanger{curve: ecdh.X25519()}, nil
	case spdmcrypto.DheSECP256R1:
		return ecdhExchanger{curve: ecdh.P256()}, nil
	case spdmcrypto.DheSECP384R1:
		return ecdhExchanger{curve: ecdh.P384()}, nil
	default:
		return nil, fmt.Errorf("%w: dhe group 0x%x", spdmcrypto.ErrUnsupportedAlgorithm, uint32(group))
	}
}

type ecdsaSigner struct{ curve elliptic.Curve }

func (s ecdsaSigner) Sign(privateKey any, message []byte) ([]byte, error) {
	priv, ok := privateKey.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("spdmcrypto/software: expected *ecdsa.PrivateKey, got %T", privateKey)
	}
	r, s2, err := ecdsa.Sign(rand.Reader, priv, message)
	if err != nil {
		return nil, err
	}
	size := (priv.Curve.Params().BitSize + 7) / 8
	out := make([]byte, 2*size)
	r.FillBytes(out[:size])
	s2.FillBytes(out[size:])
	return out, nil
}

func (s ecdsaSigner) Verify(publicKey any, message, signature []byte) error {
	pub, ok := publicKey.(*ecdsa.PublicKey)
	if !ok {
		return fmt.Errorf("spdmcrypto/software: expected *ecdsa.PublicKey, got %T", publicKey)
	}
	size := (pub.Curve.Params().BitSize + 7) / 8
	if len(signature) != 2*size {
		return spdmcrypto.ErrVerifyFailed
	}
	r := new(big.Int).SetBytes(signature[:size])
	s2 := new(big.Int).SetBytes(signature[size:])
	if !ecdsa.Verify(pub, message, r, s2) {
		return spdmcrypto.ErrVerifyFailed
	}
	return nil
}

func (s ecdsaSigner) SignatureSize() int {
	size := (s.curve.Params().BitSize + 7) / 8
	return 2 * size
}

type secp256k1Signer struct{}

func (secp256k1Signer) Sign(privateKey any, message []byte) ([]byte, error) {
	priv, ok := privateKey.(*secp256k1.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("spdmcrypto/software: expected *secp256k1.PrivateKey, got %T", privateKey)
	}
	var digest [32]byte
	copy(digest[:], message)
	sig := secp256k1ecdsa.SignCompact(priv, digest[:], false)
	// SignCompact prepends a recovery byte; drop it to get a plain r||s.
	return sig[1:], nil
}

func (secp256k1Signer) Verify(publicKey any, message, signature []byte) error {
	pub, ok := publicKey.(*secp256k1.PublicKey)
	if !ok {
		return fmt.Errorf("spdmcrypto/software: expected *secp256k1.PublicKey, got %T", publicKey)
	}
	if len(signature) != 64 {
		return spdmcrypto.ErrVerifyFailed
	}
	r := new(secp256k1.ModNScalar)
	s := new(secp256k1.ModNScalar)
	r.SetByteSlice(signature[:32])
	s.SetByteSlice(signature[32:])
	sig := secp256k1ecdsa.NewSignature(r, s)
	if !sig.Verify(message, pub) {
		return spdmcrypto.ErrVerifyFailed
	}
	return nil
}

func (secp256k1Signer) SignatureSize() int { return 64 }

type ed25519Signer struct{}

func (ed25519Signer) Sign(privateKey any, message []byte) ([]byte, error) {
	priv, ok := privateKey.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("spdmcrypto/software: expected ed25519.PrivateKey, got %T", privateKey)
	}
	return ed25519.Sign(priv, message), nil
}

func (ed25519Signer) Verify(publicKey any, message, signature []byte) error {
	pub, ok := publicKey.(ed25519.PublicKey)
	if !ok {
		return fmt.Errorf("spdmcrypto/software: expected ed25519.PublicKey, got %T", publicKey)
	}
	if !ed25519.Verify(pub, message, signature) {
		return spdmcrypto.ErrVerifyFailed
	}
	return nil
}

func (ed25519Signer) SignatureSize() int { return ed25519.SignatureSize }

type rsaSigner struct {
	bits int
	pss  bool
}

func (s rsaSigner) Sign(privateKey any, message []byte) ([]byte, error) {
	priv, ok := privateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("spdmcrypto/software: expected *rsa.PrivateKey, got %T", privateKey)
	}
	digest := sha256.Sum256(message)
	if s.pss {
		return rsa.SignPSS(rand.Reader, priv, crypto.SHA256, digest[:], nil)
	}
	return rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA256, digest[:])
}

func (s rsaSigner) Verify(publicKey any, message, signature []byte) error {
	pub, ok := publicKey.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("spdmcrypto/software: expected *rsa.PublicKey, got %T", publicKey)
	}
	digest := sha256.Sum256(message)
	var err error
	if s.pss {
		err = rsa.VerifyPSS(pub, crypto.SHA256, digest[:], signature, nil)
	} else {
		err = rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], signature)
	}
	if err != nil {
		return spdmcrypto.ErrVerifyFailed
	}
	return nil
}

func (s rsaSigner) SignatureSize() int { return s.bits / 8 }

func (b *Backend) Signature(algo spdmcrypto.AsymAlgo) (spdmcrypto.Signer, error) {
	switch algo {
	case spdmcrypto.AsymECDSAP256:
		return ecdsaSigner{curve: elliptic.P256()}, nil
	case spdmcrypto.AsymECDSAP384:
		return ecdsaSigner{curve: elliptic.P384()}, nil
	case spdmcrypto.AsymECDSASecp256k1:
		return secp256k1Signer{}, nil
	case spdmcrypto.AsymEdDSA25519:
		return ed25519Signer{}, nil
	case spdmcrypto.AsymRSASSA2048:
		return rsaSigner{bits: 2048}, nil
	case spdmcrypto.AsymRSASSA3072:
		return rsaSigner{bits: 3072}, nil
	case spdmcrypto.AsymRSASSA4096:
		return rsaSigner{bits: 4096}, nil
	default:
		return nil, fmt.Errorf("%w: asym algo 0x%x", spdmcrypto.ErrUnsupportedAlgorithm, uint32(algo))
	}
}

type certChainVerifier struct{}

func (certChainVerifier) VerifyChain(chain [][]byte, trustAnchor []byte) error {
	if len(chain) == 0 {
		return fmt.Errorf("%w: empty certificate chain", spdmcrypto.ErrCertChainInvalid)
	}
	root, err := x509.ParseCertificate(trustAnchor)
	if err != nil {
		return fmt.Errorf("%w: invalid trust anchor: %v", spdmcrypto.ErrCertChainInvalid, err)
	}
	roots := x509.NewCertPool()
	roots.AddCert(root)

	leaf, err := x509.ParseCertificate(chain[len(chain)-1])
	if err != nil {
		return fmt.Errorf("%w: invalid leaf certificate: %v", spdmcrypto.ErrCertChainInvalid, err)
	}

	intermediates := x509.NewCertPool()
	for _, der := range chain[:len(chain)-1] {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return fmt.Errorf("%w: invalid intermediate certificate: %v", spdmcrypto.ErrCertChainInvalid, err)
		}
		intermediates.AddCert(cert)
	}

	_, err = leaf.Verify(x509.VerifyOptions{
		Roots:         roots,
		Intermediates: intermediates,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", spdmcrypto.ErrCertChainInvalid, err)
	}
	return nil
}

func (b *Backend) CertChain() spdmcrypto.CertChainVerifier { return certChainVerifier{} }

func (b *Backend) Random(n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return nil, fmt.Errorf("spdmcrypto/software: random: %w", err)
	}
	return buf, nil
}
