// Package spdmcrypto defines the capability surface the connection and
// session engines need from a cryptographic backend, without binding either
// engine to a concrete implementation. spdmcrypto/software provides the one
// shipped backend.
package spdmcrypto

import "errors"

var (
	ErrUnsupportedAlgorithm = errors.New("spdmcrypto: unsupported algorithm")
	ErrVerifyFailed         = errors.New("spdmcrypto: signature verification failed")
	ErrDecryptFailed        = errors.New("spdmcrypto: AEAD open failed")
	ErrCertChainInvalid     = errors.New("spdmcrypto: certificate chain failed verification")
)

// Hasher computes a single hash-algorithm digest as a one-shot Sum. It has
// no incremental interface; HashConstructor buffers bytes so
// transcript.Manager can drive it as a hash.Hash.
type Hasher interface {
	Sum(data []byte) []byte
	Size() int
}

// Hmacer computes a keyed MAC for the negotiated BaseHashAlgo, used to
// build FinishedKey and the handshake/data secrets' directional Finished
// verify-data.
type Hmacer interface {
	Sum(key, data []byte) []byte
	Size() int
}

// Hkdfer implements RFC 5869 HKDF-Extract/Expand over the negotiated
// BaseHashAlgo, the primitive HkdfExpandLabel is built from.
type Hkdfer interface {
	Extract(salt, ikm []byte) []byte
	Expand(prk, info []byte, length int) ([]byte, error)
}

// AEAD seals/opens records for the negotiated AeadAlgo. NonceSize and
// KeySize tell the session record layer how large to make the derived key
// and the implicit per-record nonce.
type AEAD interface {
	KeySize() int
	NonceSize() int
	Seal(key, nonce, plaintext, aad []byte) ([]byte, error)
	Open(key, nonce, ciphertext, aad []byte) ([]byte, error)
}

// KeyExchanger runs one side of an ephemeral Diffie-Hellman exchange for
// the negotiated DheGroup.
type KeyExchanger interface {
	// GenerateKeyPair returns an ephemeral (private, public) pair; private
	// is an opaque handle passed back into FinishExchange.
	GenerateKeyPair() (private any, public []byte, err error)
	// FinishExchange computes the shared secret from a local private
	// handle and the peer's encoded public key.
	FinishExchange(private any, peerPublic []byte) ([]byte, error)
	PublicKeySize() int
}

// Signer produces and checks signatures for one AsymAlgo/ReqAsymAlgo, over
// a caller-supplied message (already hashed or context-prefixed per
// spec.md §4.2/§4.4's signing conventions).
type Signer interface {
	Sign(privateKey any, message []byte) ([]byte, error)
	Verify(publicKey any, message, signature []byte) error
	SignatureSize() int
}

// CertChainVerifier validates a DER certificate chain against a trust
// anchor, per spec.md's cert_chain_verify capability.
type CertChainVerifier interface {
	VerifyChain(chain [][]byte, trustAnchor []byte) error
}

// Backend is the full crypto capability surface a connection.Context is
// constructed with. Lookups are by negotiated algorithm ID so a Context
// never needs to know which concrete backend it holds.
type Backend interface {
	Hash(algo HashAlgo) (Hasher, error)
	Hmac(algo HashAlgo) (Hmacer, error)
	Hkdf(algo HashAlgo) (Hkdfer, error)
	Aead(algo AeadAlgo) (AEAD, error)
	KeyExchange(group DheGroup) (KeyExchanger, error)
	Signature(algo AsymAlgo) (Signer, error)
	CertChain() CertChainVerifier
	Random(n int) ([]byte, error)
}
