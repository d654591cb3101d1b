// Package keymaterial loads the on-disk certificate chains and signing
// keys cmd/spdm-responder and cmd/spdm-requester provision a
// connection.Context with. Certificates are PEM or raw DER on disk;
// Context.LocalCertChains/PeerPublicKeys want DER-encoded cert_chain bytes
// and parsed key handles respectively, so this package only concatenates
// and parses — it does not touch spdmcrypto, which stays DER-in/DER-out.
package keymaterial

import (
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// LoadCertChain reads path and returns the concatenated DER bytes of every
// certificate found, in file order, matching the cert_chain format
// GET_CERTIFICATE serves (spec.md's chain is itself just concatenated DER
// certs plus a header the wire package adds separately). A file containing
// a single DER certificate (no PEM armor) is passed through unmodified.
func LoadCertChain(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keymaterial: reading %s: %w", path, err)
	}

	var der []byte
	rest := raw
	found := false
	for {
		var block *pem.Block
		block, rest = pem.Decode(rest)
		if block == nil {
			break
		}
		if block.Type != "CERTIFICATE" {
			continue
		}
		der = append(der, block.Bytes...)
		found = true
	}
	if found {
		return der, nil
	}
	return raw, nil
}

// LoadLeafPublicKey parses the first certificate out of a chain produced
// by LoadCertChain and returns its public key, for populating
// Context.PeerPublicKeys from a locally-trusted copy of the peer's chain
// (e.g. in a test harness or a pinned-cert deployment that skips
// VerifyPeerCertChain).
func LoadLeafPublicKey(chainDER []byte) (any, error) {
	certs, err := x509.ParseCertificates(chainDER)
	if err != nil {
		return nil, fmt.Errorf("keymaterial: parsing leaf certificate: %w", err)
	}
	if len(certs) == 0 {
		return nil, fmt.Errorf("keymaterial: chain holds no certificate")
	}
	return certs[0].PublicKey, nil
}

// LoadECDSAPrivateKey reads a PEM-encoded EC private key (PKCS#8 or
// SEC1) and returns it as the *ecdsa.PrivateKey handle
// spdmcrypto/software's Signer expects.
func LoadECDSAPrivateKey(path string) (*ecdsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keymaterial: reading %s: %w", path, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("keymaterial: %s contains no PEM block", path)
	}

	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("keymaterial: parsing EC private key in %s: %w", path, err)
	}
	ecKey, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("keymaterial: %s does not hold an ECDSA private key", path)
	}
	return ecKey, nil
}

// LoadTrustAnchor reads a single trust-root certificate's DER bytes, PEM
// or raw, for Context.Connect's trustAnchors argument.
func LoadTrustAnchor(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keymaterial: reading %s: %w", path, err)
	}
	if block, _ := pem.Decode(raw); block != nil {
		return block.Bytes, nil
	}
	return raw, nil
}
