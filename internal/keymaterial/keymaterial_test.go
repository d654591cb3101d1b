package keymaterial

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func selfSignedCert(t *testing.T, key *ecdsa.PrivateKey) []byte {
	t.Helper()
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "responder.test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return der
}

func TestLoadCertChainConcatenatesPEMCerts(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der1 := selfSignedCert(t, key)
	der2 := selfSignedCert(t, key)

	path := filepath.Join(t.TempDir(), "chain.pem")
	var pemBytes []byte
	pemBytes = append(pemBytes, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der1})...)
	pemBytes = append(pemBytes, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der2})...)
	require.NoError(t, os.WriteFile(path, pemBytes, 0o644))

	chain, err := LoadCertChain(path)
	require.NoError(t, err)
	require.Equal(t, append(append([]byte{}, der1...), der2...), chain)
}

func TestLoadCertChainPassesThroughRawDER(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der := selfSignedCert(t, key)

	path := filepath.Join(t.TempDir(), "leaf.der")
	require.NoError(t, os.WriteFile(path, der, 0o644))

	chain, err := LoadCertChain(path)
	require.NoError(t, err)
	require.Equal(t, der, chain)
}

func TestLoadLeafPublicKeyReturnsCertPublicKey(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der := selfSignedCert(t, key)

	pub, err := LoadLeafPublicKey(der)
	require.NoError(t, err)
	ecPub, ok := pub.(*ecdsa.PublicKey)
	require.True(t, ok)
	require.Zero(t, key.PublicKey.X.Cmp(ecPub.X))
}

func TestLoadECDSAPrivateKeyParsesSEC1PEM(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.pem")
	block := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})
	require.NoError(t, os.WriteFile(path, block, 0o644))

	loaded, err := LoadECDSAPrivateKey(path)
	require.NoError(t, err)
	require.Zero(t, key.D.Cmp(loaded.D))
}

func TestLoadTrustAnchorAcceptsPEMOrDER(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der := selfSignedCert(t, key)

	pemPath := filepath.Join(t.TempDir(), "root.pem")
	require.NoError(t, os.WriteFile(pemPath, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o644))
	got, err := LoadTrustAnchor(pemPath)
	require.NoError(t, err)
	require.Equal(t, der, got)

	derPath := filepath.Join(t.TempDir(), "root.der")
	require.NoError(t, os.WriteFile(derPath, der, 0o644))
	got, err = LoadTrustAnchor(derPath)
	require.NoError(t, err)
	require.Equal(t, der, got)
}
