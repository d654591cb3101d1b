package formats

import (
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportImportX25519PrivateRoundTrip(t *testing.T) {
	priv, err := ecdh.X25519().GenerateKey(rand.Reader)
	require.NoError(t, err)

	data, err := ExportPrivate(priv)
	require.NoError(t, err)

	got, err := ImportPrivate(data)
	require.NoError(t, err)
	gotPriv, ok := got.(*ecdh.PrivateKey)
	require.True(t, ok)
	assert.Equal(t, priv.Bytes(), gotPriv.Bytes())
}

func TestExportImportEd25519RoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	data, err := ExportPrivate(priv)
	require.NoError(t, err)

	got, err := ImportPrivate(data)
	require.NoError(t, err)
	gotPriv, ok := got.(ed25519.PrivateKey)
	require.True(t, ok)
	assert.Equal(t, priv, gotPriv)

	pubData, err := ExportPublic(pub)
	require.NoError(t, err)
	gotPub, err := ImportPublic(pubData)
	require.NoError(t, err)
	assert.Equal(t, pub, gotPub.(ed25519.PublicKey))
}

func TestImportPrivateMissingDField(t *testing.T) {
	_, err := ImportPrivate([]byte(`{"kty":"OKP","crv":"Ed25519","x":"abc"}`))
	assert.ErrorIs(t, err, ErrMissingPrivateField)
}

func TestImportUnsupportedKty(t *testing.T) {
	_, err := ImportPublic([]byte(`{"kty":"bogus"}`))
	assert.ErrorIs(t, err, ErrUnsupportedKeyType)
}
