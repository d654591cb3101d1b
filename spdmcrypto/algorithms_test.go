package spdmcrypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHashInfoKnown(t *testing.T) {
	info, err := GetHashInfo(HashSHA256)
	require.NoError(t, err)
	assert.Equal(t, 32, info.DigestLen)
}

func TestGetHashInfoUnknown(t *testing.T) {
	_, err := GetHashInfo(HashAlgo(0x8000))
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestPreferredHashPicksStrongest(t *testing.T) {
	got, err := PreferredHash(HashSHA256|HashSHA384, HashSHA256|HashSHA384|HashSHA512)
	require.NoError(t, err)
	assert.Equal(t, HashSHA384, got)
}

func TestPreferredHashNoOverlap(t *testing.T) {
	_, err := PreferredHash(HashSHA256, HashSHA512)
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestPreferredAeadPrefersAES256(t *testing.T) {
	got, err := PreferredAead(AeadAES128GCM|AeadAES256GCM, AeadAES128GCM|AeadAES256GCM|AeadChaCha20Poly1305)
	require.NoError(t, err)
	assert.Equal(t, AeadAES256GCM, got)
}

func TestPreferredDhePrefersX25519(t *testing.T) {
	got, err := PreferredDhe(DheSECP256R1|DheX25519, DheSECP256R1|DheX25519|DheSECP384R1)
	require.NoError(t, err)
	assert.Equal(t, DheX25519, got)
}

func TestPreferredAsymAllowsSecp256k1(t *testing.T) {
	got, err := PreferredAsym(AsymECDSASecp256k1, AsymECDSASecp256k1)
	require.NoError(t, err)
	assert.Equal(t, AsymECDSASecp256k1, got)
}
