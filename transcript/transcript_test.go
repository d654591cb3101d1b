package transcript

import (
	"crypto/sha256"
	"hash"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sha256New() hash.Hash { return sha256.New() }

func TestAppendAndFinalize(t *testing.T) {
	m := NewManager()
	_, err := m.Append(VCA, []byte("GET_VERSION"))
	require.NoError(t, err)
	_, err = m.Append(VCA, []byte("VERSION"))
	require.NoError(t, err)

	digest, err := m.Finalize(VCA, sha256New)
	require.NoError(t, err)
	assert.Len(t, digest, sha256.Size)

	expected := sha256.Sum256([]byte("GET_VERSIONVERSION"))
	assert.Equal(t, expected[:], digest)
}

func TestAppendAfterFinalizeExtendsHash(t *testing.T) {
	m := NewManager()
	m.Append(VCA, []byte("a"))
	m.Finalize(VCA, sha256New)
	m.Append(VCA, []byte("b"))

	digest, err := m.Digest(VCA)
	require.NoError(t, err)
	expected := sha256.Sum256([]byte("ab"))
	assert.Equal(t, expected[:], digest)
}

func TestRollbackBeforeFinalize(t *testing.T) {
	m := NewManager()
	m.Append(M1M2, []byte("CHALLENGE_AUTH-prefix"))
	marker, _ := m.Append(M1M2, []byte("signature-candidate"))
	require.NoError(t, m.Rollback(marker))

	digest, err := m.Finalize(M1M2, sha256New)
	require.NoError(t, err)
	expected := sha256.Sum256([]byte("CHALLENGE_AUTH-prefix"))
	assert.Equal(t, expected[:], digest)
}

func TestRollbackAfterFinalizeRecomputesHash(t *testing.T) {
	m := NewManager()
	m.Append(M1M2, []byte("fixed"))
	m.Finalize(M1M2, sha256New)
	marker, _ := m.Append(M1M2, []byte("bad-signature"))
	require.NoError(t, m.Rollback(marker))

	digest, err := m.Digest(M1M2)
	require.NoError(t, err)
	expected := sha256.Sum256([]byte("fixed"))
	assert.Equal(t, expected[:], digest)

	m.Append(M1M2, []byte("good-signature"))
	digest2, err := m.Digest(M1M2)
	require.NoError(t, err)
	expected2 := sha256.Sum256([]byte("fixedgood-signature"))
	assert.Equal(t, expected2[:], digest2)
}

func TestForkForSessionSnapshotsVCA(t *testing.T) {
	m := NewManager()
	m.Append(VCA, []byte("negotiation-bytes"))

	require.NoError(t, m.ForkForSession("sess-1"))
	m.AppendSession("sess-1", []byte("|KEY_EXCHANGE"))

	digest, err := m.FinalizeSession("sess-1", sha256New)
	require.NoError(t, err)
	expected := sha256.Sum256([]byte("negotiation-bytes|KEY_EXCHANGE"))
	assert.Equal(t, expected[:], digest)

	// Later VCA appends must not leak into the already-forked session.
	m.Append(VCA, []byte("more-negotiation"))
	digest2, err := m.DigestSession("sess-1")
	require.NoError(t, err)
	assert.Equal(t, digest, digest2)
}

func TestForkTwiceFails(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.ForkForSession("sess-1"))
	assert.Error(t, m.ForkForSession("sess-1"))
}

func TestDropSession(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.ForkForSession("sess-1"))
	m.DropSession("sess-1")
	_, err := m.AppendSession("sess-1", []byte("x"))
	assert.Error(t, err)
}

func TestDigestBeforeFinalizeFails(t *testing.T) {
	m := NewManager()
	m.Append(L, []byte("measurement"))
	_, err := m.Digest(L)
	assert.Error(t, err)
}

func TestResetClearsEverything(t *testing.T) {
	m := NewManager()
	m.Append(VCA, []byte("x"))
	require.NoError(t, m.ForkForSession("sess-1"))

	m.Reset()

	digest, err := m.Finalize(VCA, sha256New)
	require.NoError(t, err)
	expected := sha256.Sum256(nil)
	assert.Equal(t, expected[:], digest)

	_, err = m.AppendSession("sess-1", []byte("x"))
	assert.Error(t, err)
}

func TestRollbackUnknownMarkerFails(t *testing.T) {
	m := NewManager()
	err := m.Rollback(Marker{bufferKind: "TH:nonexistent", offset: 0})
	assert.Error(t, err)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "VCA", VCA.String())
	assert.Equal(t, "M1M2", M1M2.String())
	assert.Equal(t, "L", L.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
