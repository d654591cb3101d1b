package connection

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openspdm/spdm-go/wire"
)

func TestBestVersionPicksHighestWithinMax(t *testing.T) {
	entries := []wire.VersionEntry{
		{Major: 1, Minor: 0},
		{Major: 1, Minor: 1},
		{Major: 1, Minor: 3},
	}
	best, ok := bestVersion(entries, wire.Version{Major: 1, Minor: 2})
	require.True(t, ok)
	require.Equal(t, wire.Version{Major: 1, Minor: 1}, best)
}

func TestBestVersionNoCommonVersion(t *testing.T) {
	entries := []wire.VersionEntry{{Major: 2, Minor: 0}}
	_, ok := bestVersion(entries, wire.Version{Major: 1, Minor: 2})
	require.False(t, ok)
}

func TestNegotiateVersionAndCapabilitiesRoundTrip(t *testing.T) {
	responder := newTestHandshakeContext(t, RoleResponder)
	requester := newTestHandshakeContext(t, RoleRequester)

	send := directSendTo(responder)

	err := requester.NegotiateVersion(send, requester.LocalVersion)
	require.NoError(t, err)
	require.Equal(t, StateAfterVersion, requester.getState())
	require.Equal(t, StateAfterVersion, responder.getState())
	require.Equal(t, requester.LocalVersion, requester.Version)

	err = requester.NegotiateCapabilities(send)
	require.NoError(t, err)
	require.Equal(t, StateAfterCapabilities, requester.getState())
	require.Equal(t, requester.LocalCapabilities, responder.PeerCapabilities)
	require.Equal(t, responder.LocalCapabilities, requester.PeerCapabilities)
}
