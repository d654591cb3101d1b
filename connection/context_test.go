package connection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openspdm/spdm-go/internal/logger"
	"github.com/openspdm/spdm-go/spdmcrypto/software"
	"github.com/openspdm/spdm-go/wire"
)

// newTestHandshakeContext builds a bare Context suitable for exercising
// the version/capability drivers without a real transport, the way
// session's own tests stand up a connection.Context by hand.
func newTestHandshakeContext(t *testing.T, role Role) *Context {
	t.Helper()
	caps := wire.CapCertCap | wire.CapChalCap | wire.CapMeasCapBit0
	return NewContext(role, nil, software.New(), logger.NewDefaultLogger(), wire.Version{Major: 1, Minor: 2}, caps)
}

// directSendTo wires a requestSender straight into responder's own
// dispatch table, standing in for a transport round trip.
func directSendTo(responder *Context) requestSender {
	return func(req []byte) ([]byte, error) {
		return responder.HandleRequest(context.Background(), req), nil
	}
}

func TestNewContextAssignsUniqueConnectionID(t *testing.T) {
	a := newTestHandshakeContext(t, RoleResponder)
	b := newTestHandshakeContext(t, RoleResponder)
	require.NotEmpty(t, a.ConnectionID)
	require.NotEqual(t, a.ConnectionID, b.ConnectionID)
}

func TestHandleRequestMalformedHeaderReturnsInvalidRequest(t *testing.T) {
	c := newTestHandshakeContext(t, RoleResponder)
	resp := c.HandleRequest(context.Background(), []byte{0x01})
	errResp, err := wire.DecodeErrorResponse(resp)
	require.NoError(t, err)
	require.Equal(t, wire.ErrorCodeInvalidRequest, errResp.Code)
}

func TestHandleRequestUnsupportedOpcode(t *testing.T) {
	c := newTestHandshakeContext(t, RoleResponder)
	req := wire.EncodeRespondIfReadyRequest(wire.RespondIfReadyRequest{})
	// Overwrite opcode with something never registered by swapping the
	// dispatch table entry out from under it instead of crafting raw bytes.
	delete(c.dispatch, wire.CodeRespondIfReady)
	resp := c.HandleRequest(context.Background(), req)
	errResp, err := wire.DecodeErrorResponse(resp)
	require.NoError(t, err)
	require.Equal(t, wire.ErrorCodeUnsupportedRequest, errResp.Code)
}

func TestRegisterHandlerOverridesDispatch(t *testing.T) {
	c := newTestHandshakeContext(t, RoleResponder)
	called := false
	c.RegisterHandler(wire.CodeGetVersion, func(c *Context, body []byte) ([]byte, error) {
		called = true
		return []byte("ok"), nil
	})
	req := wire.EncodeGetVersionRequest(wire.GetVersionRequest{})
	resp := c.HandleRequest(context.Background(), req)
	require.True(t, called)
	require.Equal(t, []byte("ok"), resp)
}

func TestResponseStateGateBusyRejectsEverything(t *testing.T) {
	c := newTestHandshakeContext(t, RoleResponder)
	c.SetResponseState(ResponseBusy)
	req := wire.EncodeGetVersionRequest(wire.GetVersionRequest{})
	resp := c.HandleRequest(context.Background(), req)
	errResp, err := wire.DecodeErrorResponse(resp)
	require.NoError(t, err)
	require.Equal(t, wire.ErrorCodeBusy, errResp.Code)
}

func TestResponseStateGateNeedResyncResetsAndRejects(t *testing.T) {
	c := newTestHandshakeContext(t, RoleResponder)
	c.setState(StateAfterCapabilities)
	c.SetResponseState(ResponseNeedResync)
	req := wire.EncodeGetVersionRequest(wire.GetVersionRequest{})
	resp := c.HandleRequest(context.Background(), req)
	errResp, err := wire.DecodeErrorResponse(resp)
	require.NoError(t, err)
	require.Equal(t, wire.ErrorCodeRequestResynch, errResp.Code)
	require.Equal(t, StateNotStarted, c.getState())
	require.Equal(t, ResponseNormal, c.ResponseState)
}

func TestDeferWithNotReadyAndRespondIfReadyReplay(t *testing.T) {
	c := newTestHandshakeContext(t, RoleResponder)
	versionReq := wire.EncodeGetVersionRequest(wire.GetVersionRequest{})

	notReady := c.deferWithNotReady(wire.CodeGetVersion, versionReq)
	errResp, err := wire.DecodeErrorResponse(notReady)
	require.NoError(t, err)
	require.Equal(t, wire.ErrorCodeResponseNotReady, errResp.Code)
	require.NotNil(t, errResp.ExtendedData)
	require.Equal(t, ResponseNotReady, c.ResponseState)

	retry := wire.EncodeRespondIfReadyRequest(wire.RespondIfReadyRequest{
		RequestCode: byte(wire.CodeGetVersion),
		Token:       errResp.ExtendedData.Token,
	})
	replayed := c.HandleRequest(context.Background(), retry)
	versionResp, err := wire.DecodeVersionResponse(replayed)
	require.NoError(t, err)
	require.Len(t, versionResp.Versions, 1)
	require.Equal(t, ResponseNormal, c.ResponseState)
}

func TestResponseStateGateNotReadyDefersFreshRequest(t *testing.T) {
	c := newTestHandshakeContext(t, RoleResponder)
	versionReq := wire.EncodeGetVersionRequest(wire.GetVersionRequest{})
	c.deferWithNotReady(wire.CodeGetVersion, versionReq)

	// A different opcode arriving while NOT_READY is outstanding is itself
	// deferred in turn: a fresh token, a replaced pending entry, and its
	// own ERROR(RESPONSE_NOT_READY) - not UNEXPECTED_REQUEST.
	capsReq := wire.EncodeGetCapabilitiesRequest(wire.GetCapabilitiesRequest{})
	deferred := c.HandleRequest(context.Background(), capsReq)
	deferredErr, err := wire.DecodeErrorResponse(deferred)
	require.NoError(t, err)
	require.Equal(t, wire.ErrorCodeResponseNotReady, deferredErr.Code)
	require.NotNil(t, deferredErr.ExtendedData)
	require.Equal(t, byte(wire.CodeGetCapabilities), deferredErr.ExtendedData.RequestCode)

	// The stale GET_VERSION token no longer matches the replaced entry.
	staleRetry := wire.EncodeRespondIfReadyRequest(wire.RespondIfReadyRequest{
		RequestCode: byte(wire.CodeGetVersion),
		Token:       deferredErr.ExtendedData.Token - 1,
	})
	rejected := c.HandleRequest(context.Background(), staleRetry)
	rejectedErr, err := wire.DecodeErrorResponse(rejected)
	require.NoError(t, err)
	require.Equal(t, wire.ErrorCodeInvalidRequest, rejectedErr.Code)

	// The fresh GET_CAPABILITIES token replays correctly.
	retry := wire.EncodeRespondIfReadyRequest(wire.RespondIfReadyRequest{
		RequestCode: byte(wire.CodeGetCapabilities),
		Token:       deferredErr.ExtendedData.Token,
	})
	replayed := c.HandleRequest(context.Background(), retry)
	_, err = wire.DecodeCapabilitiesResponse(replayed)
	require.NoError(t, err)
	require.Equal(t, ResponseNormal, c.ResponseState)
}

func TestDeferWithNotReadyRejectsMismatchedReplay(t *testing.T) {
	c := newTestHandshakeContext(t, RoleResponder)
	versionReq := wire.EncodeGetVersionRequest(wire.GetVersionRequest{})
	c.deferWithNotReady(wire.CodeGetVersion, versionReq)

	retry := wire.EncodeRespondIfReadyRequest(wire.RespondIfReadyRequest{
		RequestCode: byte(wire.CodeGetVersion),
		Token:       99,
	})
	resp := c.HandleRequest(context.Background(), retry)
	errResp, err := wire.DecodeErrorResponse(resp)
	require.NoError(t, err)
	require.Equal(t, wire.ErrorCodeInvalidRequest, errResp.Code)
}

func TestResetClearsNegotiatedState(t *testing.T) {
	c := newTestHandshakeContext(t, RoleResponder)
	c.setState(StateAuthenticated)
	c.Algorithms = NegotiatedAlgorithms{BaseHash: 1}
	c.CurrentToken = 5
	c.Reset()
	require.Equal(t, StateNotStarted, c.getState())
	require.Equal(t, NegotiatedAlgorithms{}, c.Algorithms)
	require.Equal(t, byte(0), c.CurrentToken)
}
