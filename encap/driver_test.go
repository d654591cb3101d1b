package encap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openspdm/spdm-go/connection"
	"github.com/openspdm/spdm-go/internal/logger"
	"github.com/openspdm/spdm-go/spdmcrypto"
	"github.com/openspdm/spdm-go/spdmcrypto/software"
	"github.com/openspdm/spdm-go/wire"
)

func TestDriveServesOneEncapsulatedRequestAndTerminates(t *testing.T) {
	crypto := software.New()
	log := logger.NewDefaultLogger()
	version := wire.Version{Major: 1, Minor: 3}

	respCtx := connection.NewContext(connection.RoleResponder, nil, crypto, log, version, 0)
	reqCtx := connection.NewContext(connection.RoleRequester, nil, crypto, log, version, 0)
	reqCtx.Version = version
	reqCtx.Algorithms.BaseHash = spdmcrypto.HashSHA256
	reqCtx.LocalCertChains[0] = []byte("requester leaf certificate chain")

	respDriver := NewDriver(respCtx)

	embedded := wire.EncodeGetDigestsRequest(wire.GetDigestsRequest{Header: wire.MessageHeader{Version: version}})

	var gotResponse []byte
	respDriver.Enqueue(embedded, func(response []byte) {
		gotResponse = response
	})
	require.Equal(t, connection.ResponseProcessingEncap, respCtx.ResponseState)

	reqDriver := NewDriver(reqCtx)

	send := func(body []byte) ([]byte, error) {
		return respCtx.HandleRequest(context.Background(), body), nil
	}

	require.NoError(t, reqDriver.Drive(context.Background(), send))
	require.NotNil(t, gotResponse)

	digests, err := wire.DecodeDigestsResponse(gotResponse, 32)
	require.NoError(t, err)
	require.NotZero(t, digests.SlotMask)
	require.Equal(t, connection.ResponseNormal, respCtx.ResponseState)
}

func TestEnqueueServesSecondRequestViaAckPayload(t *testing.T) {
	crypto := software.New()
	log := logger.NewDefaultLogger()
	version := wire.Version{Major: 1, Minor: 3}

	respCtx := connection.NewContext(connection.RoleResponder, nil, crypto, log, version, 0)
	reqCtx := connection.NewContext(connection.RoleRequester, nil, crypto, log, version, 0)
	reqCtx.Version = version
	reqCtx.Algorithms.BaseHash = spdmcrypto.HashSHA256
	reqCtx.LocalCertChains[0] = []byte("requester leaf certificate chain")

	respDriver := NewDriver(respCtx)
	embedded := wire.EncodeGetDigestsRequest(wire.GetDigestsRequest{Header: wire.MessageHeader{Version: version}})

	var responses [][]byte
	respDriver.Enqueue(embedded, func(response []byte) { responses = append(responses, response) })
	respDriver.Enqueue(embedded, func(response []byte) { responses = append(responses, response) })

	reqDriver := NewDriver(reqCtx)
	send := func(body []byte) ([]byte, error) {
		return respCtx.HandleRequest(context.Background(), body), nil
	}

	require.NoError(t, reqDriver.Drive(context.Background(), send))
	require.Len(t, responses, 2, "both queued requests should be served in one Drive call via the ACK's embedded next request")
	require.Equal(t, connection.ResponseNormal, respCtx.ResponseState)
}

func TestDriveRejectsNestedEncapOpcode(t *testing.T) {
	crypto := software.New()
	log := logger.NewDefaultLogger()
	version := wire.Version{Major: 1, Minor: 3}

	respCtx := connection.NewContext(connection.RoleResponder, nil, crypto, log, version, 0)
	reqCtx := connection.NewContext(connection.RoleRequester, nil, crypto, log, version, 0)

	respDriver := NewDriver(respCtx)
	nested := wire.EncodeGetEncapsulatedRequestRequest(wire.GetEncapsulatedRequestRequest{})
	respDriver.Enqueue(nested, func(response []byte) {})

	reqDriver := NewDriver(reqCtx)
	send := func(body []byte) ([]byte, error) {
		return respCtx.HandleRequest(context.Background(), body), nil
	}

	err := reqDriver.Drive(context.Background(), send)
	require.ErrorIs(t, err, errNestedEncap)
}
