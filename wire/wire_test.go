package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func v12() Version { return Version{Major: 1, Minor: 2} }

func header(code RequestResponseCode) MessageHeader {
	return MessageHeader{Version: v12(), RequestResponseCode: code}
}

func TestHeaderRoundTrip(t *testing.T) {
	h := MessageHeader{Version: Version{Major: 1, Minor: 1}, RequestResponseCode: CodeGetVersion, Param1: 0x01, Param2: 0x02}
	encoded := h.Encode(nil)
	require.Len(t, encoded, HeaderLen)
	decoded, n, err := DecodeHeader(encoded)
	require.NoError(t, err)
	assert.Equal(t, HeaderLen, n)
	assert.Equal(t, h, decoded)
}

func TestHeaderTruncated(t *testing.T) {
	_, _, err := DecodeHeader([]byte{0x11, 0x84})
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestVersionRoundTrip(t *testing.T) {
	req := GetVersionRequest{Header: header(CodeGetVersion)}
	got, err := DecodeGetVersionRequest(EncodeGetVersionRequest(req))
	require.NoError(t, err)
	assert.Equal(t, CodeGetVersion, got.Header.RequestResponseCode)

	resp := VersionResponse{
		Header: header(CodeVersion),
		Versions: []VersionEntry{
			{Major: 1, Minor: 0},
			{Major: 1, Minor: 1},
			{Major: 1, Minor: 2},
		},
	}
	gotResp, err := DecodeVersionResponse(EncodeVersionResponse(resp))
	require.NoError(t, err)
	assert.Equal(t, resp.Versions, gotResp.Versions)
}

func TestCapabilitiesRoundTrip(t *testing.T) {
	req := GetCapabilitiesRequest{Header: header(CodeGetCapabilities), CTExponent: 12, Flags: CapCertCap | CapChalCap | CapKeyExCap}
	got, err := DecodeGetCapabilitiesRequest(EncodeGetCapabilitiesRequest(req))
	require.NoError(t, err)
	assert.Equal(t, req.CTExponent, got.CTExponent)
	assert.Equal(t, req.Flags, got.Flags)

	resp := CapabilitiesResponse{Header: header(CodeCapabilities), CTExponent: 12, Flags: CapEncryptCap | CapMacCap}
	gotResp, err := DecodeCapabilitiesResponse(EncodeCapabilitiesResponse(resp))
	require.NoError(t, err)
	assert.Equal(t, resp.Flags, gotResp.Flags)
}

func TestCapabilities10HasNoBody(t *testing.T) {
	h := MessageHeader{Version: Version{Major: 1, Minor: 0}, RequestResponseCode: CodeGetCapabilities}
	encoded := EncodeGetCapabilitiesRequest(GetCapabilitiesRequest{Header: h, CTExponent: 5})
	assert.Len(t, encoded, HeaderLen)
}

func TestNegotiateAlgorithmsRoundTrip(t *testing.T) {
	req := NegotiateAlgorithmsRequest{
		Header:          header(CodeNegotiateAlgorithms),
		MeasurementSpec: 0x01,
		BaseAsymAlgo:    0x0001,
		BaseHashAlgo:    0x0002,
		ReqAlgStructs: []ReqAlgStruct{
			{AlgType: 2, AlgSupported: []uint16{1, 2, 4}},
			{AlgType: 3, AlgSupported: []uint16{8}},
		},
	}
	got, err := DecodeNegotiateAlgorithmsRequest(EncodeNegotiateAlgorithmsRequest(req))
	require.NoError(t, err)
	assert.Equal(t, req.ReqAlgStructs, got.ReqAlgStructs)
	assert.Equal(t, req.BaseAsymAlgo, got.BaseAsymAlgo)

	resp := AlgorithmsResponse{
		Header:                 header(CodeAlgorithms),
		MeasurementSpecSel:     0x01,
		MeasurementHashAlgoSel: 0x02,
		BaseAsymSel:            0x04,
		BaseHashSel:            0x08,
		ReqAlgStructSel:        []ReqAlgStruct{{AlgType: 2, AlgSupported: []uint16{2}}},
	}
	gotResp, err := DecodeAlgorithmsResponse(EncodeAlgorithmsResponse(resp))
	require.NoError(t, err)
	assert.Equal(t, resp.ReqAlgStructSel, gotResp.ReqAlgStructSel)
}

func TestNegotiateAlgorithmsRejectsMalformedLength(t *testing.T) {
	req := NegotiateAlgorithmsRequest{Header: header(CodeNegotiateAlgorithms), ReqAlgStructs: []ReqAlgStruct{{AlgType: 1, AlgSupported: []uint16{1, 2}}}}
	encoded := EncodeNegotiateAlgorithmsRequest(req)
	truncated := encoded[:len(encoded)-1]
	_, err := DecodeNegotiateAlgorithmsRequest(truncated)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestDigestsRoundTrip(t *testing.T) {
	d1 := make([]byte, 48)
	d2 := make([]byte, 48)
	d1[0], d2[0] = 1, 2
	resp := DigestsResponse{Header: header(CodeDigests), SlotMask: 0b00000101, Digests: [][]byte{d1, d2}}
	encoded := EncodeDigestsResponse(resp)
	got, err := DecodeDigestsResponse(encoded, 48)
	require.NoError(t, err)
	assert.Equal(t, resp.Digests, got.Digests)
	assert.Equal(t, resp.SlotMask, got.SlotMask)
}

func TestCertificateRoundTrip(t *testing.T) {
	req := GetCertificateRequest{Header: header(CodeGetCertificate), Slot: 2, Offset: 0, Length: 512}
	req.Header.Param1 = req.Slot // the slot travels in Param1, so the decoded header carries it
	got, err := DecodeGetCertificateRequest(EncodeGetCertificateRequest(req))
	require.NoError(t, err)
	assert.Equal(t, req, got)

	resp := CertificateResponse{Header: header(CodeCertificate), Slot: 2, RemainderLength: 100, CertChainPortion: []byte("der-bytes")}
	gotResp, err := DecodeCertificateResponse(EncodeCertificateResponse(resp))
	require.NoError(t, err)
	assert.Equal(t, resp.CertChainPortion, gotResp.CertChainPortion)
	assert.Equal(t, resp.RemainderLength, gotResp.RemainderLength)
}

func TestChallengeRoundTrip(t *testing.T) {
	req := ChallengeRequest{Header: header(CodeChallenge), Slot: 0, MeasurementHashType: 1}
	copy(req.Nonce[:], []byte("0123456789abcdef0123456789abcdef"))
	got, err := DecodeChallengeRequest(EncodeChallengeRequest(req))
	require.NoError(t, err)
	assert.Equal(t, req.Nonce, got.Nonce)

	resp := ChallengeAuthResponse{
		Header:                 header(CodeChallengeAuth),
		Slot:                   0,
		CertChainHash:          make([]byte, 32),
		MeasurementSummaryHash: make([]byte, 32),
		OpaqueData:             []byte("opaque"),
		Signature:              make([]byte, 64),
	}
	gotResp, err := DecodeChallengeAuthResponse(EncodeChallengeAuthResponse(resp), 32, 64)
	require.NoError(t, err)
	assert.Equal(t, resp.Signature, gotResp.Signature)
	assert.Equal(t, resp.OpaqueData, gotResp.OpaqueData)

	unsigned := EncodeChallengeAuthResponseUnsigned(resp)
	assert.Less(t, len(unsigned), len(EncodeChallengeAuthResponse(resp)))
}

func TestMeasurementsRoundTrip(t *testing.T) {
	req := GetMeasurementsRequest{Header: header(CodeGetMeasurements), Slot: 0, Operation: MeasurementIndexAll, RequestSignature: true}
	got, err := DecodeGetMeasurementsRequest(EncodeGetMeasurementsRequest(req))
	require.NoError(t, err)
	assert.True(t, got.RequestSignature)
	assert.Equal(t, MeasurementIndexAll, got.Operation)

	resp := MeasurementsResponse{
		Header: header(CodeMeasurements),
		Blocks: []MeasurementBlock{
			{Index: 1, MeasurementSpec: 1, MeasurementData: []byte("firmware-hash")},
			{Index: 2, MeasurementSpec: 1, MeasurementData: []byte("bootloader-hash")},
		},
		Signed:    true,
		Signature: make([]byte, 64),
	}
	encoded := EncodeMeasurementsResponse(resp)
	gotResp, err := DecodeMeasurementsResponse(encoded, true, 64)
	require.NoError(t, err)
	assert.Equal(t, resp.Blocks, gotResp.Blocks)
	assert.Equal(t, resp.Signature, gotResp.Signature)
}

func TestKeyExchangeRoundTrip(t *testing.T) {
	req := KeyExchangeRequest{Header: header(CodeKeyExchange), SlotID: 0, DHEPublic: make([]byte, 32), OpaqueData: []byte("opq")}
	got, err := DecodeKeyExchangeRequest(EncodeKeyExchangeRequest(req))
	require.NoError(t, err)
	assert.Equal(t, req.DHEPublic, got.DHEPublic)

	resp := KeyExchangeRspResponse{
		Header:              header(CodeKeyExchangeRsp),
		SessionID:           0xAABBCCDD,
		DHEPublic:           make([]byte, 32),
		Signature:           make([]byte, 64),
		ResponderVerifyData: make([]byte, 48),
	}
	encoded := EncodeKeyExchangeRspResponse(resp)
	gotResp, err := DecodeKeyExchangeRspResponse(encoded, 48, 64, 48)
	require.NoError(t, err)
	assert.Equal(t, resp.SessionID, gotResp.SessionID)
	assert.Equal(t, resp.ResponderVerifyData, gotResp.ResponderVerifyData)

	upToSig := EncodeKeyExchangeRspUpToSignature(resp)
	assert.Less(t, len(upToSig), len(encoded))
}

func TestFinishRoundTrip(t *testing.T) {
	req := FinishRequest{Header: header(CodeFinish), SignatureIncluded: true, Signature: make([]byte, 64), RequesterVerifyData: make([]byte, 48)}
	got, err := DecodeFinishRequest(EncodeFinishRequest(req), 64, 48)
	require.NoError(t, err)
	assert.Equal(t, req.RequesterVerifyData, got.RequesterVerifyData)

	resp := FinishRspResponse{Header: header(CodeFinishRsp)}
	gotResp, err := DecodeFinishRspResponse(EncodeFinishRspResponse(resp), 0)
	require.NoError(t, err)
	assert.Equal(t, CodeFinishRsp, gotResp.Header.RequestResponseCode)
}

func TestPSKRoundTrip(t *testing.T) {
	req := PSKExchangeRequest{Header: header(CodePSKExchange), PSKHint: []byte("hint"), OpaqueData: []byte("opq")}
	got, err := DecodePSKExchangeRequest(EncodePSKExchangeRequest(req))
	require.NoError(t, err)
	assert.Equal(t, req.PSKHint, got.PSKHint)

	resp := PSKExchangeRspResponse{Header: header(CodePSKExchangeRsp), SessionID: 7, ResponderVerifyData: make([]byte, 48)}
	gotResp, err := DecodePSKExchangeRspResponse(EncodePSKExchangeRspResponse(resp), 48)
	require.NoError(t, err)
	assert.Equal(t, resp.SessionID, gotResp.SessionID)

	fin := PSKFinishRequest{Header: header(CodePSKFinish), RequesterVerifyData: make([]byte, 48)}
	gotFin, err := DecodePSKFinishRequest(EncodePSKFinishRequest(fin), 48)
	require.NoError(t, err)
	assert.Equal(t, fin.RequesterVerifyData, gotFin.RequesterVerifyData)
}

func TestKeyUpdateRoundTrip(t *testing.T) {
	req := KeyUpdateRequest{Header: header(CodeKeyUpdate), Operation: KeyUpdateOpUpdateAllKeys, Tag: 5}
	got, err := DecodeKeyUpdateRequest(EncodeKeyUpdateRequest(req))
	require.NoError(t, err)
	assert.Equal(t, req.Operation, got.Operation)
	assert.Equal(t, req.Tag, got.Tag)
}

func TestEndSessionRoundTrip(t *testing.T) {
	req := EndSessionRequest{Header: header(CodeEndSession), Attributes: EndSessionAttrPreserveState}
	got, err := DecodeEndSessionRequest(EncodeEndSessionRequest(req))
	require.NoError(t, err)
	assert.Equal(t, req.Attributes, got.Attributes)
}

func TestEncapsulatedRoundTrip(t *testing.T) {
	req := EncapsulatedRequestResponse{Header: header(CodeEncapRequest), RequestID: 3, Payload: []byte{0x01, 0x02, 0x03}}
	got, err := DecodeEncapsulatedRequestResponse(EncodeEncapsulatedRequestResponse(req))
	require.NoError(t, err)
	assert.Equal(t, req.Payload, got.Payload)

	deliver := DeliverEncapsulatedResponseRequest{Header: header(CodeDeliverEncapResp), RequestID: 3, Payload: []byte{0x04}}
	gotDeliver, err := DecodeDeliverEncapsulatedResponseRequest(EncodeDeliverEncapsulatedResponseRequest(deliver))
	require.NoError(t, err)
	assert.Equal(t, deliver.RequestID, gotDeliver.RequestID)

	ack := EncapsulatedResponseAckResponse{Header: header(CodeEncapResponseAck), RequestID: 3, Terminate: true}
	gotAck, err := DecodeEncapsulatedResponseAckResponse(EncodeEncapsulatedResponseAckResponse(ack))
	require.NoError(t, err)
	assert.True(t, gotAck.Terminate)
}

func TestErrorRoundTrip(t *testing.T) {
	ext := &NotReadyExtendedData{RDExponent: 1, RequestCode: byte(CodeGetCertificate), Token: 7, RDTM: 1}
	resp := ErrorResponse{Header: header(CodeError), Code: ErrorCodeResponseNotReady, ExtendedData: ext}
	got, err := DecodeErrorResponse(EncodeErrorResponse(resp))
	require.NoError(t, err)
	require.NotNil(t, got.ExtendedData)
	assert.Equal(t, *ext, *got.ExtendedData)

	plain := ErrorResponse{Header: header(CodeError), Code: ErrorCodeBusy}
	gotPlain, err := DecodeErrorResponse(EncodeErrorResponse(plain))
	require.NoError(t, err)
	assert.Nil(t, gotPlain.ExtendedData)
}

func TestRespondIfReadyRoundTrip(t *testing.T) {
	req := RespondIfReadyRequest{Header: header(CodeRespondIfReady), RequestCode: byte(CodeGetCertificate), Token: 9}
	got, err := DecodeRespondIfReadyRequest(EncodeRespondIfReadyRequest(req))
	require.NoError(t, err)
	assert.Equal(t, req.Token, got.Token)
	assert.Equal(t, req.RequestCode, got.RequestCode)
}

func TestVendorDefinedRoundTrip(t *testing.T) {
	req := VendorDefinedRequest{Header: header(CodeVendorDefinedReq), StandardsBodyID: 6, VendorID: []byte{0xAA, 0xBB}, VendorPayload: []byte("payload")}
	got, err := DecodeVendorDefinedRequest(EncodeVendorDefinedRequest(req))
	require.NoError(t, err)
	assert.Equal(t, req.VendorPayload, got.VendorPayload)

	resp := VendorDefinedResponse{Header: header(CodeVendorDefinedRsp), StandardsBodyID: 6, VendorPayload: []byte("resp")}
	gotResp, err := DecodeVendorDefinedResponse(EncodeVendorDefinedResponse(resp))
	require.NoError(t, err)
	assert.Equal(t, resp.VendorPayload, gotResp.VendorPayload)
}

func TestOpcodeMismatchRejected(t *testing.T) {
	encoded := EncodeGetVersionRequest(GetVersionRequest{Header: header(CodeGetVersion)})
	_, err := DecodeGetCertificateRequest(encoded)
	assert.ErrorIs(t, err, ErrUnsupportedOpcode)
}

func TestRequestResponseCodeString(t *testing.T) {
	assert.Equal(t, "GET_VERSION", CodeGetVersion.String())
	assert.Contains(t, RequestResponseCode(0x55).String(), "0x55")
}

func TestVersionLess(t *testing.T) {
	assert.True(t, Version{Major: 1, Minor: 0}.Less(Version{Major: 1, Minor: 1}))
	assert.False(t, Version{Major: 1, Minor: 2}.Less(Version{Major: 1, Minor: 1}))
}
