package wire

import "fmt"

const EndSessionAttrPreserveState byte = 0x01

type EndSessionRequest struct {
	Header     MessageHeader
	Attributes byte
}

func EncodeEndSessionRequest(r EndSessionRequest) []byte {
	r.Header.RequestResponseCode = CodeEndSession
	r.Header.Param1 = r.Attributes
	return r.Header.Encode(nil)
}

func DecodeEndSessionRequest(b []byte) (EndSessionRequest, error) {
	h, _, err := DecodeHeader(b)
	if err != nil {
		return EndSessionRequest{}, err
	}
	if h.RequestResponseCode != CodeEndSession {
		return EndSessionRequest{}, fmt.Errorf("%w: expected END_SESSION, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	return EndSessionRequest{Header: h, Attributes: h.Param1}, nil
}

type EndSessionAckResponse struct {
	Header MessageHeader
}

func EncodeEndSessionAckResponse(r EndSessionAckResponse) []byte {
	r.Header.RequestResponseCode = CodeEndSessionAck
	return r.Header.Encode(nil)
}

func DecodeEndSessionAckResponse(b []byte) (EndSessionAckResponse, error) {
	h, _, err := DecodeHeader(b)
	if err != nil {
		return EndSessionAckResponse{}, err
	}
	if h.RequestResponseCode != CodeEndSessionAck {
		return EndSessionAckResponse{}, fmt.Errorf("%w: expected END_SESSION_ACK, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	return EndSessionAckResponse{Header: h}, nil
}
