package wire

import "fmt"

// HeartbeatRequest and HeartbeatAckResponse carry no payload beyond the
// header; they exist solely to reset the session's idle timer.
type HeartbeatRequest struct {
	Header MessageHeader
}

func EncodeHeartbeatRequest(r HeartbeatRequest) []byte {
	r.Header.RequestResponseCode = CodeHeartbeat
	return r.Header.Encode(nil)
}

func DecodeHeartbeatRequest(b []byte) (HeartbeatRequest, error) {
	h, _, err := DecodeHeader(b)
	if err != nil {
		return HeartbeatRequest{}, err
	}
	if h.RequestResponseCode != CodeHeartbeat {
		return HeartbeatRequest{}, fmt.Errorf("%w: expected HEARTBEAT, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	return HeartbeatRequest{Header: h}, nil
}

type HeartbeatAckResponse struct {
	Header MessageHeader
}

func EncodeHeartbeatAckResponse(r HeartbeatAckResponse) []byte {
	r.Header.RequestResponseCode = CodeHeartbeatAck
	return r.Header.Encode(nil)
}

func DecodeHeartbeatAckResponse(b []byte) (HeartbeatAckResponse, error) {
	h, _, err := DecodeHeader(b)
	if err != nil {
		return HeartbeatAckResponse{}, err
	}
	if h.RequestResponseCode != CodeHeartbeatAck {
		return HeartbeatAckResponse{}, fmt.Errorf("%w: expected HEARTBEAT_ACK, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	return HeartbeatAckResponse{Header: h}, nil
}
