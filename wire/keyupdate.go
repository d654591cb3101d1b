package wire

import "fmt"

// KeyUpdateOperation selects one of the three rekey modes from spec.md
// §4.5.
type KeyUpdateOperation byte

const (
	KeyUpdateOpUpdateKey     KeyUpdateOperation = 1
	KeyUpdateOpUpdateAllKeys KeyUpdateOperation = 2
	KeyUpdateOpVerifyNewKey  KeyUpdateOperation = 3
)

// KeyUpdateRequest's Tag is an opaque correlator echoed by the ACK so the
// requester can match a reply to the rotation it triggered.
type KeyUpdateRequest struct {
	Header    MessageHeader
	Operation KeyUpdateOperation
	Tag       byte
}

func EncodeKeyUpdateRequest(r KeyUpdateRequest) []byte {
	r.Header.RequestResponseCode = CodeKeyUpdate
	r.Header.Param1 = byte(r.Operation)
	r.Header.Param2 = r.Tag
	return r.Header.Encode(nil)
}

func DecodeKeyUpdateRequest(b []byte) (KeyUpdateRequest, error) {
	h, _, err := DecodeHeader(b)
	if err != nil {
		return KeyUpdateRequest{}, err
	}
	if h.RequestResponseCode != CodeKeyUpdate {
		return KeyUpdateRequest{}, fmt.Errorf("%w: expected KEY_UPDATE, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	return KeyUpdateRequest{Header: h, Operation: KeyUpdateOperation(h.Param1), Tag: h.Param2}, nil
}

type KeyUpdateAckResponse struct {
	Header    MessageHeader
	Operation KeyUpdateOperation
	Tag       byte
}

func EncodeKeyUpdateAckResponse(r KeyUpdateAckResponse) []byte {
	r.Header.RequestResponseCode = CodeKeyUpdateAck
	r.Header.Param1 = byte(r.Operation)
	r.Header.Param2 = r.Tag
	return r.Header.Encode(nil)
}

func DecodeKeyUpdateAckResponse(b []byte) (KeyUpdateAckResponse, error) {
	h, _, err := DecodeHeader(b)
	if err != nil {
		return KeyUpdateAckResponse{}, err
	}
	if h.RequestResponseCode != CodeKeyUpdateAck {
		return KeyUpdateAckResponse{}, fmt.Errorf("%w: expected KEY_UPDATE_ACK, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	return KeyUpdateAckResponse{Header: h, Operation: KeyUpdateOperation(h.Param1), Tag: h.Param2}, nil
}
