package wire

import "fmt"

// GetEncapsulatedRequestRequest polls the responder for a pending
// encapsulated request (spec.md §4.6).
type GetEncapsulatedRequestRequest struct {
	Header MessageHeader
}

func EncodeGetEncapsulatedRequestRequest(r GetEncapsulatedRequestRequest) []byte {
	r.Header.RequestResponseCode = CodeGetEncapRequest
	return r.Header.Encode(nil)
}

func DecodeGetEncapsulatedRequestRequest(b []byte) (GetEncapsulatedRequestRequest, error) {
	h, _, err := DecodeHeader(b)
	if err != nil {
		return GetEncapsulatedRequestRequest{}, err
	}
	if h.RequestResponseCode != CodeGetEncapRequest {
		return GetEncapsulatedRequestRequest{}, fmt.Errorf("%w: expected GET_ENCAPSULATED_REQUEST, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	return GetEncapsulatedRequestRequest{Header: h}, nil
}

// EncapsulatedRequestResponse wraps one SPDM request message addressed by
// RequestID, which DeliverEncapsulatedResponseRequest must echo exactly.
type EncapsulatedRequestResponse struct {
	Header    MessageHeader
	RequestID byte
	Payload   []byte // the embedded SPDM request, header included
}

func EncodeEncapsulatedRequestResponse(r EncapsulatedRequestResponse) []byte {
	r.Header.RequestResponseCode = CodeEncapRequest
	r.Header.Param1 = r.RequestID
	out := r.Header.Encode(nil)
	return append(out, r.Payload...)
}

func DecodeEncapsulatedRequestResponse(b []byte) (EncapsulatedRequestResponse, error) {
	h, n, err := DecodeHeader(b)
	if err != nil {
		return EncapsulatedRequestResponse{}, err
	}
	if h.RequestResponseCode != CodeEncapRequest {
		return EncapsulatedRequestResponse{}, fmt.Errorf("%w: expected ENCAPSULATED_REQUEST, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	return EncapsulatedRequestResponse{
		Header:    h,
		RequestID: h.Param1,
		Payload:   append([]byte(nil), b[n:]...),
	}, nil
}

// DeliverEncapsulatedResponseRequest returns the Requester's answer to the
// embedded request, tagged with the same RequestID.
type DeliverEncapsulatedResponseRequest struct {
	Header    MessageHeader
	RequestID byte
	Payload   []byte
}

func EncodeDeliverEncapsulatedResponseRequest(r DeliverEncapsulatedResponseRequest) []byte {
	r.Header.RequestResponseCode = CodeDeliverEncapResp
	r.Header.Param1 = r.RequestID
	out := r.Header.Encode(nil)
	return append(out, r.Payload...)
}

func DecodeDeliverEncapsulatedResponseRequest(b []byte) (DeliverEncapsulatedResponseRequest, error) {
	h, n, err := DecodeHeader(b)
	if err != nil {
		return DeliverEncapsulatedResponseRequest{}, err
	}
	if h.RequestResponseCode != CodeDeliverEncapResp {
		return DeliverEncapsulatedResponseRequest{}, fmt.Errorf("%w: expected DELIVER_ENCAPSULATED_RESPONSE, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	return DeliverEncapsulatedResponseRequest{
		Header:    h,
		RequestID: h.Param1,
		Payload:   append([]byte(nil), b[n:]...),
	}, nil
}

// EncapsulatedResponseAckResponse either carries the next pending encap
// request (Payload non-empty) or terminates the exchange (Terminate set).
type EncapsulatedResponseAckResponse struct {
	Header    MessageHeader
	RequestID byte
	Terminate bool
	Payload   []byte
}

const encapAckTerminate byte = 0x01

func EncodeEncapsulatedResponseAckResponse(r EncapsulatedResponseAckResponse) []byte {
	r.Header.RequestResponseCode = CodeEncapResponseAck
	r.Header.Param1 = r.RequestID
	if r.Terminate {
		r.Header.Param2 = encapAckTerminate
	} else {
		r.Header.Param2 = 0
	}
	out := r.Header.Encode(nil)
	return append(out, r.Payload...)
}

func DecodeEncapsulatedResponseAckResponse(b []byte) (EncapsulatedResponseAckResponse, error) {
	h, n, err := DecodeHeader(b)
	if err != nil {
		return EncapsulatedResponseAckResponse{}, err
	}
	if h.RequestResponseCode != CodeEncapResponseAck {
		return EncapsulatedResponseAckResponse{}, fmt.Errorf("%w: expected ENCAPSULATED_RESPONSE_ACK, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	return EncapsulatedResponseAckResponse{
		Header:    h,
		RequestID: h.Param1,
		Terminate: h.Param2&encapAckTerminate != 0,
		Payload:   append([]byte(nil), b[n:]...),
	}, nil
}
