package wire

import "fmt"

// ErrorCode is the responder's ERROR.Param1 (spec.md §4.4 response-state
// gating and §7 error handling).
type ErrorCode byte

const (
	ErrorCodeInvalidRequest     ErrorCode = 0x01
	ErrorCodeBusy               ErrorCode = 0x03
	ErrorCodeUnexpectedRequest  ErrorCode = 0x04
	ErrorCodeUnspecified        ErrorCode = 0x05
	ErrorCodeDecryptError       ErrorCode = 0x06
	ErrorCodeUnsupportedRequest ErrorCode = 0x07
	ErrorCodeRequestInFlight    ErrorCode = 0x08
	ErrorCodeInvalidSessionID   ErrorCode = 0x09
	ErrorCodeSessionLimit       ErrorCode = 0x0A
	ErrorCodeRequestResynch     ErrorCode = 0x0B
	ErrorCodeResponseNotReady   ErrorCode = 0x42
	ErrorCodeVendorDefined      ErrorCode = 0xFF
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeInvalidRequest:
		return "INVALID_REQUEST"
	case ErrorCodeBusy:
		return "BUSY"
	case ErrorCodeUnexpectedRequest:
		return "UNEXPECTED_REQUEST"
	case ErrorCodeUnspecified:
		return "UNSPECIFIED"
	case ErrorCodeDecryptError:
		return "DECRYPT_ERROR"
	case ErrorCodeUnsupportedRequest:
		return "UNSUPPORTED_REQUEST"
	case ErrorCodeRequestInFlight:
		return "REQUEST_IN_FLIGHT"
	case ErrorCodeInvalidSessionID:
		return "INVALID_SESSION_ID"
	case ErrorCodeSessionLimit:
		return "SESSION_LIMIT_EXCEEDED"
	case ErrorCodeRequestResynch:
		return "REQUEST_RESYNCH"
	case ErrorCodeResponseNotReady:
		return "RESPONSE_NOT_READY"
	case ErrorCodeVendorDefined:
		return "VENDOR_DEFINED"
	default:
		return fmt.Sprintf("ErrorCode(0x%02X)", byte(c))
	}
}

// NotReadyExtendedData is the extended-error payload attached to
// ERROR(RESPONSE_NOT_READY), per spec.md §4.4's response-state gating.
type NotReadyExtendedData struct {
	RDExponent  byte
	RequestCode byte
	Token       byte
	RDTM        byte
}

func (d NotReadyExtendedData) encode(dst []byte) []byte {
	return append(dst, d.RDExponent, d.RequestCode, d.Token, d.RDTM)
}

func decodeNotReadyExtendedData(b []byte) (NotReadyExtendedData, error) {
	if len(b) < 4 {
		return NotReadyExtendedData{}, fmt.Errorf("%w: truncated RESPONSE_NOT_READY extended data", ErrMalformed)
	}
	return NotReadyExtendedData{RDExponent: b[0], RequestCode: b[1], Token: b[2], RDTM: b[3]}, nil
}

// ErrorResponse is the wire form of every ERROR message. ExtendedData is
// only populated (and only meaningful) for ErrorCodeResponseNotReady.
type ErrorResponse struct {
	Header       MessageHeader
	Code         ErrorCode
	Data         byte
	ExtendedData *NotReadyExtendedData
}

func EncodeErrorResponse(r ErrorResponse) []byte {
	r.Header.RequestResponseCode = CodeError
	r.Header.Param1 = byte(r.Code)
	r.Header.Param2 = r.Data
	out := r.Header.Encode(nil)
	if r.Code == ErrorCodeResponseNotReady && r.ExtendedData != nil {
		out = r.ExtendedData.encode(out)
	}
	return out
}

func DecodeErrorResponse(b []byte) (ErrorResponse, error) {
	h, n, err := DecodeHeader(b)
	if err != nil {
		return ErrorResponse{}, err
	}
	if h.RequestResponseCode != CodeError {
		return ErrorResponse{}, fmt.Errorf("%w: expected ERROR, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	r := ErrorResponse{Header: h, Code: ErrorCode(h.Param1), Data: h.Param2}
	if r.Code == ErrorCodeResponseNotReady && len(b) > n {
		ext, err := decodeNotReadyExtendedData(b[n:])
		if err != nil {
			return ErrorResponse{}, err
		}
		r.ExtendedData = &ext
	}
	return r, nil
}

// RespondIfReadyRequest re-polls a deferred response by (RequestCode,
// Token), matching the cache key the responder recorded when it first
// emitted RESPONSE_NOT_READY.
type RespondIfReadyRequest struct {
	Header      MessageHeader
	RequestCode byte
	Token       byte
}

func EncodeRespondIfReadyRequest(r RespondIfReadyRequest) []byte {
	r.Header.RequestResponseCode = CodeRespondIfReady
	r.Header.Param1 = r.RequestCode
	r.Header.Param2 = r.Token
	return r.Header.Encode(nil)
}

func DecodeRespondIfReadyRequest(b []byte) (RespondIfReadyRequest, error) {
	h, _, err := DecodeHeader(b)
	if err != nil {
		return RespondIfReadyRequest{}, err
	}
	if h.RequestResponseCode != CodeRespondIfReady {
		return RespondIfReadyRequest{}, fmt.Errorf("%w: expected RESPOND_IF_READY, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	return RespondIfReadyRequest{Header: h, RequestCode: h.Param1, Token: h.Param2}, nil
}
