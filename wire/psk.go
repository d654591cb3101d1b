package wire

import "fmt"

// PSKExchangeRequest establishes a session using a pre-shared key instead
// of DHE (spec.md §4.5's PSK path).
type PSKExchangeRequest struct {
	Header                     MessageHeader
	MeasurementSummaryHashType byte
	RandomNonce                [NonceLen]byte
	PSKHint                    []byte
	OpaqueData                 []byte
}

func EncodePSKExchangeRequest(r PSKExchangeRequest) []byte {
	r.Header.RequestResponseCode = CodePSKExchange
	r.Header.Param1 = r.MeasurementSummaryHashType
	out := r.Header.Encode(nil)
	out = putLE16(out, uint16(len(r.PSKHint)))
	out = putLE16(out, uint16(len(r.OpaqueData)))
	out = append(out, r.RandomNonce[:]...)
	out = append(out, r.PSKHint...)
	out = append(out, r.OpaqueData...)
	return out
}

func DecodePSKExchangeRequest(b []byte) (PSKExchangeRequest, error) {
	h, n, err := DecodeHeader(b)
	if err != nil {
		return PSKExchangeRequest{}, err
	}
	if h.RequestResponseCode != CodePSKExchange {
		return PSKExchangeRequest{}, fmt.Errorf("%w: expected PSK_EXCHANGE, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	if len(b) < n+4+NonceLen {
		return PSKExchangeRequest{}, fmt.Errorf("%w: truncated PSK_EXCHANGE", ErrMalformed)
	}
	hintLen := int(le16(b[n : n+2]))
	opaqueLen := int(le16(b[n+2 : n+4]))
	off := n + 4
	r := PSKExchangeRequest{Header: h, MeasurementSummaryHashType: h.Param1}
	copy(r.RandomNonce[:], b[off:off+NonceLen])
	off += NonceLen
	if len(b) < off+hintLen+opaqueLen {
		return PSKExchangeRequest{}, fmt.Errorf("%w: PSK_EXCHANGE hint/opaque lengths overrun buffer", ErrMalformed)
	}
	r.PSKHint = append([]byte(nil), b[off:off+hintLen]...)
	off += hintLen
	r.OpaqueData = append([]byte(nil), b[off:off+opaqueLen]...)
	return r, nil
}

// PSKExchangeRspResponse mirrors KEY_EXCHANGE_RSP but without a signature;
// authentication rests on both sides knowing the PSK.
type PSKExchangeRspResponse struct {
	Header                 MessageHeader
	SessionID              uint32
	MeasurementSummaryHash []byte
	RandomNonce            [NonceLen]byte
	OpaqueData             []byte
	ResponderVerifyData    []byte
}

func EncodePSKExchangeRspResponse(r PSKExchangeRspResponse) []byte {
	r.Header.RequestResponseCode = CodePSKExchangeRsp
	out := r.Header.Encode(nil)
	out = putLE32(out, r.SessionID)
	out = putLE16(out, uint16(len(r.OpaqueData)))
	out = append(out, r.RandomNonce[:]...)
	out = putLE16(out, uint16(len(r.MeasurementSummaryHash)))
	out = append(out, r.MeasurementSummaryHash...)
	out = append(out, r.OpaqueData...)
	out = append(out, r.ResponderVerifyData...)
	return out
}

func DecodePSKExchangeRspResponse(b []byte, hmacLen int) (PSKExchangeRspResponse, error) {
	h, n, err := DecodeHeader(b)
	if err != nil {
		return PSKExchangeRspResponse{}, err
	}
	if h.RequestResponseCode != CodePSKExchangeRsp {
		return PSKExchangeRspResponse{}, fmt.Errorf("%w: expected PSK_EXCHANGE_RSP, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	if len(b) < n+6+NonceLen {
		return PSKExchangeRspResponse{}, fmt.Errorf("%w: truncated PSK_EXCHANGE_RSP", ErrMalformed)
	}
	r := PSKExchangeRspResponse{Header: h, SessionID: le32(b[n : n+4])}
	opaqueLen := int(le16(b[n+4 : n+6]))
	off := n + 6
	copy(r.RandomNonce[:], b[off:off+NonceLen])
	off += NonceLen
	if len(b) < off+2 {
		return PSKExchangeRspResponse{}, fmt.Errorf("%w: PSK_EXCHANGE_RSP missing summary length", ErrMalformed)
	}
	summaryLen := int(le16(b[off : off+2]))
	off += 2
	if len(b) < off+summaryLen+opaqueLen+hmacLen {
		return PSKExchangeRspResponse{}, fmt.Errorf("%w: PSK_EXCHANGE_RSP tail overruns buffer", ErrMalformed)
	}
	if summaryLen > 0 {
		r.MeasurementSummaryHash = append([]byte(nil), b[off:off+summaryLen]...)
	}
	off += summaryLen
	r.OpaqueData = append([]byte(nil), b[off:off+opaqueLen]...)
	off += opaqueLen
	r.ResponderVerifyData = append([]byte(nil), b[off:off+hmacLen]...)
	return r, nil
}

// PSKFinishRequest carries only RequesterVerifyData; there is no
// signature in the PSK path.
type PSKFinishRequest struct {
	Header              MessageHeader
	RequesterVerifyData []byte
}

func EncodePSKFinishRequest(r PSKFinishRequest) []byte {
	r.Header.RequestResponseCode = CodePSKFinish
	out := r.Header.Encode(nil)
	return append(out, r.RequesterVerifyData...)
}

func DecodePSKFinishRequest(b []byte, hmacLen int) (PSKFinishRequest, error) {
	h, n, err := DecodeHeader(b)
	if err != nil {
		return PSKFinishRequest{}, err
	}
	if h.RequestResponseCode != CodePSKFinish {
		return PSKFinishRequest{}, fmt.Errorf("%w: expected PSK_FINISH, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	if len(b) < n+hmacLen {
		return PSKFinishRequest{}, fmt.Errorf("%w: truncated PSK_FINISH", ErrMalformed)
	}
	return PSKFinishRequest{Header: h, RequesterVerifyData: append([]byte(nil), b[n:n+hmacLen]...)}, nil
}

// PSKFinishRspResponse carries no payload beyond the header.
type PSKFinishRspResponse struct {
	Header MessageHeader
}

func EncodePSKFinishRspResponse(r PSKFinishRspResponse) []byte {
	r.Header.RequestResponseCode = CodePSKFinishRsp
	return r.Header.Encode(nil)
}

func DecodePSKFinishRspResponse(b []byte) (PSKFinishRspResponse, error) {
	h, _, err := DecodeHeader(b)
	if err != nil {
		return PSKFinishRspResponse{}, err
	}
	if h.RequestResponseCode != CodePSKFinishRsp {
		return PSKFinishRspResponse{}, fmt.Errorf("%w: expected PSK_FINISH_RSP, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	return PSKFinishRspResponse{Header: h}, nil
}
