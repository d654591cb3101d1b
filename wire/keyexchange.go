package wire

import "fmt"

// KeyExchangeRequest opens an asymmetric (DHE) session establishment per
// spec.md §4.5.
type KeyExchangeRequest struct {
	Header                  MessageHeader
	MeasurementSummaryHashType byte
	SlotID                  byte
	RandomNonce             [NonceLen]byte
	DHEPublic               []byte
	OpaqueData              []byte
}

func EncodeKeyExchangeRequest(r KeyExchangeRequest) []byte {
	r.Header.RequestResponseCode = CodeKeyExchange
	r.Header.Param1 = r.MeasurementSummaryHashType
	r.Header.Param2 = r.SlotID
	out := r.Header.Encode(nil)
	out = putLE16(out, uint16(len(r.DHEPublic)))
	out = putLE16(out, uint16(len(r.OpaqueData)))
	out = append(out, r.RandomNonce[:]...)
	out = append(out, r.DHEPublic...)
	out = append(out, r.OpaqueData...)
	return out
}

func DecodeKeyExchangeRequest(b []byte) (KeyExchangeRequest, error) {
	h, n, err := DecodeHeader(b)
	if err != nil {
		return KeyExchangeRequest{}, err
	}
	if h.RequestResponseCode != CodeKeyExchange {
		return KeyExchangeRequest{}, fmt.Errorf("%w: expected KEY_EXCHANGE, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	if len(b) < n+4+NonceLen {
		return KeyExchangeRequest{}, fmt.Errorf("%w: truncated KEY_EXCHANGE", ErrMalformed)
	}
	dheLen := int(le16(b[n : n+2]))
	opaqueLen := int(le16(b[n+2 : n+4]))
	off := n + 4
	r := KeyExchangeRequest{Header: h, MeasurementSummaryHashType: h.Param1, SlotID: h.Param2}
	copy(r.RandomNonce[:], b[off:off+NonceLen])
	off += NonceLen
	if len(b) < off+dheLen+opaqueLen {
		return KeyExchangeRequest{}, fmt.Errorf("%w: KEY_EXCHANGE dhe/opaque lengths overrun buffer", ErrMalformed)
	}
	r.DHEPublic = append([]byte(nil), b[off:off+dheLen]...)
	off += dheLen
	r.OpaqueData = append([]byte(nil), b[off:off+opaqueLen]...)
	return r, nil
}

// KeyExchangeRspResponse carries the responder's DHE share, its own
// nonce, the measurement summary hash (if requested), a signature over
// hash(TH1), and ResponderVerifyData — see spec.md §4.5's establishment
// sequence.
type KeyExchangeRspResponse struct {
	Header                 MessageHeader
	SessionID              uint32
	MeasurementSummaryHash []byte
	RandomNonce            [NonceLen]byte
	DHEPublic              []byte
	OpaqueData             []byte
	Signature              []byte
	ResponderVerifyData    []byte
}

func EncodeKeyExchangeRspResponse(r KeyExchangeRspResponse) []byte {
	r.Header.RequestResponseCode = CodeKeyExchangeRsp
	out := r.Header.Encode(nil)
	out = putLE32(out, r.SessionID)
	out = putLE16(out, uint16(len(r.DHEPublic)))
	out = putLE16(out, uint16(len(r.OpaqueData)))
	out = append(out, r.RandomNonce[:]...)
	out = append(out, r.DHEPublic...)
	out = putLE16(out, uint16(len(r.MeasurementSummaryHash)))
	out = append(out, r.MeasurementSummaryHash...)
	out = append(out, r.OpaqueData...)
	out = append(out, r.Signature...)
	out = append(out, r.ResponderVerifyData...)
	return out
}

// EncodeKeyExchangeRspUpToSignature returns the prefix the transcript
// manager appends before signature verification (TH1, spec.md §4.5).
func EncodeKeyExchangeRspUpToSignature(r KeyExchangeRspResponse) []byte {
	r.Signature = nil
	r.ResponderVerifyData = nil
	return EncodeKeyExchangeRspResponse(r)
}

func DecodeKeyExchangeRspResponse(b []byte, hashLen, sigLen, hmacLen int) (KeyExchangeRspResponse, error) {
	h, n, err := DecodeHeader(b)
	if err != nil {
		return KeyExchangeRspResponse{}, err
	}
	if h.RequestResponseCode != CodeKeyExchangeRsp {
		return KeyExchangeRspResponse{}, fmt.Errorf("%w: expected KEY_EXCHANGE_RSP, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	if len(b) < n+8+NonceLen {
		return KeyExchangeRspResponse{}, fmt.Errorf("%w: truncated KEY_EXCHANGE_RSP", ErrMalformed)
	}
	r := KeyExchangeRspResponse{Header: h, SessionID: le32(b[n : n+4])}
	dheLen := int(le16(b[n+4 : n+6]))
	opaqueLen := int(le16(b[n+6 : n+8]))
	off := n + 8
	copy(r.RandomNonce[:], b[off:off+NonceLen])
	off += NonceLen
	if len(b) < off+dheLen+2 {
		return KeyExchangeRspResponse{}, fmt.Errorf("%w: KEY_EXCHANGE_RSP dhe public overruns buffer", ErrMalformed)
	}
	r.DHEPublic = append([]byte(nil), b[off:off+dheLen]...)
	off += dheLen
	summaryLen := int(le16(b[off : off+2]))
	off += 2
	if len(b) < off+summaryLen+opaqueLen+sigLen+hmacLen {
		return KeyExchangeRspResponse{}, fmt.Errorf("%w: KEY_EXCHANGE_RSP tail overruns buffer", ErrMalformed)
	}
	if summaryLen > 0 {
		r.MeasurementSummaryHash = append([]byte(nil), b[off:off+summaryLen]...)
	}
	off += summaryLen
	r.OpaqueData = append([]byte(nil), b[off:off+opaqueLen]...)
	off += opaqueLen
	r.Signature = append([]byte(nil), b[off:off+sigLen]...)
	off += sigLen
	r.ResponderVerifyData = append([]byte(nil), b[off:off+hmacLen]...)
	_ = hashLen // reserved for callers that need it to size TH1 hashing, not the codec itself
	return r, nil
}
