package wire

import "fmt"

// FinishRequest closes the asymmetric handshake with (optionally) a
// mutual-auth signature and always a RequesterVerifyData HMAC.
type FinishRequest struct {
	Header             MessageHeader
	SignatureIncluded  bool
	SlotID             byte
	Signature          []byte
	RequesterVerifyData []byte
}

func EncodeFinishRequest(r FinishRequest) []byte {
	r.Header.RequestResponseCode = CodeFinish
	if r.SignatureIncluded {
		r.Header.Param1 = 1
	} else {
		r.Header.Param1 = 0
	}
	r.Header.Param2 = r.SlotID
	out := r.Header.Encode(nil)
	if r.SignatureIncluded {
		out = append(out, r.Signature...)
	}
	return append(out, r.RequesterVerifyData...)
}

// EncodeFinishRequestUpToVerifyData returns the bytes the transcript
// manager hashes for TH2 before RequesterVerifyData is appended.
func EncodeFinishRequestUpToVerifyData(r FinishRequest) []byte {
	r.RequesterVerifyData = nil
	return EncodeFinishRequest(r)
}

func DecodeFinishRequest(b []byte, sigLen, hmacLen int) (FinishRequest, error) {
	h, n, err := DecodeHeader(b)
	if err != nil {
		return FinishRequest{}, err
	}
	if h.RequestResponseCode != CodeFinish {
		return FinishRequest{}, fmt.Errorf("%w: expected FINISH, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	r := FinishRequest{Header: h, SignatureIncluded: h.Param1 != 0, SlotID: h.Param2}
	off := n
	if r.SignatureIncluded {
		if len(b) < off+sigLen {
			return FinishRequest{}, fmt.Errorf("%w: FINISH missing signature", ErrMalformed)
		}
		r.Signature = append([]byte(nil), b[off:off+sigLen]...)
		off += sigLen
	}
	if len(b) < off+hmacLen {
		return FinishRequest{}, fmt.Errorf("%w: FINISH missing verify data", ErrMalformed)
	}
	r.RequesterVerifyData = append([]byte(nil), b[off:off+hmacLen]...)
	return r, nil
}

// FinishRspResponse is the responder's acknowledgement.
type FinishRspResponse struct {
	Header              MessageHeader
	ResponderVerifyData []byte // only present under heartbeat-less 1.0 transport; usually empty
}

func EncodeFinishRspResponse(r FinishRspResponse) []byte {
	r.Header.RequestResponseCode = CodeFinishRsp
	out := r.Header.Encode(nil)
	return append(out, r.ResponderVerifyData...)
}

func DecodeFinishRspResponse(b []byte, hmacLen int) (FinishRspResponse, error) {
	h, n, err := DecodeHeader(b)
	if err != nil {
		return FinishRspResponse{}, err
	}
	if h.RequestResponseCode != CodeFinishRsp {
		return FinishRspResponse{}, fmt.Errorf("%w: expected FINISH_RSP, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	r := FinishRspResponse{Header: h}
	if hmacLen > 0 {
		if len(b) < n+hmacLen {
			return FinishRspResponse{}, fmt.Errorf("%w: FINISH_RSP missing verify data", ErrMalformed)
		}
		r.ResponderVerifyData = append([]byte(nil), b[n:n+hmacLen]...)
	}
	return r, nil
}
