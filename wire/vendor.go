package wire

import "fmt"

// VendorDefinedRequest/Response carry an IANA-style StandardsBodyID plus
// an opaque vendor payload, letting vendor-defined opcodes plug into the
// same dispatch table without the codec interpreting their contents.
type VendorDefinedRequest struct {
	Header           MessageHeader
	StandardsBodyID  uint16
	VendorID         []byte
	VendorPayload    []byte
}

func EncodeVendorDefinedRequest(r VendorDefinedRequest) []byte {
	r.Header.RequestResponseCode = CodeVendorDefinedReq
	out := r.Header.Encode(nil)
	out = putLE16(out, r.StandardsBodyID)
	out = append(out, byte(len(r.VendorID)))
	out = append(out, r.VendorID...)
	out = putLE16(out, uint16(len(r.VendorPayload)))
	out = append(out, r.VendorPayload...)
	return out
}

func DecodeVendorDefinedRequest(b []byte) (VendorDefinedRequest, error) {
	h, n, err := DecodeHeader(b)
	if err != nil {
		return VendorDefinedRequest{}, err
	}
	if h.RequestResponseCode != CodeVendorDefinedReq {
		return VendorDefinedRequest{}, fmt.Errorf("%w: expected VENDOR_DEFINED_REQUEST, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	if len(b) < n+3 {
		return VendorDefinedRequest{}, fmt.Errorf("%w: truncated VENDOR_DEFINED_REQUEST", ErrMalformed)
	}
	r := VendorDefinedRequest{Header: h, StandardsBodyID: le16(b[n : n+2])}
	idLen := int(b[n+2])
	off := n + 3
	if len(b) < off+idLen+2 {
		return VendorDefinedRequest{}, fmt.Errorf("%w: VENDOR_DEFINED_REQUEST vendor id overruns buffer", ErrMalformed)
	}
	r.VendorID = append([]byte(nil), b[off:off+idLen]...)
	off += idLen
	payloadLen := int(le16(b[off : off+2]))
	off += 2
	if len(b) < off+payloadLen {
		return VendorDefinedRequest{}, fmt.Errorf("%w: VENDOR_DEFINED_REQUEST payload overruns buffer", ErrMalformed)
	}
	r.VendorPayload = append([]byte(nil), b[off:off+payloadLen]...)
	return r, nil
}

type VendorDefinedResponse struct {
	Header          MessageHeader
	StandardsBodyID uint16
	VendorID        []byte
	VendorPayload   []byte
}

func EncodeVendorDefinedResponse(r VendorDefinedResponse) []byte {
	r.Header.RequestResponseCode = CodeVendorDefinedRsp
	out := r.Header.Encode(nil)
	out = putLE16(out, r.StandardsBodyID)
	out = append(out, byte(len(r.VendorID)))
	out = append(out, r.VendorID...)
	out = putLE16(out, uint16(len(r.VendorPayload)))
	out = append(out, r.VendorPayload...)
	return out
}

func DecodeVendorDefinedResponse(b []byte) (VendorDefinedResponse, error) {
	h, n, err := DecodeHeader(b)
	if err != nil {
		return VendorDefinedResponse{}, err
	}
	if h.RequestResponseCode != CodeVendorDefinedRsp {
		return VendorDefinedResponse{}, fmt.Errorf("%w: expected VENDOR_DEFINED_RESPONSE, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	if len(b) < n+3 {
		return VendorDefinedResponse{}, fmt.Errorf("%w: truncated VENDOR_DEFINED_RESPONSE", ErrMalformed)
	}
	r := VendorDefinedResponse{Header: h, StandardsBodyID: le16(b[n : n+2])}
	idLen := int(b[n+2])
	off := n + 3
	if len(b) < off+idLen+2 {
		return VendorDefinedResponse{}, fmt.Errorf("%w: VENDOR_DEFINED_RESPONSE vendor id overruns buffer", ErrMalformed)
	}
	r.VendorID = append([]byte(nil), b[off:off+idLen]...)
	off += idLen
	payloadLen := int(le16(b[off : off+2]))
	off += 2
	if len(b) < off+payloadLen {
		return VendorDefinedResponse{}, fmt.Errorf("%w: VENDOR_DEFINED_RESPONSE payload overruns buffer", ErrMalformed)
	}
	r.VendorPayload = append([]byte(nil), b[off:off+payloadLen]...)
	return r, nil
}
