package wire

import "fmt"

// GetCertificateRequest pulls one chunk of a certificate chain, per
// spec.md §4.4 step 4's portion_length-chunked reassembly.
type GetCertificateRequest struct {
	Header MessageHeader
	Slot   byte
	Offset uint16
	Length uint16
}

func EncodeGetCertificateRequest(r GetCertificateRequest) []byte {
	r.Header.RequestResponseCode = CodeGetCertificate
	r.Header.Param1 = r.Slot
	out := r.Header.Encode(nil)
	out = putLE16(out, r.Offset)
	out = putLE16(out, r.Length)
	return out
}

func DecodeGetCertificateRequest(b []byte) (GetCertificateRequest, error) {
	h, n, err := DecodeHeader(b)
	if err != nil {
		return GetCertificateRequest{}, err
	}
	if h.RequestResponseCode != CodeGetCertificate {
		return GetCertificateRequest{}, fmt.Errorf("%w: expected GET_CERTIFICATE, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	if len(b) < n+4 {
		return GetCertificateRequest{}, fmt.Errorf("%w: truncated GET_CERTIFICATE", ErrMalformed)
	}
	return GetCertificateRequest{
		Header: h,
		Slot:   h.Param1,
		Offset: le16(b[n : n+2]),
		Length: le16(b[n+2 : n+4]),
	}, nil
}

// CertificateResponse carries one reassembly chunk. PortionLength is
// len(CertChainPortion); RemainderLength is the byte count still to fetch.
type CertificateResponse struct {
	Header           MessageHeader
	Slot             byte
	PortionLength    uint16
	RemainderLength  uint16
	CertChainPortion []byte
}

func EncodeCertificateResponse(r CertificateResponse) []byte {
	r.Header.RequestResponseCode = CodeCertificate
	r.Header.Param1 = r.Slot
	r.PortionLength = uint16(len(r.CertChainPortion))
	out := r.Header.Encode(nil)
	out = putLE16(out, r.PortionLength)
	out = putLE16(out, r.RemainderLength)
	out = append(out, r.CertChainPortion...)
	return out
}

func DecodeCertificateResponse(b []byte) (CertificateResponse, error) {
	h, n, err := DecodeHeader(b)
	if err != nil {
		return CertificateResponse{}, err
	}
	if h.RequestResponseCode != CodeCertificate {
		return CertificateResponse{}, fmt.Errorf("%w: expected CERTIFICATE, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	if len(b) < n+4 {
		return CertificateResponse{}, fmt.Errorf("%w: truncated CERTIFICATE", ErrMalformed)
	}
	portionLen := le16(b[n : n+2])
	remainderLen := le16(b[n+2 : n+4])
	off := n + 4
	if len(b) < off+int(portionLen) {
		return CertificateResponse{}, fmt.Errorf("%w: CERTIFICATE portion_length %d overruns buffer", ErrMalformed, portionLen)
	}
	return CertificateResponse{
		Header:           h,
		Slot:             h.Param1,
		PortionLength:    portionLen,
		RemainderLength:  remainderLen,
		CertChainPortion: append([]byte(nil), b[off:off+int(portionLen)]...),
	}, nil
}
