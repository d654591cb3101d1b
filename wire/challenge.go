package wire

import "fmt"

const NonceLen = 32

// ChallengeRequest carries the requester's freshness nonce and the slot
// being challenged.
type ChallengeRequest struct {
	Header              MessageHeader
	Slot                byte
	MeasurementHashType byte
	Nonce               [NonceLen]byte
}

func EncodeChallengeRequest(r ChallengeRequest) []byte {
	r.Header.RequestResponseCode = CodeChallenge
	r.Header.Param1 = r.Slot
	r.Header.Param2 = r.MeasurementHashType
	out := r.Header.Encode(nil)
	return append(out, r.Nonce[:]...)
}

func DecodeChallengeRequest(b []byte) (ChallengeRequest, error) {
	h, n, err := DecodeHeader(b)
	if err != nil {
		return ChallengeRequest{}, err
	}
	if h.RequestResponseCode != CodeChallenge {
		return ChallengeRequest{}, fmt.Errorf("%w: expected CHALLENGE, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	if len(b) < n+NonceLen {
		return ChallengeRequest{}, fmt.Errorf("%w: truncated CHALLENGE", ErrMalformed)
	}
	r := ChallengeRequest{Header: h, Slot: h.Param1, MeasurementHashType: h.Param2}
	copy(r.Nonce[:], b[n:n+NonceLen])
	return r, nil
}

// ChallengeAuthResponse carries the responder's nonce, cert-chain digest,
// an optional measurement summary hash, opaque data, and the signature
// covering everything up to (but not including) itself — see spec.md
// §4.2 on the transcript manager's signature-field carve-out.
type ChallengeAuthResponse struct {
	Header                   MessageHeader
	Slot                     byte
	Nonce                    [NonceLen]byte
	CertChainHash            []byte
	MeasurementSummaryHash   []byte // empty when no summary was requested
	OpaqueData               []byte
	Signature                []byte
}

func EncodeChallengeAuthResponse(r ChallengeAuthResponse) []byte {
	r.Header.RequestResponseCode = CodeChallengeAuth
	r.Header.Param1 = r.Slot
	out := r.Header.Encode(nil)
	out = append(out, r.Nonce[:]...)
	out = append(out, r.CertChainHash...)
	out = putLE16(out, uint16(len(r.MeasurementSummaryHash)))
	out = append(out, r.MeasurementSummaryHash...)
	out = putLE16(out, uint16(len(r.OpaqueData)))
	out = append(out, r.OpaqueData...)
	out = append(out, r.Signature...)
	return out
}

// EncodeChallengeAuthResponseUnsigned returns every field except Signature,
// which is the exact byte range the transcript manager appends before
// verification (spec.md §4.4 step 5 M1 computation).
func EncodeChallengeAuthResponseUnsigned(r ChallengeAuthResponse) []byte {
	r.Signature = nil
	return EncodeChallengeAuthResponse(r)
}

// DecodeChallengeAuthResponse requires hashLen (cert-chain/measurement
// digest size) and sigLen (signature algorithm output size), both already
// known from the negotiated algorithms.
func DecodeChallengeAuthResponse(b []byte, hashLen, sigLen int) (ChallengeAuthResponse, error) {
	h, n, err := DecodeHeader(b)
	if err != nil {
		return ChallengeAuthResponse{}, err
	}
	if h.RequestResponseCode != CodeChallengeAuth {
		return ChallengeAuthResponse{}, fmt.Errorf("%w: expected CHALLENGE_AUTH, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	off := n
	if len(b) < off+NonceLen+hashLen+2 {
		return ChallengeAuthResponse{}, fmt.Errorf("%w: truncated CHALLENGE_AUTH", ErrMalformed)
	}
	r := ChallengeAuthResponse{Header: h, Slot: h.Param1}
	copy(r.Nonce[:], b[off:off+NonceLen])
	off += NonceLen
	r.CertChainHash = append([]byte(nil), b[off:off+hashLen]...)
	off += hashLen

	summaryLen := int(le16(b[off : off+2]))
	off += 2
	if len(b) < off+summaryLen+2 {
		return ChallengeAuthResponse{}, fmt.Errorf("%w: CHALLENGE_AUTH measurement summary overruns buffer", ErrMalformed)
	}
	if summaryLen > 0 {
		r.MeasurementSummaryHash = append([]byte(nil), b[off:off+summaryLen]...)
	}
	off += summaryLen

	opaqueLen := int(le16(b[off : off+2]))
	off += 2
	if len(b) < off+opaqueLen+sigLen {
		return ChallengeAuthResponse{}, fmt.Errorf("%w: CHALLENGE_AUTH opaque/signature overruns buffer", ErrMalformed)
	}
	if opaqueLen > 0 {
		r.OpaqueData = append([]byte(nil), b[off:off+opaqueLen]...)
	}
	off += opaqueLen
	r.Signature = append([]byte(nil), b[off:off+sigLen]...)
	return r, nil
}
