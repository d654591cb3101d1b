package wire

import "fmt"

// CapabilityFlags mirrors the bitmask exchanged in GET_CAPABILITIES /
// CAPABILITIES (spec.md §6's CapabilityFlags config key).
type CapabilityFlags uint32

const (
	CapCertCap     CapabilityFlags = 1 << 1
	CapChalCap     CapabilityFlags = 1 << 2
	CapMeasCapBit0 CapabilityFlags = 1 << 3
	CapMeasCapBit1 CapabilityFlags = 1 << 4
	CapMutAuthCap  CapabilityFlags = 1 << 6
	CapKeyExCap    CapabilityFlags = 1 << 7
	CapEncryptCap  CapabilityFlags = 1 << 8
	CapMacCap      CapabilityFlags = 1 << 9
	CapPSKCap      CapabilityFlags = 1 << 11
	CapEncapCap    CapabilityFlags = 1 << 13
	CapHBeatCap    CapabilityFlags = 1 << 14
	CapKeyUpdCap   CapabilityFlags = 1 << 15
)

// GetCapabilitiesRequest carries the requester's CTExponent and flags.
// Versions before 1.1 carry only the header; the CTExponent/Flags fields
// were introduced in 1.1 per spec.md §4.4 step 2.
type GetCapabilitiesRequest struct {
	Header     MessageHeader
	CTExponent byte
	Flags      CapabilityFlags
}

func EncodeGetCapabilitiesRequest(r GetCapabilitiesRequest) []byte {
	r.Header.RequestResponseCode = CodeGetCapabilities
	out := r.Header.Encode(nil)
	if r.Header.Version.Major == 1 && r.Header.Version.Minor == 0 {
		return out
	}
	out = append(out, 0, 0, 0, r.CTExponent)
	out = putLE32(out, uint32(r.Flags))
	return out
}

func DecodeGetCapabilitiesRequest(b []byte) (GetCapabilitiesRequest, error) {
	h, n, err := DecodeHeader(b)
	if err != nil {
		return GetCapabilitiesRequest{}, err
	}
	if h.RequestResponseCode != CodeGetCapabilities {
		return GetCapabilitiesRequest{}, fmt.Errorf("%w: expected GET_CAPABILITIES, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	r := GetCapabilitiesRequest{Header: h}
	if h.Version.Major == 1 && h.Version.Minor == 0 {
		return r, nil
	}
	if len(b) < n+8 {
		return GetCapabilitiesRequest{}, fmt.Errorf("%w: truncated GET_CAPABILITIES", ErrMalformed)
	}
	r.CTExponent = b[n+3]
	r.Flags = CapabilityFlags(le32(b[n+4 : n+8]))
	return r, nil
}

// CapabilitiesResponse is the responder's mirror of GetCapabilitiesRequest.
type CapabilitiesResponse struct {
	Header     MessageHeader
	CTExponent byte
	Flags      CapabilityFlags
}

func EncodeCapabilitiesResponse(r CapabilitiesResponse) []byte {
	r.Header.RequestResponseCode = CodeCapabilities
	out := r.Header.Encode(nil)
	if r.Header.Version.Major == 1 && r.Header.Version.Minor == 0 {
		return out
	}
	out = append(out, 0, 0, 0, r.CTExponent)
	out = putLE32(out, uint32(r.Flags))
	return out
}

func DecodeCapabilitiesResponse(b []byte) (CapabilitiesResponse, error) {
	h, n, err := DecodeHeader(b)
	if err != nil {
		return CapabilitiesResponse{}, err
	}
	if h.RequestResponseCode != CodeCapabilities {
		return CapabilitiesResponse{}, fmt.Errorf("%w: expected CAPABILITIES, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	r := CapabilitiesResponse{Header: h}
	if h.Version.Major == 1 && h.Version.Minor == 0 {
		return r, nil
	}
	if len(b) < n+8 {
		return CapabilitiesResponse{}, fmt.Errorf("%w: truncated CAPABILITIES", ErrMalformed)
	}
	r.CTExponent = b[n+3]
	r.Flags = CapabilityFlags(le32(b[n+4 : n+8]))
	return r, nil
}
