package wire

import "fmt"

// VersionEntry is one entry of the VERSION response's version list.
type VersionEntry struct {
	Alpha         byte
	UpdateVersion byte
	Minor         byte
	Major         byte
}

func (e VersionEntry) Version() Version {
	return Version{Major: e.Major, Minor: e.Minor}
}

func (e VersionEntry) encode(dst []byte) []byte {
	b0 := e.Alpha | (e.UpdateVersion << 4)
	b1 := (e.Minor << 4) | (e.Major & 0x0F)
	return append(dst, b0, b1)
}

func decodeVersionEntry(b []byte) VersionEntry {
	return VersionEntry{
		Alpha:         b[0] & 0x0F,
		UpdateVersion: b[0] >> 4,
		Minor:         b[1] >> 4,
		Major:         b[1] & 0x0F,
	}
}

// GetVersionRequest carries no payload beyond the header.
type GetVersionRequest struct {
	Header MessageHeader
}

func EncodeGetVersionRequest(req GetVersionRequest) []byte {
	req.Header.RequestResponseCode = CodeGetVersion
	return req.Header.Encode(nil)
}

func DecodeGetVersionRequest(b []byte) (GetVersionRequest, error) {
	h, _, err := DecodeHeader(b)
	if err != nil {
		return GetVersionRequest{}, err
	}
	if h.RequestResponseCode != CodeGetVersion {
		return GetVersionRequest{}, fmt.Errorf("%w: expected GET_VERSION, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	return GetVersionRequest{Header: h}, nil
}

// VersionResponse carries the responder's ordered list of supported
// versions.
type VersionResponse struct {
	Header   MessageHeader
	Versions []VersionEntry
}

func EncodeVersionResponse(r VersionResponse) []byte {
	r.Header.RequestResponseCode = CodeVersion
	out := r.Header.Encode(nil)
	out = append(out, 0x00) // reserved
	out = append(out, byte(len(r.Versions)))
	for _, v := range r.Versions {
		out = v.encode(out)
	}
	return out
}

func DecodeVersionResponse(b []byte) (VersionResponse, error) {
	h, n, err := DecodeHeader(b)
	if err != nil {
		return VersionResponse{}, err
	}
	if h.RequestResponseCode != CodeVersion {
		return VersionResponse{}, fmt.Errorf("%w: expected VERSION, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	if len(b) < n+2 {
		return VersionResponse{}, fmt.Errorf("%w: truncated VERSION", ErrMalformed)
	}
	count := int(b[n+1])
	off := n + 2
	if len(b) < off+count*2 {
		return VersionResponse{}, fmt.Errorf("%w: VERSION entry count overruns buffer", ErrMalformed)
	}
	entries := make([]VersionEntry, count)
	for i := 0; i < count; i++ {
		entries[i] = decodeVersionEntry(b[off+i*2 : off+i*2+2])
	}
	return VersionResponse{Header: h, Versions: entries}, nil
}
