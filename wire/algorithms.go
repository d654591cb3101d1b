package wire

import "fmt"

// ReqAlgStruct is one self-describing algorithm-priority descriptor
// carried in NEGOTIATE_ALGORITHMS/ALGORITHMS, per spec.md §4.1's
// "reqalg_struct" constraint: each entry states its own supported-list
// length so the codec can reject malformed length sums without consulting
// connection state.
type ReqAlgStruct struct {
	AlgType      byte
	AlgSupported []uint16
}

func (s ReqAlgStruct) encode(dst []byte) []byte {
	dst = append(dst, s.AlgType, byte(len(s.AlgSupported)))
	for _, a := range s.AlgSupported {
		dst = putLE16(dst, a)
	}
	return dst
}

func decodeReqAlgStruct(b []byte) (ReqAlgStruct, int, error) {
	if len(b) < 2 {
		return ReqAlgStruct{}, 0, fmt.Errorf("%w: truncated reqalg_struct", ErrMalformed)
	}
	algType := b[0]
	count := int(b[1])
	need := 2 + count*2
	if len(b) < need {
		return ReqAlgStruct{}, 0, fmt.Errorf("%w: reqalg_struct declares %d entries but buffer is short", ErrMalformed, count)
	}
	entries := make([]uint16, count)
	for i := 0; i < count; i++ {
		entries[i] = le16(b[2+i*2 : 4+i*2])
	}
	return ReqAlgStruct{AlgType: algType, AlgSupported: entries}, need, nil
}

// NegotiateAlgorithmsRequest carries the requester's proposed algorithm
// sets for every category.
type NegotiateAlgorithmsRequest struct {
	Header          MessageHeader
	MeasurementSpec byte
	BaseAsymAlgo    uint32
	BaseHashAlgo    uint32
	ReqAlgStructs   []ReqAlgStruct
}

func EncodeNegotiateAlgorithmsRequest(r NegotiateAlgorithmsRequest) []byte {
	r.Header.RequestResponseCode = CodeNegotiateAlgorithms
	r.Header.Param1 = byte(len(r.ReqAlgStructs))
	out := r.Header.Encode(nil)
	out = append(out, r.MeasurementSpec, 0, 0, 0)
	out = putLE32(out, r.BaseAsymAlgo)
	out = putLE32(out, r.BaseHashAlgo)
	for _, s := range r.ReqAlgStructs {
		out = s.encode(out)
	}
	return out
}

func DecodeNegotiateAlgorithmsRequest(b []byte) (NegotiateAlgorithmsRequest, error) {
	h, n, err := DecodeHeader(b)
	if err != nil {
		return NegotiateAlgorithmsRequest{}, err
	}
	if h.RequestResponseCode != CodeNegotiateAlgorithms {
		return NegotiateAlgorithmsRequest{}, fmt.Errorf("%w: expected NEGOTIATE_ALGORITHMS, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	if len(b) < n+12 {
		return NegotiateAlgorithmsRequest{}, fmt.Errorf("%w: truncated NEGOTIATE_ALGORITHMS", ErrMalformed)
	}
	r := NegotiateAlgorithmsRequest{
		Header:          h,
		MeasurementSpec: b[n],
		BaseAsymAlgo:    le32(b[n+4 : n+8]),
		BaseHashAlgo:    le32(b[n+8 : n+12]),
	}
	off := n + 12
	for i := 0; i < int(h.Param1); i++ {
		s, consumed, err := decodeReqAlgStruct(b[off:])
		if err != nil {
			return NegotiateAlgorithmsRequest{}, err
		}
		r.ReqAlgStructs = append(r.ReqAlgStructs, s)
		off += consumed
	}
	return r, nil
}

// AlgorithmsResponse is the responder's single choice per category.
type AlgorithmsResponse struct {
	Header                 MessageHeader
	MeasurementSpecSel     byte
	MeasurementHashAlgoSel uint32
	BaseAsymSel            uint32
	BaseHashSel            uint32
	ReqAlgStructSel        []ReqAlgStruct
}

func EncodeAlgorithmsResponse(r AlgorithmsResponse) []byte {
	r.Header.RequestResponseCode = CodeAlgorithms
	r.Header.Param1 = byte(len(r.ReqAlgStructSel))
	out := r.Header.Encode(nil)
	out = append(out, r.MeasurementSpecSel, 0, 0, 0)
	out = putLE32(out, r.MeasurementHashAlgoSel)
	out = putLE32(out, r.BaseAsymSel)
	out = putLE32(out, r.BaseHashSel)
	for _, s := range r.ReqAlgStructSel {
		out = s.encode(out)
	}
	return out
}

func DecodeAlgorithmsResponse(b []byte) (AlgorithmsResponse, error) {
	h, n, err := DecodeHeader(b)
	if err != nil {
		return AlgorithmsResponse{}, err
	}
	if h.RequestResponseCode != CodeAlgorithms {
		return AlgorithmsResponse{}, fmt.Errorf("%w: expected ALGORITHMS, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	if len(b) < n+16 {
		return AlgorithmsResponse{}, fmt.Errorf("%w: truncated ALGORITHMS", ErrMalformed)
	}
	r := AlgorithmsResponse{
		Header:                 h,
		MeasurementSpecSel:     b[n],
		MeasurementHashAlgoSel: le32(b[n+4 : n+8]),
		BaseAsymSel:            le32(b[n+8 : n+12]),
		BaseHashSel:            le32(b[n+12 : n+16]),
	}
	off := n + 16
	for i := 0; i < int(h.Param1); i++ {
		s, consumed, err := decodeReqAlgStruct(b[off:])
		if err != nil {
			return AlgorithmsResponse{}, err
		}
		r.ReqAlgStructSel = append(r.ReqAlgStructSel, s)
		off += consumed
	}
	return r, nil
}
