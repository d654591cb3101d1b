package wire

import "fmt"

// Reserved measurement indices per spec.md §4.4.
const (
	MeasurementIndexTotalCount byte = 0x00
	MeasurementIndexAll        byte = 0xFF
)

const attrSignatureRequested byte = 0x01

// GetMeasurementsRequest asks for one measurement block (or the total
// count, or all blocks) optionally signed over a fresh nonce.
type GetMeasurementsRequest struct {
	Header           MessageHeader
	Slot             byte
	Operation        byte
	RequestSignature bool
	Nonce            [NonceLen]byte
}

func EncodeGetMeasurementsRequest(r GetMeasurementsRequest) []byte {
	r.Header.RequestResponseCode = CodeGetMeasurements
	r.Header.Param2 = r.Operation
	if r.RequestSignature {
		r.Header.Param1 = attrSignatureRequested
	} else {
		r.Header.Param1 = 0
	}
	out := r.Header.Encode(nil)
	out = append(out, r.Slot)
	if r.RequestSignature {
		out = append(out, r.Nonce[:]...)
	}
	return out
}

func DecodeGetMeasurementsRequest(b []byte) (GetMeasurementsRequest, error) {
	h, n, err := DecodeHeader(b)
	if err != nil {
		return GetMeasurementsRequest{}, err
	}
	if h.RequestResponseCode != CodeGetMeasurements {
		return GetMeasurementsRequest{}, fmt.Errorf("%w: expected GET_MEASUREMENTS, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	if len(b) < n+1 {
		return GetMeasurementsRequest{}, fmt.Errorf("%w: truncated GET_MEASUREMENTS", ErrMalformed)
	}
	r := GetMeasurementsRequest{
		Header:           h,
		Slot:             b[n],
		Operation:        h.Param2,
		RequestSignature: h.Param1&attrSignatureRequested != 0,
	}
	if r.RequestSignature {
		if len(b) < n+1+NonceLen {
			return GetMeasurementsRequest{}, fmt.Errorf("%w: GET_MEASUREMENTS missing nonce", ErrMalformed)
		}
		copy(r.Nonce[:], b[n+1:n+1+NonceLen])
	}
	return r, nil
}

// MeasurementBlock is one self-describing measurement entry.
type MeasurementBlock struct {
	Index               byte
	MeasurementSpec     byte
	MeasurementData     []byte
}

func (m MeasurementBlock) encode(dst []byte) []byte {
	dst = append(dst, m.Index, m.MeasurementSpec)
	dst = putLE16(dst, uint16(len(m.MeasurementData)))
	return append(dst, m.MeasurementData...)
}

func decodeMeasurementBlock(b []byte) (MeasurementBlock, int, error) {
	if len(b) < 4 {
		return MeasurementBlock{}, 0, fmt.Errorf("%w: truncated measurement block", ErrMalformed)
	}
	size := int(le16(b[2:4]))
	if len(b) < 4+size {
		return MeasurementBlock{}, 0, fmt.Errorf("%w: measurement block size %d overruns buffer", ErrMalformed, size)
	}
	return MeasurementBlock{
		Index:           b[0],
		MeasurementSpec: b[1],
		MeasurementData: append([]byte(nil), b[4:4+size]...),
	}, 4 + size, nil
}

// MeasurementsResponse carries either a raw block list or a signed block
// list (nonce + signature), never both at once.
type MeasurementsResponse struct {
	Header     MessageHeader
	Blocks     []MeasurementBlock
	Nonce      [NonceLen]byte
	OpaqueData []byte
	Signature  []byte
	Signed     bool
}

func EncodeMeasurementsResponse(r MeasurementsResponse) []byte {
	r.Header.RequestResponseCode = CodeMeasurements
	r.Header.Param1 = byte(len(r.Blocks))
	out := r.Header.Encode(nil)
	out = putLE16(out, uint16(measurementRecordLen(r.Blocks)))
	for _, blk := range r.Blocks {
		out = blk.encode(out)
	}
	if r.Signed {
		out = append(out, r.Nonce[:]...)
	}
	out = putLE16(out, uint16(len(r.OpaqueData)))
	out = append(out, r.OpaqueData...)
	if r.Signed {
		out = append(out, r.Signature...)
	}
	return out
}

// EncodeMeasurementsResponseUnsigned returns the bytes preceding the
// signature field, matching transcript L's "minus signature being
// verified" carve-out (spec.md §3).
func EncodeMeasurementsResponseUnsigned(r MeasurementsResponse) []byte {
	r.Signature = nil
	return EncodeMeasurementsResponse(r)
}

func measurementRecordLen(blocks []MeasurementBlock) int {
	n := 0
	for _, b := range blocks {
		n += 4 + len(b.MeasurementData)
	}
	return n
}

func DecodeMeasurementsResponse(b []byte, signed bool, sigLen int) (MeasurementsResponse, error) {
	h, n, err := DecodeHeader(b)
	if err != nil {
		return MeasurementsResponse{}, err
	}
	if h.RequestResponseCode != CodeMeasurements {
		return MeasurementsResponse{}, fmt.Errorf("%w: expected MEASUREMENTS, got %s", ErrUnsupportedOpcode, h.RequestResponseCode)
	}
	if len(b) < n+2 {
		return MeasurementsResponse{}, fmt.Errorf("%w: truncated MEASUREMENTS", ErrMalformed)
	}
	recordLen := int(le16(b[n : n+2]))
	off := n + 2
	if len(b) < off+recordLen {
		return MeasurementsResponse{}, fmt.Errorf("%w: MEASUREMENTS record_length %d overruns buffer", ErrMalformed, recordLen)
	}
	r := MeasurementsResponse{Header: h, Signed: signed}
	recordEnd := off + recordLen
	for off < recordEnd {
		blk, consumed, err := decodeMeasurementBlock(b[off:recordEnd])
		if err != nil {
			return MeasurementsResponse{}, err
		}
		r.Blocks = append(r.Blocks, blk)
		off += consumed
	}
	if int(h.Param1) != len(r.Blocks) {
		return MeasurementsResponse{}, fmt.Errorf("%w: MEASUREMENTS NumberOfBlocks mismatch", ErrMalformed)
	}
	if signed {
		if len(b) < off+NonceLen {
			return MeasurementsResponse{}, fmt.Errorf("%w: MEASUREMENTS missing nonce", ErrMalformed)
		}
		copy(r.Nonce[:], b[off:off+NonceLen])
		off += NonceLen
	}
	if len(b) < off+2 {
		return MeasurementsResponse{}, fmt.Errorf("%w: MEASUREMENTS missing opaque length", ErrMalformed)
	}
	opaqueLen := int(le16(b[off : off+2]))
	off += 2
	if len(b) < off+opaqueLen {
		return MeasurementsResponse{}, fmt.Errorf("%w: MEASUREMENTS opaque_data overruns buffer", ErrMalformed)
	}
	if opaqueLen > 0 {
		r.OpaqueData = append([]byte(nil), b[off:off+opaqueLen]...)
	}
	off += opaqueLen
	if signed {
		if len(b) < off+sigLen {
			return MeasurementsResponse{}, fmt.Errorf("%w: MEASUREMENTS missing signature", ErrMalformed)
		}
		r.Signature = append([]byte(nil), b[off:off+sigLen]...)
	}
	return r, nil
}
