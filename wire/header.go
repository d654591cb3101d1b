// Package wire implements the SPDM message codec: bit-exact encode/decode
// pairs for every message variant defined by DSP0274. The codec never
// consults connection or session state — callers in connection/session
// decide which codec to invoke and what the resulting bytes mean.
package wire

import (
	"encoding/binary"
	"fmt"
)

// RequestResponseCode identifies an SPDM message's opcode, carried in byte
// offset 1 of every message header.
type RequestResponseCode byte

const (
	CodeGetDigests        RequestResponseCode = 0x81
	CodeGetCertificate    RequestResponseCode = 0x82
	CodeChallenge         RequestResponseCode = 0x83
	CodeGetVersion        RequestResponseCode = 0x84
	CodeGetMeasurements   RequestResponseCode = 0xE0
	CodeGetCapabilities   RequestResponseCode = 0xE1
	CodeNegotiateAlgorithms RequestResponseCode = 0xE3
	CodeKeyExchange       RequestResponseCode = 0xE4
	CodeFinish            RequestResponseCode = 0xE5
	CodePSKExchange       RequestResponseCode = 0xE6
	CodePSKFinish         RequestResponseCode = 0xE7
	CodeGetEncapRequest   RequestResponseCode = 0xE8
	CodeKeyUpdate         RequestResponseCode = 0xE9
	CodeDeliverEncapResp  RequestResponseCode = 0xEA
	CodeEndSession        RequestResponseCode = 0xEC
	CodeHeartbeat         RequestResponseCode = 0xEF
	CodeVendorDefinedReq  RequestResponseCode = 0xFE
	CodeRespondIfReady    RequestResponseCode = 0xFF

	CodeDigests            RequestResponseCode = 0x01
	CodeCertificate        RequestResponseCode = 0x02
	CodeChallengeAuth      RequestResponseCode = 0x03
	CodeVersion            RequestResponseCode = 0x04
	CodeMeasurements       RequestResponseCode = 0x60
	CodeCapabilities       RequestResponseCode = 0x61
	CodeAlgorithms         RequestResponseCode = 0x63
	CodeKeyExchangeRsp     RequestResponseCode = 0x64
	CodeFinishRsp          RequestResponseCode = 0x65
	CodePSKExchangeRsp     RequestResponseCode = 0x66
	CodePSKFinishRsp       RequestResponseCode = 0x67
	CodeEncapRequest       RequestResponseCode = 0x68
	CodeKeyUpdateAck       RequestResponseCode = 0x69
	CodeEncapResponseAck   RequestResponseCode = 0x6A
	CodeEndSessionAck      RequestResponseCode = 0x6C
	CodeHeartbeatAck       RequestResponseCode = 0x6F
	CodeVendorDefinedRsp   RequestResponseCode = 0x7E
	CodeError              RequestResponseCode = 0x7F
)

func (c RequestResponseCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("RequestResponseCode(0x%02X)", byte(c))
}

var codeNames = map[RequestResponseCode]string{
	CodeGetDigests:          "GET_DIGESTS",
	CodeGetCertificate:      "GET_CERTIFICATE",
	CodeChallenge:           "CHALLENGE",
	CodeGetVersion:          "GET_VERSION",
	CodeGetMeasurements:     "GET_MEASUREMENTS",
	CodeGetCapabilities:     "GET_CAPABILITIES",
	CodeNegotiateAlgorithms: "NEGOTIATE_ALGORITHMS",
	CodeKeyExchange:         "KEY_EXCHANGE",
	CodeFinish:              "FINISH",
	CodePSKExchange:         "PSK_EXCHANGE",
	CodePSKFinish:           "PSK_FINISH",
	CodeGetEncapRequest:     "GET_ENCAPSULATED_REQUEST",
	CodeKeyUpdate:           "KEY_UPDATE",
	CodeDeliverEncapResp:    "DELIVER_ENCAPSULATED_RESPONSE",
	CodeEndSession:          "END_SESSION",
	CodeHeartbeat:           "HEARTBEAT",
	CodeVendorDefinedReq:    "VENDOR_DEFINED_REQUEST",
	CodeRespondIfReady:      "RESPOND_IF_READY",
	CodeDigests:             "DIGESTS",
	CodeCertificate:         "CERTIFICATE",
	CodeChallengeAuth:       "CHALLENGE_AUTH",
	CodeVersion:             "VERSION",
	CodeMeasurements:        "MEASUREMENTS",
	CodeCapabilities:        "CAPABILITIES",
	CodeAlgorithms:          "ALGORITHMS",
	CodeKeyExchangeRsp:      "KEY_EXCHANGE_RSP",
	CodeFinishRsp:           "FINISH_RSP",
	CodePSKExchangeRsp:      "PSK_EXCHANGE_RSP",
	CodePSKFinishRsp:        "PSK_FINISH_RSP",
	CodeEncapRequest:        "ENCAPSULATED_REQUEST",
	CodeKeyUpdateAck:        "KEY_UPDATE_ACK",
	CodeEncapResponseAck:    "ENCAPSULATED_RESPONSE_ACK",
	CodeEndSessionAck:       "END_SESSION_ACK",
	CodeHeartbeatAck:        "HEARTBEAT_ACK",
	CodeVendorDefinedRsp:    "VENDOR_DEFINED_RESPONSE",
	CodeError:               "ERROR",
}

// IsResponse reports whether the code belongs to the responder-originated
// half of the opcode space.
func (c RequestResponseCode) IsResponse() bool {
	return c < 0x80
}

// Version is the two-nibble SPDM protocol version (major.minor), encoded
// on the wire as a single byte with the major in the high nibble.
type Version struct {
	Major uint8
	Minor uint8
}

func (v Version) Byte() byte {
	return (v.Major << 4) | (v.Minor & 0x0F)
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Less reports whether v precedes other.
func (v Version) Less(other Version) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	return v.Minor < other.Minor
}

func versionFromByte(b byte) Version {
	return Version{Major: b >> 4, Minor: b & 0x0F}
}

// MessageHeader is the fixed four-byte prefix shared by every SPDM
// message: version, opcode, and two opcode-specific parameter bytes.
type MessageHeader struct {
	Version             Version
	RequestResponseCode RequestResponseCode
	Param1              byte
	Param2              byte
}

const HeaderLen = 4

// Encode appends the header's wire bytes to dst and returns the result.
func (h MessageHeader) Encode(dst []byte) []byte {
	return append(dst, h.Version.Byte(), byte(h.RequestResponseCode), h.Param1, h.Param2)
}

// DecodeHeader parses the fixed header prefix from b, returning the header
// and the number of bytes consumed.
func DecodeHeader(b []byte) (MessageHeader, int, error) {
	if len(b) < HeaderLen {
		return MessageHeader{}, 0, fmt.Errorf("%w: header needs %d bytes, got %d", ErrMalformed, HeaderLen, len(b))
	}
	h := MessageHeader{
		Version:             versionFromByte(b[0]),
		RequestResponseCode: RequestResponseCode(b[1]),
		Param1:              b[2],
		Param2:              b[3],
	}
	return h, HeaderLen, nil
}

// le16 and le32 are small helpers kept local to this package so every
// message file shares one little-endian convention, matching spec.md's
// "all multi-byte fields are little-endian" rule.
func le16(b []byte) uint16 { return binary.LittleEndian.Uint16(b) }
func le32(b []byte) uint32 { return binary.LittleEndian.Uint32(b) }

func putLE16(dst []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(dst, tmp[:]...)
}

func putLE32(dst []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(dst, tmp[:]...)
}
