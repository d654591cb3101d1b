package wire

import "errors"

// Sentinel errors returned by codec functions, matching the teacher's
// convention of package-level errors.New values (crypto/types.go).
var (
	ErrMalformed          = errors.New("wire: malformed message")
	ErrUnsupportedVersion = errors.New("wire: unsupported version")
	ErrUnsupportedOpcode  = errors.New("wire: unsupported opcode")
	ErrReservedBitsSet    = errors.New("wire: reserved bits set")
)
