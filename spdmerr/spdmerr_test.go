package spdmerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndUnwrap(t *testing.T) {
	cause := errors.New("tag mismatch")
	err := New(SecurityViolation, "record.Open", cause)

	require.Error(t, err)
	assert.Equal(t, SecurityViolation, err.Kind)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "SecurityViolation")
	assert.Contains(t, err.Error(), "record.Open")
}

func TestTooSmall(t *testing.T) {
	err := TooSmall("wire.DecodeCertificate", 4096)
	assert.Equal(t, BufferTooSmall, err.Kind)
	assert.Equal(t, 4096, err.RequiredSize)
}

func TestIs(t *testing.T) {
	err := New(Unsupported, "connection.NegotiateAlgorithms", nil)
	assert.True(t, Is(err, Unsupported))
	assert.False(t, Is(err, SecurityViolation))
	assert.False(t, Is(errors.New("plain"), Unsupported))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, Success, KindOf(nil))
	assert.Equal(t, DeviceError, KindOf(errors.New("timeout")))
	assert.Equal(t, InvalidParameter, KindOf(New(InvalidParameter, "op", nil)))
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		Success:              "Success",
		DeviceError:          "DeviceError",
		Unsupported:          "Unsupported",
		InvalidParameter:     "InvalidParameter",
		InvalidMessageField:  "InvalidMessageField",
		SecurityViolation:    "SecurityViolation",
		BufferTooSmall:       "BufferTooSmall",
		RequestIfReady:       "RequestIfReady",
		SessionRequired:      "SessionRequired",
		Kind(99):             "Unknown",
	}
	for k, want := range cases {
		assert.Equal(t, want, k.String())
	}
}
