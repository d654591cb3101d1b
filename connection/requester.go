package connection

import (
	"context"
	"fmt"
	"time"

	"github.com/openspdm/spdm-go/internal/metrics"
	"github.com/openspdm/spdm-go/transport"
	"github.com/openspdm/spdm-go/wire"
)

// requestSender abstracts one request/response round trip over the
// transport so each phase driver can be unit tested with a fake sender
// instead of a full transport.Transport.
type requestSender func(req []byte) (resp []byte, err error)

// NewTransportSender builds a requestSender backed by t, applying timeout
// to the Receive call and translating an ERROR response into a Go error
// via decodeErrorResponse.
func NewTransportSender(ctx context.Context, t transport.Transport, timeout time.Duration) requestSender {
	return func(req []byte) ([]byte, error) {
		if err := t.Send(ctx, transport.Message{Data: req}); err != nil {
			return nil, err
		}
		msg, err := t.Receive(ctx, timeout)
		if err != nil {
			return nil, err
		}
		if err := decodeErrorResponse(msg.Data); err != nil {
			return nil, err
		}
		return msg.Data, nil
	}
}

// decodeErrorResponse returns a Go error when raw is an ERROR message,
// nil otherwise. RESPONSE_NOT_READY is surfaced as *NotReadyError so a
// caller can implement the RESPOND_IF_READY retry loop.
func decodeErrorResponse(raw []byte) error {
	h, _, err := wire.DecodeHeader(raw)
	if err != nil || h.RequestResponseCode != wire.CodeError {
		return nil
	}
	resp, err := wire.DecodeErrorResponse(raw)
	if err != nil {
		return err
	}
	if resp.Code == wire.ErrorCodeResponseNotReady && resp.ExtendedData != nil {
		return &NotReadyError{Extended: *resp.ExtendedData}
	}
	return &RemoteError{Code: resp.Code, Data: resp.Data}
}

// RemoteError wraps a peer ERROR response that isn't RESPONSE_NOT_READY.
type RemoteError struct {
	Code wire.ErrorCode
	Data byte
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("connection: peer returned ERROR(%s, data=0x%02x)", e.Code, e.Data)
}

// NotReadyError wraps ERROR(RESPONSE_NOT_READY); RetryAfter reports the
// wait the responder asked for before a RESPOND_IF_READY retry
// (RDTM × 2^RDExponent microseconds).
type NotReadyError struct {
	Extended wire.NotReadyExtendedData
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("connection: peer deferred request 0x%02x (token %d)", e.Extended.RequestCode, e.Extended.Token)
}

// RetryAfter returns RDTM × 2^RDExponent microseconds.
func (e *NotReadyError) RetryAfter() time.Duration {
	return time.Duration(e.Extended.RDTM) * (1 << e.Extended.RDExponent) * time.Microsecond
}

// Connect runs the full connection-establishment sequence from spec.md
// §4.4 as the requester: VERSION, CAPABILITIES, NEGOTIATE_ALGORITHMS,
// GET_DIGESTS/GET_CERTIFICATE for every slot DIGESTS reports, and
// CHALLENGE against authSlot. trustAnchors supplies the trust root DER
// bytes per slot; a nil entry skips chain verification for that slot.
func (c *Context) Connect(ctx context.Context, timeout time.Duration, authSlot byte, trustAnchors [maxSlots][]byte) error {
	send := NewTransportSender(ctx, c.Transport, timeout)
	start := time.Now()

	if err := c.NegotiateVersion(send, c.LocalVersion); err != nil {
		metrics.ConnectionErrors.WithLabelValues("version", "version_mismatch").Inc()
		return err
	}
	if err := c.NegotiateCapabilities(send); err != nil {
		metrics.ConnectionErrors.WithLabelValues("capabilities", "negotiation_failed").Inc()
		return err
	}
	if err := c.NegotiateAlgorithms(send); err != nil {
		metrics.ConnectionErrors.WithLabelValues("algorithms", "no_common_algorithm").Inc()
		return err
	}

	slotMask, err := c.GetDigests(send)
	if err != nil {
		metrics.ConnectionErrors.WithLabelValues("digests", "request_failed").Inc()
		return err
	}
	for slot := 0; slot < maxSlots; slot++ {
		if slotMask&(1<<uint(slot)) == 0 {
			continue
		}
		if _, err := c.GetCertificate(send, byte(slot)); err != nil {
			metrics.ConnectionErrors.WithLabelValues("certificate", "request_failed").Inc()
			return err
		}
		if anchor := trustAnchors[slot]; anchor != nil {
			if err := c.VerifyPeerCertChain(byte(slot), anchor); err != nil {
				metrics.ConnectionErrors.WithLabelValues("certificate", "chain_invalid").Inc()
				return err
			}
		}
	}

	if err := c.Challenge(send, authSlot); err != nil {
		metrics.ConnectionErrors.WithLabelValues("challenge", "auth_failed").Inc()
		return err
	}

	metrics.ConnectionPhases.WithLabelValues("connect", c.Role.String(), "success").Inc()
	metrics.ConnectionDuration.WithLabelValues("connect", c.Role.String()).Observe(time.Since(start).Seconds())
	c.Log.Info("connection established")
	return nil
}
