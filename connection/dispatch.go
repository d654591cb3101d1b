package connection

import (
	"context"
	"fmt"
	"time"

	"github.com/openspdm/spdm-go/internal/logger"
	"github.com/openspdm/spdm-go/internal/metrics"
	"github.com/openspdm/spdm-go/wire"
)

func (c *Context) defaultHandlers() map[wire.RequestResponseCode]Handler {
	return map[wire.RequestResponseCode]Handler{
		wire.CodeGetVersion:            handleGetVersion,
		wire.CodeGetCapabilities:       handleGetCapabilities,
		wire.CodeNegotiateAlgorithms:   handleNegotiateAlgorithms,
		wire.CodeGetDigests:            handleGetDigests,
		wire.CodeGetCertificate:        handleGetCertificate,
		wire.CodeChallenge:             handleChallenge,
		wire.CodeGetMeasurements:       handleGetMeasurements,
		wire.CodeRespondIfReady:        handleRespondIfReady,
		wire.CodeKeyExchange:           c.delegateToSessionEngine(func(s SessionEngine, ctx *Context, b []byte) ([]byte, error) { return s.HandleKeyExchange(ctx, b) }),
		wire.CodePSKExchange:           c.delegateToSessionEngine(func(s SessionEngine, ctx *Context, b []byte) ([]byte, error) { return s.HandlePSKExchange(ctx, b) }),
		wire.CodeFinish:                c.delegateToSessionEngine(func(s SessionEngine, ctx *Context, b []byte) ([]byte, error) { return s.HandleFinish(ctx, b) }),
		wire.CodePSKFinish:             c.delegateToSessionEngine(func(s SessionEngine, ctx *Context, b []byte) ([]byte, error) { return s.HandlePSKFinish(ctx, b) }),
		wire.CodeKeyUpdate:             c.delegateToSessionScoped(func(s SessionEngine, ctx *Context, id uint32, b []byte) ([]byte, error) { return s.HandleKeyUpdate(ctx, id, b) }),
		wire.CodeEndSession:            c.delegateToSessionScoped(func(s SessionEngine, ctx *Context, id uint32, b []byte) ([]byte, error) { return s.HandleEndSession(ctx, id, b) }),
		wire.CodeHeartbeat:             c.delegateToSessionScoped(func(s SessionEngine, ctx *Context, id uint32, b []byte) ([]byte, error) { return s.HandleHeartbeat(ctx, id, b) }),
	}
}

func (c *Context) delegateToSessionEngine(call func(SessionEngine, *Context, []byte) ([]byte, error)) Handler {
	return func(c *Context, body []byte) ([]byte, error) {
		if c.Sessions == nil {
			return nil, fmt.Errorf("connection: no session engine attached")
		}
		return call(c.Sessions, c, body)
	}
}

// delegateToSessionScoped wraps a SessionEngine method keyed by session_id.
// HandleRequest itself only sees opcode and body; callers driving a
// transport with in-session framing (transport.Message.SessionID) are
// expected to route session-scoped opcodes to HandleSessionRequest instead
// of HandleRequest so the session ID survives the dispatch.
func (c *Context) delegateToSessionScoped(call func(SessionEngine, *Context, uint32, []byte) ([]byte, error)) Handler {
	return func(c *Context, body []byte) ([]byte, error) {
		if c.Sessions == nil {
			return nil, fmt.Errorf("connection: no session engine attached")
		}
		c.mu.RLock()
		sessionID := c.currentSessionID
		c.mu.RUnlock()
		return call(c.Sessions, c, sessionID, body)
	}
}

// HandleSessionRequest is HandleRequest for a message delivered inside an
// established session (transport.Message.InSession); sessionID threads
// through to KEY_UPDATE, END_SESSION, and HEARTBEAT handlers, none of
// which otherwise appear on the wire.
func (c *Context) HandleSessionRequest(ctx context.Context, sessionID uint32, requestBytes []byte) []byte {
	c.mu.Lock()
	c.currentSessionID = sessionID
	c.mu.Unlock()
	return c.HandleRequest(ctx, requestBytes)
}

// HandleRequest is the responder's single entry point: it decodes the
// header, applies response-state gating, looks up the opcode in the
// dispatch table, and returns the wire bytes to send back. It has no error
// return: every failure is reported as ERROR-encoded response bytes.
func (c *Context) HandleRequest(ctx context.Context, requestBytes []byte) []byte {
	start := time.Now()
	h, _, err := wire.DecodeHeader(requestBytes)
	if err != nil {
		c.Log.Warn("malformed request header", logger.String("connection_id", c.ConnectionID), logger.Error(err))
		return encodeError(wire.ErrorCodeInvalidRequest, 0)
	}

	if resp, handled := c.applyResponseStateGate(h.RequestResponseCode, requestBytes); handled {
		return resp
	}

	handler, ok := c.dispatch[h.RequestResponseCode]
	if !ok {
		metrics.ConnectionErrors.WithLabelValues(c.phaseLabel(), "unsupported_request").Inc()
		return encodeError(wire.ErrorCodeUnsupportedRequest, byte(h.RequestResponseCode))
	}

	resp, err := handler(c, requestBytes)
	if err != nil {
		metrics.ConnectionErrors.WithLabelValues(c.phaseLabel(), "handler_error").Inc()
		c.Log.Error("request handler failed", logger.String("connection_id", c.ConnectionID), logger.String("opcode", h.RequestResponseCode.String()), logger.Error(err))
		return encodeError(wire.ErrorCodeUnspecified, 0)
	}

	metrics.ConnectionPhases.WithLabelValues(c.phaseLabel(), c.Role.String(), "success").Inc()
	metrics.ConnectionDuration.WithLabelValues(c.phaseLabel(), c.Role.String()).Observe(time.Since(start).Seconds())
	return resp
}

// phaseLabel names the current connection_state for metrics, independent
// of which specific opcode just ran.
func (c *Context) phaseLabel() string {
	return c.getState().String()
}

func encodeError(code wire.ErrorCode, data byte) []byte {
	return wire.EncodeErrorResponse(wire.ErrorResponse{Code: code, Data: data})
}

// applyResponseStateGate implements spec.md §4.4's response-state
// machine: Busy rejects everything, NeedResync rejects and resets,
// NotReady only accepts RESPOND_IF_READY (handled by the dispatch table
// itself), and ProcessingEncap rejects any non-encapsulated traffic.
func (c *Context) applyResponseStateGate(opcode wire.RequestResponseCode, raw []byte) ([]byte, bool) {
	c.mu.RLock()
	state := c.ResponseState
	c.mu.RUnlock()

	switch state {
	case ResponseBusy:
		metrics.ResponseStateTransitions.WithLabelValues("busy").Inc()
		return encodeError(wire.ErrorCodeBusy, 0), true
	case ResponseNeedResync:
		metrics.ResponseStateTransitions.WithLabelValues("need_resync").Inc()
		c.Reset()
		return encodeError(wire.ErrorCodeRequestResynch, 0), true
	case ResponseProcessingEncap:
		if opcode == wire.CodeDeliverEncapResp || opcode == wire.CodeGetEncapRequest {
			return nil, false
		}
		metrics.ResponseStateTransitions.WithLabelValues("processing_encap").Inc()
		return encodeError(wire.ErrorCodeRequestInFlight, 0), true
	case ResponseNotReady:
		if opcode == wire.CodeRespondIfReady {
			return nil, false
		}
		// A fresh, different request while a NOT_READY reply is still
		// outstanding replaces the pending entry: mint a new token, cache
		// this request, and defer it in turn, per spec.md §9 Open Question
		// 1's resolution (only a RESPOND_IF_READY itself leaves current_token
		// and the cached entry untouched).
		metrics.ResponseStateTransitions.WithLabelValues("not_ready_deferred").Inc()
		return c.deferWithNotReady(opcode, raw), true
	default:
		return nil, false
	}
}

// deferWithNotReady puts the engine into ResponseNotReady, caches req for
// a later RESPOND_IF_READY replay, and returns the ERROR(RESPONSE_NOT_READY)
// bytes to send immediately.
func (c *Context) deferWithNotReady(opcode wire.RequestResponseCode, req []byte) []byte {
	token := c.nextToken()
	ext := wire.NotReadyExtendedData{RDExponent: 1, RequestCode: byte(opcode), Token: token, RDTM: 1}

	c.mu.Lock()
	c.ResponseState = ResponseNotReady
	c.pending = &PendingNotReady{RequestCode: opcode, Token: token, Request: append([]byte(nil), req...), Extended: ext}
	c.mu.Unlock()

	return wire.EncodeErrorResponse(wire.ErrorResponse{
		Code:         wire.ErrorCodeResponseNotReady,
		ExtendedData: &ext,
	})
}

// handleRespondIfReady replays the cached request that originally drew a
// RESPONSE_NOT_READY, provided RequestCode and Token match exactly.
func handleRespondIfReady(c *Context, body []byte) ([]byte, error) {
	req, err := wire.DecodeRespondIfReadyRequest(body)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	pending := c.pending
	if pending == nil || pending.RequestCode != wire.RequestResponseCode(req.RequestCode) || pending.Token != req.Token {
		c.mu.Unlock()
		return encodeError(wire.ErrorCodeInvalidRequest, 0), nil
	}
	c.pending = nil
	c.ResponseState = ResponseNormal
	cached := pending.Request
	opcode := pending.RequestCode
	c.mu.Unlock()

	handler, ok := c.dispatch[opcode]
	if !ok {
		return encodeError(wire.ErrorCodeUnsupportedRequest, byte(opcode)), nil
	}
	return handler(c, cached)
}
