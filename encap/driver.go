// Package encap implements spec.md §4.6's encapsulated-request
// sub-protocol: a Responder-originated SPDM request tunneled inside the
// Requester's polling responses, used typically so the Responder can ask
// for the Requester's own certificate chain during mutual authentication
// without opening a reverse transport channel.
package encap

import (
	"context"
	"errors"
	"sync"

	"github.com/openspdm/spdm-go/connection"
	"github.com/openspdm/spdm-go/spdmerr"
	"github.com/openspdm/spdm-go/wire"
)

var (
	errNoEncapPending   = spdmerr.New(spdmerr.InvalidMessageField, "GetEncapsulatedRequest", errors.New("no encapsulated request queued"))
	errUnknownRequestID = spdmerr.New(spdmerr.InvalidMessageField, "DeliverEncapsulatedResponse", errors.New("request_id does not match any issued request"))
	errNestedEncap      = spdmerr.New(spdmerr.InvalidMessageField, "Drive", errors.New("encapsulated request received while already processing one"))
)

type queuedRequest struct {
	body       []byte
	onResponse func(response []byte)
}

// Driver owns one Context's encapsulated-request state, on whichever side
// needs it: a Responder queues requests and serves GET_ENCAPSULATED_REQUEST/
// DELIVER_ENCAPSULATED_RESPONSE; a Requester drives the poll loop and
// answers the embedded request using its own Context.HandleRequest.
type Driver struct {
	mu sync.Mutex
	c  *connection.Context

	inEncap bool

	queue  []queuedRequest
	nextID byte
	active map[byte]queuedRequest
}

// NewDriver attaches a Driver to c. If c is a Responder Context, it
// registers the GET_ENCAPSULATED_REQUEST and DELIVER_ENCAPSULATED_RESPONSE
// handlers so Enqueue's requests are actually servable.
func NewDriver(c *connection.Context) *Driver {
	d := &Driver{c: c, active: make(map[byte]queuedRequest)}
	if c.Role == connection.RoleResponder {
		c.RegisterHandler(wire.CodeGetEncapRequest, d.handleGetEncapsulatedRequest)
		c.RegisterHandler(wire.CodeDeliverEncapResp, d.handleDeliverEncapsulatedResponse)
	}
	return d
}

// Enqueue is the Responder-side entry point: body is one embedded SPDM
// request (header included) to tunnel to the peer. onResponse runs with
// the embedded reply payload once DELIVER_ENCAPSULATED_RESPONSE arrives.
// The first Enqueue call moves the connection into ResponseProcessingEncap
// so ordinary traffic is rejected until the exchange drains.
func (d *Driver) Enqueue(body []byte, onResponse func(response []byte)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 && len(d.active) == 0 {
		d.c.SetResponseState(connection.ResponseProcessingEncap)
	}
	d.queue = append(d.queue, queuedRequest{body: body, onResponse: onResponse})
}

func (d *Driver) handleGetEncapsulatedRequest(c *connection.Context, body []byte) ([]byte, error) {
	if _, err := wire.DecodeGetEncapsulatedRequestRequest(body); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queue) == 0 {
		return nil, errNoEncapPending
	}
	item := d.queue[0]
	d.queue = d.queue[1:]
	d.nextID++
	id := d.nextID
	d.active[id] = item
	return wire.EncodeEncapsulatedRequestResponse(wire.EncapsulatedRequestResponse{RequestID: id, Payload: item.body}), nil
}

func (d *Driver) handleDeliverEncapsulatedResponse(c *connection.Context, body []byte) ([]byte, error) {
	req, err := wire.DecodeDeliverEncapsulatedResponseRequest(body)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	item, ok := d.active[req.RequestID]
	if !ok {
		d.mu.Unlock()
		return nil, errUnknownRequestID
	}
	delete(d.active, req.RequestID)

	ack := wire.EncapsulatedResponseAckResponse{Terminate: true}
	if len(d.queue) > 0 {
		next := d.queue[0]
		d.queue = d.queue[1:]
		d.nextID++
		d.active[d.nextID] = next
		ack = wire.EncapsulatedResponseAckResponse{RequestID: d.nextID, Terminate: false, Payload: next.body}
	} else if len(d.active) == 0 {
		c.SetResponseState(connection.ResponseNormal)
	}
	d.mu.Unlock()

	item.onResponse(req.Payload)
	return wire.EncodeEncapsulatedResponseAckResponse(ack), nil
}

// Drive is the Requester-side loop: it issues GET_ENCAPSULATED_REQUEST,
// answers the embedded request through c's own dispatch, delivers the
// reply, and keeps following ENCAPSULATED_RESPONSE_ACK's embedded next
// request until the peer sets Terminate. Guarded by inEncap against
// nesting: an embedded request that is itself GET_ENCAPSULATED_REQUEST or
// DELIVER_ENCAPSULATED_RESPONSE is refused rather than recursed into, per
// spec.md §9's "at most one encap level" design note.
func (d *Driver) Drive(ctx context.Context, send func(req []byte) ([]byte, error)) error {
	d.mu.Lock()
	if d.inEncap {
		d.mu.Unlock()
		return errNestedEncap
	}
	d.inEncap = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.inEncap = false
		d.mu.Unlock()
	}()

	rspBytes, err := send(wire.EncodeGetEncapsulatedRequestRequest(wire.GetEncapsulatedRequestRequest{}))
	if err != nil {
		return err
	}
	rsp, err := wire.DecodeEncapsulatedRequestResponse(rspBytes)
	if err != nil {
		return err
	}

	requestID, payload := rsp.RequestID, rsp.Payload
	for {
		if isEncapOpcode(payload) {
			return errNestedEncap
		}
		reply := d.c.HandleRequest(ctx, payload)

		ackBytes, err := send(wire.EncodeDeliverEncapsulatedResponseRequest(wire.DeliverEncapsulatedResponseRequest{RequestID: requestID, Payload: reply}))
		if err != nil {
			return err
		}
		ack, err := wire.DecodeEncapsulatedResponseAckResponse(ackBytes)
		if err != nil {
			return err
		}
		if ack.Terminate {
			return nil
		}
		requestID, payload = ack.RequestID, ack.Payload
	}
}

func isEncapOpcode(body []byte) bool {
	h, _, err := wire.DecodeHeader(body)
	if err != nil {
		return false
	}
	return h.RequestResponseCode == wire.CodeGetEncapRequest || h.RequestResponseCode == wire.CodeDeliverEncapResp
}
