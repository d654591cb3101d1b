package connection

import (
	"github.com/openspdm/spdm-go/transcript"
	"github.com/openspdm/spdm-go/wire"
)

func handleGetCapabilities(c *Context, body []byte) ([]byte, error) {
	req, err := wire.DecodeGetCapabilitiesRequest(body)
	if err != nil {
		return nil, err
	}

	resp := wire.CapabilitiesResponse{
		Header:     wire.MessageHeader{Version: c.Version},
		CTExponent: c.LocalCTExponent,
		Flags:      c.LocalCapabilities,
	}
	out := wire.EncodeCapabilitiesResponse(resp)

	if _, err := c.Transcripts.Append(transcript.VCA, body); err != nil {
		return nil, err
	}
	if _, err := c.Transcripts.Append(transcript.VCA, out); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.PeerCapabilities = req.Flags
	c.PeerCTExponent = req.CTExponent
	c.mu.Unlock()
	c.setState(StateAfterCapabilities)
	return out, nil
}

// NegotiateCapabilities is the requester-side driver for GET_CAPABILITIES.
func (c *Context) NegotiateCapabilities(send requestSender) error {
	req := wire.GetCapabilitiesRequest{
		Header:     wire.MessageHeader{Version: c.Version},
		CTExponent: c.LocalCTExponent,
		Flags:      c.LocalCapabilities,
	}
	reqBytes := wire.EncodeGetCapabilitiesRequest(req)

	respBytes, err := send(reqBytes)
	if err != nil {
		return err
	}
	resp, err := wire.DecodeCapabilitiesResponse(respBytes)
	if err != nil {
		return err
	}

	if _, err := c.Transcripts.Append(transcript.VCA, reqBytes); err != nil {
		return err
	}
	if _, err := c.Transcripts.Append(transcript.VCA, respBytes); err != nil {
		return err
	}

	c.mu.Lock()
	c.PeerCapabilities = resp.Flags
	c.PeerCTExponent = resp.CTExponent
	c.mu.Unlock()
	c.setState(StateAfterCapabilities)
	return nil
}
