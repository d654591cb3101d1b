package connection

import (
	"github.com/openspdm/spdm-go/transcript"
	"github.com/openspdm/spdm-go/wire"
)

// handleGetVersion answers GET_VERSION with a single version entry, the
// responder's LocalVersion, per spec.md §4.4 step 1.
// GET_VERSION resets any prior negotiation, since DSP0274 treats it as the
// start of a fresh connection.
func handleGetVersion(c *Context, body []byte) ([]byte, error) {
	if _, err := wire.DecodeGetVersionRequest(body); err != nil {
		return nil, err
	}
	c.Reset()

	resp := wire.VersionResponse{
		Header: wire.MessageHeader{Version: wire.Version{Major: 1, Minor: 0}},
		Versions: []wire.VersionEntry{
			{Major: c.LocalVersion.Major, Minor: c.LocalVersion.Minor},
		},
	}
	out := wire.EncodeVersionResponse(resp)

	if _, err := c.Transcripts.Append(transcript.VCA, body); err != nil {
		return nil, err
	}
	if _, err := c.Transcripts.Append(transcript.VCA, out); err != nil {
		return nil, err
	}

	c.setState(StateAfterVersion)
	return out, nil
}

// NegotiateVersion is the requester-side driver for GET_VERSION: it sends
// the request, parses the responder's supported list, and picks the
// highest entry not exceeding localMax.
func (c *Context) NegotiateVersion(send requestSender, localMax wire.Version) error {
	req := wire.GetVersionRequest{Header: wire.MessageHeader{Version: wire.Version{Major: 1, Minor: 0}}}
	reqBytes := wire.EncodeGetVersionRequest(req)

	respBytes, err := send(reqBytes)
	if err != nil {
		return err
	}
	resp, err := wire.DecodeVersionResponse(respBytes)
	if err != nil {
		return err
	}

	best, ok := bestVersion(resp.Versions, localMax)
	if !ok {
		return errNoCommonVersion
	}

	if _, err := c.Transcripts.Append(transcript.VCA, reqBytes); err != nil {
		return err
	}
	if _, err := c.Transcripts.Append(transcript.VCA, respBytes); err != nil {
		return err
	}

	c.mu.Lock()
	c.Version = best
	c.PeerVersions = resp.Versions
	c.mu.Unlock()
	c.setState(StateAfterVersion)
	return nil
}

func bestVersion(entries []wire.VersionEntry, localMax wire.Version) (wire.Version, bool) {
	var best wire.Version
	found := false
	for _, e := range entries {
		v := e.Version()
		if v.Less(localMax) || v == localMax {
			if !found || best.Less(v) {
				best = v
				found = true
			}
		}
	}
	return best, found
}
