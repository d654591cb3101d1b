package connection

import (
	"github.com/openspdm/spdm-go/spdmcrypto"
	"github.com/openspdm/spdm-go/transcript"
	"github.com/openspdm/spdm-go/wire"
)

func handleGetMeasurements(c *Context, body []byte) ([]byte, error) {
	req, err := wire.DecodeGetMeasurementsRequest(body)
	if err != nil {
		return nil, err
	}

	blocks := c.localMeasurementBlocks(req.Operation)
	resp := wire.MeasurementsResponse{
		Header: wire.MessageHeader{Version: c.Version},
		Blocks: blocks,
		Signed: req.RequestSignature,
	}
	if req.RequestSignature {
		resp.Nonce = req.Nonce
	}

	if _, err := c.Transcripts.Append(transcript.L, body); err != nil {
		return nil, err
	}

	if !req.RequestSignature {
		out := wire.EncodeMeasurementsResponse(resp)
		if _, err := c.Transcripts.Append(transcript.L, out); err != nil {
			return nil, err
		}
		return out, nil
	}

	unsigned := wire.EncodeMeasurementsResponseUnsigned(resp)
	if _, err := c.Transcripts.Append(transcript.L, unsigned); err != nil {
		return nil, err
	}
	hasher, err := c.Crypto.Hash(c.Algorithms.BaseHash)
	if err != nil {
		return nil, err
	}
	lHash, err := c.Transcripts.Finalize(transcript.L, spdmcrypto.HashConstructor(hasher))
	if err != nil {
		return nil, err
	}

	signer, err := c.Crypto.Signature(c.Algorithms.BaseAsym)
	if err != nil {
		return nil, err
	}
	sig, err := signer.Sign(c.LocalSigningKey, lHash)
	if err != nil {
		return nil, err
	}
	resp.Signature = sig
	out := wire.EncodeMeasurementsResponse(resp)
	if _, err := c.Transcripts.Append(transcript.L, sig); err != nil {
		return nil, err
	}
	return out, nil
}

// localMeasurementBlocks is overridden by a caller wiring real measurement
// sources in; the zero-value Context reports an empty set.
func (c *Context) localMeasurementBlocks(operation byte) []wire.MeasurementBlock {
	if c.MeasurementSource == nil {
		return nil
	}
	return c.MeasurementSource(operation)
}

// GetMeasurements is the requester-side driver for GET_MEASUREMENTS. slot
// only matters when requestSignature is true (the signature is verified
// against that slot's cached public key).
func (c *Context) GetMeasurements(send requestSender, operation byte, requestSignature bool, slot byte) ([]wire.MeasurementBlock, error) {
	nonce, err := c.Crypto.Random(wire.NonceLen)
	if err != nil {
		return nil, err
	}
	req := wire.GetMeasurementsRequest{Header: wire.MessageHeader{Version: c.Version}, Operation: operation, RequestSignature: requestSignature}
	copy(req.Nonce[:], nonce)
	reqBytes := wire.EncodeGetMeasurementsRequest(req)

	respBytes, err := send(reqBytes)
	if err != nil {
		return nil, err
	}

	sigLen := 0
	var signer spdmcrypto.Signer
	if requestSignature {
		signer, err = c.Crypto.Signature(c.Algorithms.BaseAsym)
		if err != nil {
			return nil, err
		}
		sigLen = signer.SignatureSize()
	}
	resp, err := wire.DecodeMeasurementsResponse(respBytes, requestSignature, sigLen)
	if err != nil {
		return nil, err
	}

	if _, err := c.Transcripts.Append(transcript.L, reqBytes); err != nil {
		return nil, err
	}
	if !requestSignature {
		if _, err := c.Transcripts.Append(transcript.L, respBytes); err != nil {
			return nil, err
		}
		return resp.Blocks, nil
	}

	unsigned := wire.EncodeMeasurementsResponseUnsigned(resp)
	if _, err := c.Transcripts.Append(transcript.L, unsigned); err != nil {
		return nil, err
	}
	hasher, err := c.Crypto.Hash(c.Algorithms.BaseHash)
	if err != nil {
		return nil, err
	}
	lHash, err := c.Transcripts.Finalize(transcript.L, spdmcrypto.HashConstructor(hasher))
	if err != nil {
		return nil, err
	}
	if err := signer.Verify(c.PeerPublicKeys[slot], lHash, resp.Signature); err != nil {
		return nil, errMeasurementFailed
	}
	if _, err := c.Transcripts.Append(transcript.L, resp.Signature); err != nil {
		return nil, err
	}
	return resp.Blocks, nil
}
