package connection

import (
	"github.com/openspdm/spdm-go/spdmcrypto"
	"github.com/openspdm/spdm-go/transcript"
	"github.com/openspdm/spdm-go/wire"
)

func handleChallenge(c *Context, body []byte) ([]byte, error) {
	req, err := wire.DecodeChallengeRequest(body)
	if err != nil {
		return nil, err
	}
	chain := c.LocalCertChains[req.Slot]
	if len(chain) == 0 {
		return nil, errSlotNotProvisioned
	}

	hasher, err := c.Crypto.Hash(c.Algorithms.BaseHash)
	if err != nil {
		return nil, err
	}

	nonce, err := c.Crypto.Random(wire.NonceLen)
	if err != nil {
		return nil, err
	}
	resp := wire.ChallengeAuthResponse{
		Header:        wire.MessageHeader{Version: c.Version},
		Slot:          req.Slot,
		CertChainHash: hasher.Sum(chain),
	}
	copy(resp.Nonce[:], nonce)

	if _, err := c.Transcripts.Append(transcript.M1M2, body); err != nil {
		return nil, err
	}
	unsigned := wire.EncodeChallengeAuthResponseUnsigned(resp)
	if _, err := c.Transcripts.Append(transcript.M1M2, unsigned); err != nil {
		return nil, err
	}
	m1, err := c.Transcripts.Finalize(transcript.M1M2, spdmcrypto.HashConstructor(hasher))
	if err != nil {
		return nil, err
	}

	signer, err := c.Crypto.Signature(c.Algorithms.BaseAsym)
	if err != nil {
		return nil, err
	}
	sig, err := signer.Sign(c.LocalSigningKey, m1)
	if err != nil {
		return nil, err
	}
	resp.Signature = sig
	out := wire.EncodeChallengeAuthResponse(resp)

	if _, err := c.Transcripts.Append(transcript.M1M2, sig); err != nil {
		return nil, err
	}
	c.setState(StateAuthenticated)
	return out, nil
}

// Challenge is the requester-side driver for CHALLENGE/CHALLENGE_AUTH: it
// sends a fresh nonce, verifies the returned signature over M1, and marks
// the connection Authenticated on success.
func (c *Context) Challenge(send requestSender, slot byte) error {
	nonce, err := c.Crypto.Random(wire.NonceLen)
	if err != nil {
		return err
	}
	req := wire.ChallengeRequest{Header: wire.MessageHeader{Version: c.Version}, Slot: slot}
	copy(req.Nonce[:], nonce)
	reqBytes := wire.EncodeChallengeRequest(req)

	respBytes, err := send(reqBytes)
	if err != nil {
		return err
	}
	hashLen, err := hashLenFor(c)
	if err != nil {
		return err
	}
	signer, err := c.Crypto.Signature(c.Algorithms.BaseAsym)
	if err != nil {
		return err
	}
	resp, err := wire.DecodeChallengeAuthResponse(respBytes, hashLen, signer.SignatureSize())
	if err != nil {
		return err
	}

	if _, err := c.Transcripts.Append(transcript.M1M2, reqBytes); err != nil {
		return err
	}
	unsigned := wire.EncodeChallengeAuthResponseUnsigned(resp)
	if _, err := c.Transcripts.Append(transcript.M1M2, unsigned); err != nil {
		return err
	}
	hasher, err := c.Crypto.Hash(c.Algorithms.BaseHash)
	if err != nil {
		return err
	}
	m1, err := c.Transcripts.Finalize(transcript.M1M2, spdmcrypto.HashConstructor(hasher))
	if err != nil {
		return err
	}

	if err := signer.Verify(c.PeerPublicKeys[slot], m1, resp.Signature); err != nil {
		return errChallengeFailed
	}

	if _, err := c.Transcripts.Append(transcript.M1M2, resp.Signature); err != nil {
		return err
	}
	c.setState(StateAuthenticated)
	return nil
}
