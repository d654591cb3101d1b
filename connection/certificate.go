package connection

import (
	"crypto/x509"
	"fmt"

	"github.com/openspdm/spdm-go/spdmcrypto"
	"github.com/openspdm/spdm-go/transcript"
	"github.com/openspdm/spdm-go/wire"
)

func hashLenFor(c *Context) (int, error) {
	info, err := spdmcrypto.GetHashInfo(c.Algorithms.BaseHash)
	if err != nil {
		return 0, err
	}
	return info.DigestLen, nil
}

func handleGetDigests(c *Context, body []byte) ([]byte, error) {
	if _, err := wire.DecodeGetDigestsRequest(body); err != nil {
		return nil, err
	}

	hasher, err := c.Crypto.Hash(c.Algorithms.BaseHash)
	if err != nil {
		return nil, err
	}

	var slotMask byte
	var digests [][]byte
	for slot := 0; slot < maxSlots; slot++ {
		chain := c.LocalCertChains[slot]
		if len(chain) == 0 {
			continue
		}
		slotMask |= 1 << uint(slot)
		digests = append(digests, hasher.Sum(chain))
	}

	resp := wire.DigestsResponse{Header: wire.MessageHeader{Version: c.Version}, SlotMask: slotMask, Digests: digests}
	out := wire.EncodeDigestsResponse(resp)

	if _, err := c.Transcripts.Append(transcript.M1M2, body); err != nil {
		return nil, err
	}
	if _, err := c.Transcripts.Append(transcript.M1M2, out); err != nil {
		return nil, err
	}
	c.setState(StateAfterDigests)
	return out, nil
}

// GetDigests is the requester-side driver for GET_DIGESTS.
func (c *Context) GetDigests(send requestSender) (byte, error) {
	req := wire.GetDigestsRequest{Header: wire.MessageHeader{Version: c.Version}}
	reqBytes := wire.EncodeGetDigestsRequest(req)

	respBytes, err := send(reqBytes)
	if err != nil {
		return 0, err
	}
	hashLen, err := hashLenFor(c)
	if err != nil {
		return 0, err
	}
	resp, err := wire.DecodeDigestsResponse(respBytes, hashLen)
	if err != nil {
		return 0, err
	}

	if _, err := c.Transcripts.Append(transcript.M1M2, reqBytes); err != nil {
		return 0, err
	}
	if _, err := c.Transcripts.Append(transcript.M1M2, respBytes); err != nil {
		return 0, err
	}

	slot := 0
	for i, d := range resp.Digests {
		for resp.SlotMask&(1<<uint(slot)) == 0 {
			slot++
		}
		c.mu.Lock()
		c.PeerCertDigests[slot] = d
		c.mu.Unlock()
		slot++
		_ = i
	}

	c.setState(StateAfterDigests)
	return resp.SlotMask, nil
}

// chunkSize is the portion_length this implementation requests per
// GET_CERTIFICATE round trip; DSP0274 leaves this to the requester.
const chunkSize = 1024

func handleGetCertificate(c *Context, body []byte) ([]byte, error) {
	req, err := wire.DecodeGetCertificateRequest(body)
	if err != nil {
		return nil, err
	}
	chain := c.LocalCertChains[req.Slot]

	end := int(req.Offset) + int(req.Length)
	if end > len(chain) {
		end = len(chain)
	}
	var portion []byte
	if int(req.Offset) < len(chain) {
		portion = chain[req.Offset:end]
	}
	remainder := len(chain) - end
	if remainder < 0 {
		remainder = 0
	}

	resp := wire.CertificateResponse{
		Header:           wire.MessageHeader{Version: c.Version},
		Slot:             req.Slot,
		RemainderLength:  uint16(remainder),
		CertChainPortion: portion,
	}
	out := wire.EncodeCertificateResponse(resp)

	if _, err := c.Transcripts.Append(transcript.M1M2, body); err != nil {
		return nil, err
	}
	if _, err := c.Transcripts.Append(transcript.M1M2, out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetCertificate fetches the full certificate chain for slot by chunking
// GET_CERTIFICATE requests until RemainderLength reaches zero, per
// spec.md §4.4 step 4.
func (c *Context) GetCertificate(send requestSender, slot byte) ([]byte, error) {
	var chain []byte
	var offset uint16
	for {
		req := wire.GetCertificateRequest{Header: wire.MessageHeader{Version: c.Version}, Slot: slot, Offset: offset, Length: chunkSize}
		reqBytes := wire.EncodeGetCertificateRequest(req)

		respBytes, err := send(reqBytes)
		if err != nil {
			return nil, err
		}
		resp, err := wire.DecodeCertificateResponse(respBytes)
		if err != nil {
			return nil, err
		}

		if _, err := c.Transcripts.Append(transcript.M1M2, reqBytes); err != nil {
			return nil, err
		}
		if _, err := c.Transcripts.Append(transcript.M1M2, respBytes); err != nil {
			return nil, err
		}

		chain = append(chain, resp.CertChainPortion...)
		offset += resp.PortionLength
		if resp.RemainderLength == 0 {
			break
		}
	}

	hasher, err := c.Crypto.Hash(c.Algorithms.BaseHash)
	if err != nil {
		return nil, err
	}
	if got := hasher.Sum(chain); !bytesEqual(got, c.PeerCertDigests[slot]) {
		return nil, errCertDigestMismatch
	}

	c.mu.Lock()
	c.PeerCertChains[slot] = chain
	c.mu.Unlock()
	c.setState(StateAfterCertificate)
	return chain, nil
}

// VerifyPeerCertChain parses the DER certificates concatenated in slot's
// chain, checks them against trustAnchor via the crypto backend's
// CertChainVerifier, and caches the leaf's public key for later signature
// verification (CHALLENGE_AUTH, mutual-auth FINISH, signed MEASUREMENTS).
func (c *Context) VerifyPeerCertChain(slot byte, trustAnchor []byte) error {
	certs, err := x509.ParseCertificates(c.PeerCertChains[slot])
	if err != nil {
		return fmt.Errorf("connection: parsing peer certificate chain: %w", err)
	}
	if len(certs) == 0 {
		return errSlotNotProvisioned
	}

	der := make([][]byte, len(certs))
	for i, cert := range certs {
		der[i] = cert.Raw
	}
	if err := c.Crypto.CertChain().VerifyChain(der, trustAnchor); err != nil {
		return err
	}

	c.mu.Lock()
	c.PeerPublicKeys[slot] = certs[len(certs)-1].PublicKey
	c.mu.Unlock()
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
