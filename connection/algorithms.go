package connection

import (
	"github.com/openspdm/spdm-go/spdmcrypto"
	"github.com/openspdm/spdm-go/transcript"
	"github.com/openspdm/spdm-go/wire"
)

// ReqAlgStruct AlgType codes for the extended algorithm categories carried
// alongside NEGOTIATE_ALGORITHMS' fixed BaseAsym/BaseHash fields.
const (
	algTypeDHE         byte = 2
	algTypeAEAD        byte = 3
	algTypeReqBaseAsym byte = 4
	algTypeKeySchedule byte = 5
)

func findAlg(structs []wire.ReqAlgStruct, algType byte) uint16 {
	var mask uint16
	for _, s := range structs {
		if s.AlgType == algType {
			for _, v := range s.AlgSupported {
				mask |= v
			}
		}
	}
	return mask
}

func localExtendedStructs(local NegotiatedAlgorithms) []wire.ReqAlgStruct {
	return []wire.ReqAlgStruct{
		{AlgType: algTypeDHE, AlgSupported: []uint16{uint16(local.Dhe)}},
		{AlgType: algTypeAEAD, AlgSupported: []uint16{uint16(local.Aead)}},
		{AlgType: algTypeKeySchedule, AlgSupported: []uint16{uint16(spdmcrypto.KeyScheduleHMACHash)}},
	}
}

func handleNegotiateAlgorithms(c *Context, body []byte) ([]byte, error) {
	req, err := wire.DecodeNegotiateAlgorithmsRequest(body)
	if err != nil {
		return nil, err
	}

	local := c.localProposal()

	baseHash, err := spdmcrypto.PreferredHash(local.BaseHash, spdmcrypto.HashAlgo(req.BaseHashAlgo))
	if err != nil {
		return nil, err
	}
	baseAsym, err := spdmcrypto.PreferredAsym(local.BaseAsym, spdmcrypto.AsymAlgo(req.BaseAsymAlgo))
	if err != nil {
		return nil, err
	}
	dhe, err := spdmcrypto.PreferredDhe(local.Dhe, spdmcrypto.DheGroup(findAlg(req.ReqAlgStructs, algTypeDHE)))
	if err != nil {
		return nil, err
	}
	aead, err := spdmcrypto.PreferredAead(local.Aead, spdmcrypto.AeadAlgo(findAlg(req.ReqAlgStructs, algTypeAEAD)))
	if err != nil {
		return nil, err
	}

	negotiated := NegotiatedAlgorithms{
		BaseHash:        baseHash,
		BaseAsym:        baseAsym,
		Dhe:             dhe,
		Aead:            aead,
		MeasurementHash: spdmcrypto.MeasurementHashAlgo(baseHash),
	}

	resp := wire.AlgorithmsResponse{
		Header:                 wire.MessageHeader{Version: c.Version},
		MeasurementSpecSel:     req.MeasurementSpec,
		MeasurementHashAlgoSel: uint32(negotiated.MeasurementHash),
		BaseAsymSel:            uint32(baseAsym),
		BaseHashSel:            uint32(baseHash),
		ReqAlgStructSel: []wire.ReqAlgStruct{
			{AlgType: algTypeDHE, AlgSupported: []uint16{uint16(dhe)}},
			{AlgType: algTypeAEAD, AlgSupported: []uint16{uint16(aead)}},
			{AlgType: algTypeKeySchedule, AlgSupported: []uint16{uint16(spdmcrypto.KeyScheduleHMACHash)}},
		},
	}
	out := wire.EncodeAlgorithmsResponse(resp)

	if _, err := c.Transcripts.Append(transcript.VCA, body); err != nil {
		return nil, err
	}
	if _, err := c.Transcripts.Append(transcript.VCA, out); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.Algorithms = negotiated
	c.mu.Unlock()
	c.setState(StateNegotiatedAlgorithms)
	return out, nil
}

// localProposal returns the algorithm masks this side is willing to
// propose or accept; a real deployment wires this from config, so it is
// kept as a method a caller can override by setting c.Algorithms before
// negotiation starts.
func (c *Context) localProposal() NegotiatedAlgorithms {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Algorithms.BaseHash != 0 {
		return c.Algorithms
	}
	return NegotiatedAlgorithms{
		BaseHash: spdmcrypto.HashSHA256 | spdmcrypto.HashSHA384 | spdmcrypto.HashSHA512,
		BaseAsym: spdmcrypto.AsymECDSAP256 | spdmcrypto.AsymECDSAP384 | spdmcrypto.AsymEdDSA25519 | spdmcrypto.AsymECDSASecp256k1,
		Dhe:      spdmcrypto.DheX25519 | spdmcrypto.DheSECP256R1 | spdmcrypto.DheSECP384R1,
		Aead:     spdmcrypto.AeadAES256GCM | spdmcrypto.AeadChaCha20Poly1305 | spdmcrypto.AeadAES128GCM,
	}
}

// NegotiateAlgorithms is the requester-side driver for
// NEGOTIATE_ALGORITHMS.
func (c *Context) NegotiateAlgorithms(send requestSender) error {
	local := c.localProposal()
	req := wire.NegotiateAlgorithmsRequest{
		Header:        wire.MessageHeader{Version: c.Version},
		BaseAsymAlgo:  uint32(local.BaseAsym),
		BaseHashAlgo:  uint32(local.BaseHash),
		ReqAlgStructs: localExtendedStructs(local),
	}
	reqBytes := wire.EncodeNegotiateAlgorithmsRequest(req)

	respBytes, err := send(reqBytes)
	if err != nil {
		return err
	}
	resp, err := wire.DecodeAlgorithmsResponse(respBytes)
	if err != nil {
		return err
	}

	if _, err := c.Transcripts.Append(transcript.VCA, reqBytes); err != nil {
		return err
	}
	if _, err := c.Transcripts.Append(transcript.VCA, respBytes); err != nil {
		return err
	}

	negotiated := NegotiatedAlgorithms{
		BaseHash:        spdmcrypto.HashAlgo(resp.BaseHashSel),
		BaseAsym:        spdmcrypto.AsymAlgo(resp.BaseAsymSel),
		Dhe:             spdmcrypto.DheGroup(findAlg(resp.ReqAlgStructSel, algTypeDHE)),
		Aead:            spdmcrypto.AeadAlgo(findAlg(resp.ReqAlgStructSel, algTypeAEAD)),
		MeasurementHash: spdmcrypto.MeasurementHashAlgo(resp.MeasurementHashAlgoSel),
	}

	c.mu.Lock()
	c.Algorithms = negotiated
	c.mu.Unlock()
	c.setState(StateNegotiatedAlgorithms)
	return nil
}
