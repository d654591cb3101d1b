package config

import (
	"fmt"

	"github.com/openspdm/spdm-go/spdmcrypto"
	"github.com/openspdm/spdm-go/wire"
)

var hashByName = map[string]spdmcrypto.HashAlgo{
	"sha256": spdmcrypto.HashSHA256,
	"sha384": spdmcrypto.HashSHA384,
	"sha512": spdmcrypto.HashSHA512,
}

var asymByName = map[string]spdmcrypto.AsymAlgo{
	"rsassa-2048":   spdmcrypto.AsymRSASSA2048,
	"rsassa-3072":   spdmcrypto.AsymRSASSA3072,
	"rsassa-4096":   spdmcrypto.AsymRSASSA4096,
	"ecdsa-p256":    spdmcrypto.AsymECDSAP256,
	"ecdsa-p384":    spdmcrypto.AsymECDSAP384,
	"eddsa-ed25519": spdmcrypto.AsymEdDSA25519,
	"ecdsa-secp256k1": spdmcrypto.AsymECDSASecp256k1,
}

var dheByName = map[string]spdmcrypto.DheGroup{
	"secp256r1": spdmcrypto.DheSECP256R1,
	"secp384r1": spdmcrypto.DheSECP384R1,
	"x25519":    spdmcrypto.DheX25519,
	"x448":      spdmcrypto.DheX448,
}

var aeadByName = map[string]spdmcrypto.AeadAlgo{
	"aes-128-gcm":       spdmcrypto.AeadAES128GCM,
	"aes-256-gcm":       spdmcrypto.AeadAES256GCM,
	"chacha20-poly1305": spdmcrypto.AeadChaCha20Poly1305,
}

// Resolve translates the config's human-readable algorithm names into the
// spdmcrypto bit values NegotiatedAlgorithms carries. Its name tables are
// not the ones ValidateConfiguration checks: validation accepts sha3-* and
// ecdsa-p521, which Resolve rejects, and rejects rsassa-* and
// ecdsa-secp256k1, which Resolve accepts.
func (a AlgorithmsConfig) Resolve() (hash spdmcrypto.HashAlgo, asym spdmcrypto.AsymAlgo, dhe spdmcrypto.DheGroup, aead spdmcrypto.AeadAlgo, err error) {
	var ok bool
	if hash, ok = hashByName[a.BaseHash]; !ok {
		return 0, 0, 0, 0, fmt.Errorf("config: unknown base hash algorithm %q", a.BaseHash)
	}
	if asym, ok = asymByName[a.BaseAsym]; !ok {
		return 0, 0, 0, 0, fmt.Errorf("config: unknown base asymmetric algorithm %q", a.BaseAsym)
	}
	if dhe, ok = dheByName[a.Dhe]; !ok {
		return 0, 0, 0, 0, fmt.Errorf("config: unknown DHE group %q", a.Dhe)
	}
	if aead, ok = aeadByName[a.Aead]; !ok {
		return 0, 0, 0, 0, fmt.Errorf("config: unknown AEAD algorithm %q", a.Aead)
	}
	return hash, asym, dhe, aead, nil
}

// Flags packs the enabled capability bits into the wire.CapabilityFlags
// mask GET_CAPABILITIES/CAPABILITIES advertise.
func (c CapabilitiesConfig) Flags() wire.CapabilityFlags {
	var f wire.CapabilityFlags
	if c.CertCap {
		f |= wire.CapCertCap
	}
	if c.ChalCap {
		f |= wire.CapChalCap
	}
	if c.MeasCap {
		f |= wire.CapMeasCapBit0
	}
	if c.MutAuthCap {
		f |= wire.CapMutAuthCap
	}
	if c.KeyExCap {
		f |= wire.CapKeyExCap
	}
	if c.EncryptCap {
		f |= wire.CapEncryptCap
	}
	if c.PSKCap {
		f |= wire.CapPSKCap
	}
	if c.EncapCap {
		f |= wire.CapEncapCap
	}
	if c.HBeatCap {
		f |= wire.CapHBeatCap
	}
	if c.KeyUpdCap {
		f |= wire.CapKeyUpdCap
	}
	return f
}

// Version converts VersionConfig into the wire.Version GET_VERSION
// advertises.
func (v VersionConfig) Version() wire.Version {
	return wire.Version{Major: v.Major, Minor: v.Minor}
}
