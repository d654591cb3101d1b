package spdmcrypto

import (
	"fmt"
	"sync"
)

// HashAlgo is one BaseHashAlgo/MeasurementHashAlgo bit from spec.md §4.4's
// NEGOTIATE_ALGORITHMS exchange.
type HashAlgo uint32

const (
	HashSHA256 HashAlgo = 1 << 0
	HashSHA384 HashAlgo = 1 << 1
	HashSHA512 HashAlgo = 1 << 2
)

// AsymAlgo is one BaseAsymAlgo/ReqBaseAsymAlgo bit. Secp256k1 is not part of
// DSP0274 itself; it is carried as a vendor-extension bit so a requester
// that only holds a secp256k1 identity key can still complete mutual
// authentication against this implementation.
type AsymAlgo uint32

const (
	AsymRSASSA2048    AsymAlgo = 1 << 0
	AsymRSASSA3072    AsymAlgo = 1 << 1
	AsymRSASSA4096    AsymAlgo = 1 << 2
	AsymECDSAP256     AsymAlgo = 1 << 3
	AsymECDSAP384     AsymAlgo = 1 << 4
	AsymEdDSA25519    AsymAlgo = 1 << 5
	AsymECDSASecp256k1 AsymAlgo = 1 << 30 // vendor extension bit
)

// DheGroup is one DHEGroup bit.
type DheGroup uint32

const (
	DheSECP256R1 DheGroup = 1 << 0
	DheSECP384R1 DheGroup = 1 << 1
	DheX25519    DheGroup = 1 << 2
	DheX448      DheGroup = 1 << 3
)

// AeadAlgo is one AEADCipherSuite bit.
type AeadAlgo uint32

const (
	AeadAES128GCM       AeadAlgo = 1 << 0
	AeadAES256GCM       AeadAlgo = 1 << 1
	AeadChaCha20Poly1305 AeadAlgo = 1 << 2
)

// KeyScheduleAlgo is the KeySchedule field; DSP0274 defines exactly one
// value (HMAC-hash) so this exists for symmetry with the other algorithm
// enums and forward extension.
type KeyScheduleAlgo uint32

const KeyScheduleHMACHash KeyScheduleAlgo = 1 << 0

// MeasurementHashAlgo reuses the HashAlgo bit space plus a "raw bitstream,
// no hashing" option.
type MeasurementHashAlgo uint32

const (
	MeasurementHashSHA256 MeasurementHashAlgo = MeasurementHashAlgo(HashSHA256)
	MeasurementHashSHA384 MeasurementHashAlgo = MeasurementHashAlgo(HashSHA384)
	MeasurementHashSHA512 MeasurementHashAlgo = MeasurementHashAlgo(HashSHA512)
	MeasurementHashRaw    MeasurementHashAlgo = 1 << 31
)

// AlgorithmInfo describes one registered algorithm ID for diagnostics and
// capability-negotiation preference ordering.
type AlgorithmInfo struct {
	Name      string
	DigestLen int // 0 where not applicable (e.g. AEAD key agreement groups)
}

var (
	registryMu  sync.RWMutex
	hashInfo    = map[HashAlgo]AlgorithmInfo{}
	asymInfo    = map[AsymAlgo]AlgorithmInfo{}
	dheInfo     = map[DheGroup]AlgorithmInfo{}
	aeadInfo    = map[AeadAlgo]AlgorithmInfo{}
)

func init() {
	RegisterHash(HashSHA256, AlgorithmInfo{Name: "SHA-256", DigestLen: 32})
	RegisterHash(HashSHA384, AlgorithmInfo{Name: "SHA-384", DigestLen: 48})
	RegisterHash(HashSHA512, AlgorithmInfo{Name: "SHA-512", DigestLen: 64})

	RegisterAsym(AsymRSASSA2048, AlgorithmInfo{Name: "RSASSA-2048", DigestLen: 256})
	RegisterAsym(AsymRSASSA3072, AlgorithmInfo{Name: "RSASSA-3072", DigestLen: 384})
	RegisterAsym(AsymRSASSA4096, AlgorithmInfo{Name: "RSASSA-4096", DigestLen: 512})
	RegisterAsym(AsymECDSAP256, AlgorithmInfo{Name: "ECDSA-P256", DigestLen: 64})
	RegisterAsym(AsymECDSAP384, AlgorithmInfo{Name: "ECDSA-P384", DigestLen: 96})
	RegisterAsym(AsymEdDSA25519, AlgorithmInfo{Name: "EdDSA-Ed25519", DigestLen: 64})
	RegisterAsym(AsymECDSASecp256k1, AlgorithmInfo{Name: "ECDSA-secp256k1", DigestLen: 64})

	RegisterDhe(DheSECP256R1, AlgorithmInfo{Name: "SECP256R1", DigestLen: 64})
	RegisterDhe(DheSECP384R1, AlgorithmInfo{Name: "SECP384R1", DigestLen: 96})
	RegisterDhe(DheX25519, AlgorithmInfo{Name: "X25519", DigestLen: 32})
	RegisterDhe(DheX448, AlgorithmInfo{Name: "X448", DigestLen: 56})

	RegisterAead(AeadAES128GCM, AlgorithmInfo{Name: "AES-128-GCM"})
	RegisterAead(AeadAES256GCM, AlgorithmInfo{Name: "AES-256-GCM"})
	RegisterAead(AeadChaCha20Poly1305, AlgorithmInfo{Name: "ChaCha20-Poly1305"})
}

func RegisterHash(algo HashAlgo, info AlgorithmInfo) {
	registryMu.Lock()
	defer registryMu.Unlock()
	hashInfo[algo] = info
}

func RegisterAsym(algo AsymAlgo, info AlgorithmInfo) {
	registryMu.Lock()
	defer registryMu.Unlock()
	asymInfo[algo] = info
}

func RegisterDhe(group DheGroup, info AlgorithmInfo) {
	registryMu.Lock()
	defer registryMu.Unlock()
	dheInfo[group] = info
}

func RegisterAead(algo AeadAlgo, info AlgorithmInfo) {
	registryMu.Lock()
	defer registryMu.Unlock()
	aeadInfo[algo] = info
}

func GetHashInfo(algo HashAlgo) (AlgorithmInfo, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	info, ok := hashInfo[algo]
	if !ok {
		return AlgorithmInfo{}, fmt.Errorf("%w: hash algo 0x%x", ErrUnsupportedAlgorithm, uint32(algo))
	}
	return info, nil
}

func GetAsymInfo(algo AsymAlgo) (AlgorithmInfo, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	info, ok := asymInfo[algo]
	if !ok {
		return AlgorithmInfo{}, fmt.Errorf("%w: asym algo 0x%x", ErrUnsupportedAlgorithm, uint32(algo))
	}
	return info, nil
}

func GetDheInfo(group DheGroup) (AlgorithmInfo, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	info, ok := dheInfo[group]
	if !ok {
		return AlgorithmInfo{}, fmt.Errorf("%w: dhe group 0x%x", ErrUnsupportedAlgorithm, uint32(group))
	}
	return info, nil
}

func GetAeadInfo(algo AeadAlgo) (AlgorithmInfo, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	info, ok := aeadInfo[algo]
	if !ok {
		return AlgorithmInfo{}, fmt.Errorf("%w: aead algo 0x%x", ErrUnsupportedAlgorithm, uint32(algo))
	}
	return info, nil
}

// PreferredHash picks the strongest hash present in both masks, preferring
// SHA-512 > SHA-384 > SHA-256 (descending digest strength), used by the
// connection engine's ALGORITHMS response selection.
func PreferredHash(local, peer HashAlgo) (HashAlgo, error) {
	for _, candidate := range []HashAlgo{HashSHA512, HashSHA384, HashSHA256} {
		if local&peer&candidate != 0 {
			return candidate, nil
		}
	}
	return 0, fmt.Errorf("%w: no common hash algorithm", ErrUnsupportedAlgorithm)
}

// PreferredAead picks the strongest AEAD present in both masks.
func PreferredAead(local, peer AeadAlgo) (AeadAlgo, error) {
	for _, candidate := range []AeadAlgo{AeadAES256GCM, AeadChaCha20Poly1305, AeadAES128GCM} {
		if local&peer&candidate != 0 {
			return candidate, nil
		}
	}
	return 0, fmt.Errorf("%w: no common AEAD algorithm", ErrUnsupportedAlgorithm)
}

// PreferredDhe picks a common DHE group, preferring X25519 for its smaller
// wire size and constant-time-by-construction implementation.
func PreferredDhe(local, peer DheGroup) (DheGroup, error) {
	for _, candidate := range []DheGroup{DheX25519, DheSECP384R1, DheSECP256R1, DheX448} {
		if local&peer&candidate != 0 {
			return candidate, nil
		}
	}
	return 0, fmt.Errorf("%w: no common DHE group", ErrUnsupportedAlgorithm)
}

// PreferredAsym picks a common asymmetric signature algorithm.
func PreferredAsym(local, peer AsymAlgo) (AsymAlgo, error) {
	for _, candidate := range []AsymAlgo{AsymEdDSA25519, AsymECDSAP384, AsymECDSAP256, AsymECDSASecp256k1, AsymRSASSA4096, AsymRSASSA3072, AsymRSASSA2048} {
		if local&peer&candidate != 0 {
			return candidate, nil
		}
	}
	return 0, fmt.Errorf("%w: no common asymmetric algorithm", ErrUnsupportedAlgorithm)
}
