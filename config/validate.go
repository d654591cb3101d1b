package config

import "fmt"

// ValidationError reports one problem found in a Config, with Level
// distinguishing a hard failure ("error") from an advisory ("warning").
type ValidationError struct {
	Field   string
	Message string
	Level   string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var validHashAlgorithms = map[string]bool{"sha256": true, "sha384": true, "sha512": true, "sha3-256": true, "sha3-384": true, "sha3-512": true}
var validAsymAlgorithms = map[string]bool{"ecdsa-p256": true, "ecdsa-p384": true, "ecdsa-p521": true, "eddsa-ed25519": true}
var validDheGroups = map[string]bool{"secp256r1": true, "secp384r1": true, "x25519": true, "x448": true}
var validAeadAlgorithms = map[string]bool{"aes-128-gcm": true, "aes-256-gcm": true, "chacha20-poly1305": true}
var validTransportKinds = map[string]bool{"mctp": true, "pcie-doe": true, "tcp": true}
var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
var validLogFormats = map[string]bool{"json": true, "text": true}

// ValidateConfiguration checks cfg against spec.md §6's config-key
// constraints, returning every problem found rather than stopping at the
// first one.
func ValidateConfiguration(cfg *Config) []ValidationError {
	var errs []ValidationError

	if cfg.Version.Major == 0 {
		errs = append(errs, ValidationError{Field: "version", Message: "version is required", Level: "error"})
	}

	if cfg.Algorithms.BaseHash != "" && !validHashAlgorithms[cfg.Algorithms.BaseHash] {
		errs = append(errs, ValidationError{Field: "algorithms.base_hash", Message: "invalid base hash algorithm", Level: "error"})
	}
	if cfg.Algorithms.BaseAsym != "" && !validAsymAlgorithms[cfg.Algorithms.BaseAsym] {
		errs = append(errs, ValidationError{Field: "algorithms.base_asym", Message: "invalid base asymmetric algorithm", Level: "error"})
	}
	if cfg.Algorithms.Dhe != "" && !validDheGroups[cfg.Algorithms.Dhe] {
		errs = append(errs, ValidationError{Field: "algorithms.dhe", Message: "invalid DHE group", Level: "error"})
	}
	if cfg.Algorithms.Aead != "" && !validAeadAlgorithms[cfg.Algorithms.Aead] {
		errs = append(errs, ValidationError{Field: "algorithms.aead", Message: "invalid AEAD algorithm", Level: "error"})
	}

	if cfg.Transport.Kind != "" && !validTransportKinds[cfg.Transport.Kind] {
		errs = append(errs, ValidationError{Field: "transport.kind", Message: "invalid transport kind", Level: "error"})
	}

	if cfg.Logging != nil {
		if cfg.Logging.Level != "" && !validLogLevels[cfg.Logging.Level] {
			errs = append(errs, ValidationError{Field: "logging.level", Message: "invalid log level", Level: "error"})
		}
		if cfg.Logging.Format != "" && !validLogFormats[cfg.Logging.Format] {
			errs = append(errs, ValidationError{Field: "logging.format", Message: "invalid log format", Level: "error"})
		}
	}

	if cfg.Capabilities.KeyExCap && !cfg.Capabilities.EncryptCap {
		errs = append(errs, ValidationError{Field: "capabilities.encrypt_cap", Message: "key_ex_cap requires encrypt_cap for the session record layer to do anything", Level: "warning"})
	}

	return errs
}
