// Package config loads and validates the settings an SPDM endpoint needs
// before it can open a connection: local version/capability/algorithm
// preferences, transport addressing, certificate and PSK material
// locations, and the ambient logging/metrics/health surface.
package config

import "time"

// Config is the root configuration document, loaded from YAML or JSON via
// LoadFromFile and overridable from the environment via LoadFromEnv.
type Config struct {
	Environment  string             `yaml:"environment" json:"environment"`
	Version      VersionConfig      `yaml:"version" json:"version"`
	Capabilities CapabilitiesConfig `yaml:"capabilities" json:"capabilities"`
	Algorithms   AlgorithmsConfig   `yaml:"algorithms" json:"algorithms"`
	Transport    TransportConfig    `yaml:"transport" json:"transport"`
	Certificates CertificatesConfig `yaml:"certificates" json:"certificates"`
	PSK          PSKConfig          `yaml:"psk" json:"psk"`
	Session      *SessionConfig     `yaml:"session" json:"session"`
	Handshake    *HandshakeConfig   `yaml:"handshake" json:"handshake"`
	Logging      *LoggingConfig     `yaml:"logging" json:"logging"`
	Metrics      *MetricsConfig     `yaml:"metrics" json:"metrics"`
	Health       *HealthConfig      `yaml:"health" json:"health"`
}

// VersionConfig is the highest SPDM version this endpoint advertises in
// GET_VERSION/VERSION.
type VersionConfig struct {
	Major uint8 `yaml:"major" json:"major"`
	Minor uint8 `yaml:"minor" json:"minor"`
}

// CapabilitiesConfig mirrors the subset of wire.CapabilityFlags an operator
// chooses to advertise. The connection engine keeps the local and peer
// flags as separate fields; it does not AND them.
type CapabilitiesConfig struct {
	CertCap    bool `yaml:"cert_cap" json:"cert_cap"`
	ChalCap    bool `yaml:"chal_cap" json:"chal_cap"`
	MeasCap    bool `yaml:"meas_cap" json:"meas_cap"`
	MutAuthCap bool `yaml:"mut_auth_cap" json:"mut_auth_cap"`
	KeyExCap   bool `yaml:"key_ex_cap" json:"key_ex_cap"`
	EncryptCap bool `yaml:"encrypt_cap" json:"encrypt_cap"`
	PSKCap     bool `yaml:"psk_cap" json:"psk_cap"`
	EncapCap   bool `yaml:"encap_cap" json:"encap_cap"`
	HBeatCap   bool `yaml:"hbeat_cap" json:"hbeat_cap"`
	KeyUpdCap  bool `yaml:"key_upd_cap" json:"key_upd_cap"`
}

// AlgorithmsConfig names this endpoint's preferred algorithm per category,
// by the identifiers spdmcrypto's registries key on (e.g. "sha256",
// "ecdsa-p256", "x25519", "aes-128-gcm"). Each category holds one name,
// which Resolve turns into a single spdmcrypto value; no priority list is
// carried.
type AlgorithmsConfig struct {
	BaseHash        string `yaml:"base_hash" json:"base_hash"`
	BaseAsym        string `yaml:"base_asym" json:"base_asym"`
	Dhe             string `yaml:"dhe" json:"dhe"`
	Aead            string `yaml:"aead" json:"aead"`
	MeasurementHash string `yaml:"measurement_hash" json:"measurement_hash"`
}

// TransportConfig addresses the underlying channel (MCTP, PCIe DOE, or a
// TCP stand-in for development) that carries encoded SPDM messages; the
// transport package owns framing, this just names where to dial/listen.
type TransportConfig struct {
	Kind        string        `yaml:"kind" json:"kind"` // mctp, pcie-doe, tcp
	Address     string        `yaml:"address" json:"address"`
	DialTimeout time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
}

// CertificatesConfig locates the DER-encoded certificate chains this
// endpoint presents per slot, and the trust root(s) used to validate a
// peer's chain.
type CertificatesConfig struct {
	Slots           map[string]SlotConfig `yaml:"slots" json:"slots"` // key is the slot number, "0".."7"
	TrustedRootPath string                `yaml:"trusted_root_path" json:"trusted_root_path"`
}

// SlotConfig is one certificate slot's on-disk material.
type SlotConfig struct {
	ChainPath string `yaml:"chain_path" json:"chain_path"`
	KeyPath   string `yaml:"key_path,omitempty" json:"key_path,omitempty"`
}

// PSKConfig locates a pre-shared-key hint table. No package outside config
// reads HintsFile.
type PSKConfig struct {
	HintsFile string `yaml:"hints_file" json:"hints_file"`
}

// SessionConfig holds limits for a table of established sessions.
// session.Manager does not read it: NewManager uses session.DefaultConfig
// and a fixed 30-second cleanup interval.
type SessionConfig struct {
	MaxIdleTime     time.Duration `yaml:"max_idle_time" json:"max_idle_time"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
	MaxSessions     int           `yaml:"max_sessions" json:"max_sessions"`
}

// HandshakeConfig governs how long a requester waits for a handshake
// response (Timeout). MaxRetries and RetryBackoff are not read outside
// config.
type HandshakeConfig struct {
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	MaxRetries   int           `yaml:"max_retries" json:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff" json:"retry_backoff"`
}

// LoggingConfig configures internal/logger's structured output.
type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format   string `yaml:"format" json:"format"` // json, text
	Output   string `yaml:"output" json:"output"` // stdout, stderr, file path
	FilePath string `yaml:"file_path,omitempty" json:"file_path,omitempty"`
}

// MetricsConfig configures where internal/metrics exposes its Prometheus
// registry: cmd/spdm-responder serves it on Port when Enabled.
// metrics.StartServer always uses the /metrics path, so Path is not applied.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Port    int    `yaml:"port" json:"port"`
	Path    string `yaml:"path" json:"path"`
}

// HealthConfig describes a liveness/readiness endpoint. No cmd/* binary
// serves it.
type HealthConfig struct {
	Enabled bool     `yaml:"enabled" json:"enabled"`
	Port    int      `yaml:"port" json:"port"`
	Path    string   `yaml:"path" json:"path"`
	Checks  []string `yaml:"checks" json:"checks"`
}
