package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openspdm/spdm-go/spdmcrypto"
	"github.com/openspdm/spdm-go/wire"
)

func TestConfigLoaderLoadAppliesDefaultsAndEnvSubstitution(t *testing.T) {
	os.Setenv("TEST_TRANSPORT_ADDR", "mctp://0x1a")
	defer os.Unsetenv("TEST_TRANSPORT_ADDR")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "responder.yaml")
	content := `version:
  major: 1
  minor: 3
transport:
  kind: mctp
  address: "${TEST_TRANSPORT_ADDR}"
logging:
  level: debug
  format: text
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	l := NewConfigLoader()
	cfg, err := l.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mctp://0x1a", cfg.Transport.Address)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// algorithms were left unset in the file, so defaults apply
	assert.Equal(t, "sha256", cfg.Algorithms.BaseHash)
	assert.Equal(t, "ecdsa-p256", cfg.Algorithms.BaseAsym)
	assert.Same(t, cfg, l.GetConfig())
}

func TestConfigLoaderLoadFromEnv(t *testing.T) {
	os.Setenv("SPDM_LOG_LEVEL", "warn")
	os.Setenv("SPDM_TRANSPORT_KIND", "pcie-doe")
	os.Setenv("SPDM_METRICS_ENABLED", "true")
	defer func() {
		os.Unsetenv("SPDM_LOG_LEVEL")
		os.Unsetenv("SPDM_TRANSPORT_KIND")
		os.Unsetenv("SPDM_METRICS_ENABLED")
	}()

	l := NewConfigLoader()
	cfg, err := l.LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "pcie-doe", cfg.Transport.Kind)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestConfigLoaderValidateRejectsBadFields(t *testing.T) {
	l := NewConfigLoader()

	tests := []struct {
		name   string
		cfg    *Config
		errMsg string
	}{
		{
			name:   "missing version",
			cfg:    &Config{Algorithms: AlgorithmsConfig{BaseHash: "sha256"}},
			errMsg: "version is required",
		},
		{
			name:   "invalid hash algorithm",
			cfg:    &Config{Version: VersionConfig{Major: 1}, Algorithms: AlgorithmsConfig{BaseHash: "md5"}},
			errMsg: "invalid base hash algorithm",
		},
		{
			name:   "invalid transport kind",
			cfg:    &Config{Version: VersionConfig{Major: 1}, Transport: TransportConfig{Kind: "carrier-pigeon"}},
			errMsg: "invalid transport kind",
		},
		{
			name: "invalid log level",
			cfg: &Config{Version: VersionConfig{Major: 1},
				Logging: &LoggingConfig{Level: "verbose"}},
			errMsg: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.Validate(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}

	valid := &Config{Version: VersionConfig{Major: 1, Minor: 3}, Algorithms: AlgorithmsConfig{BaseHash: "sha256"}}
	assert.NoError(t, l.Validate(valid))
}

func TestConfigLoaderGetConfigNilUntilLoaded(t *testing.T) {
	l := NewConfigLoader()
	assert.Nil(t, l.GetConfig())
}

func TestSetDefaultsFillsSessionAndHandshake(t *testing.T) {
	cfg := &Config{Session: &SessionConfig{}, Handshake: &HandshakeConfig{}}
	setDefaults(cfg)

	assert.Equal(t, 30*time.Minute, cfg.Session.MaxIdleTime)
	assert.Equal(t, 5*time.Minute, cfg.Session.CleanupInterval)
	assert.Equal(t, 10000, cfg.Session.MaxSessions)

	assert.Equal(t, 30*time.Second, cfg.Handshake.Timeout)
	assert.Equal(t, 3, cfg.Handshake.MaxRetries)
	assert.Equal(t, 1*time.Second, cfg.Handshake.RetryBackoff)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "roundtrip.json")

	cfg := &Config{
		Version:    VersionConfig{Major: 1, Minor: 3},
		Algorithms: AlgorithmsConfig{BaseHash: "sha384", BaseAsym: "ecdsa-p384", Dhe: "x448", Aead: "aes-256-gcm", MeasurementHash: "sha256"},
		Certificates: CertificatesConfig{
			Slots:           map[string]SlotConfig{"0": {ChainPath: "/etc/spdm/chain0.der"}},
			TrustedRootPath: "/etc/spdm/root.der",
		},
	}
	require.NoError(t, SaveToFile(cfg, path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Algorithms, loaded.Algorithms)
	assert.Equal(t, "/etc/spdm/chain0.der", loaded.Certificates.Slots["0"].ChainPath)
}

func TestSubstituteEnvVarsDefaultValue(t *testing.T) {
	assert.Equal(t, "fallback", SubstituteEnvVars("${NEVER_SET_XYZ:fallback}"))
}

func TestAlgorithmsConfigResolve(t *testing.T) {
	a := AlgorithmsConfig{BaseHash: "sha256", BaseAsym: "ecdsa-p256", Dhe: "x25519", Aead: "aes-128-gcm"}
	hash, asym, dhe, aead, err := a.Resolve()
	require.NoError(t, err)
	assert.Equal(t, spdmcrypto.HashSHA256, hash)
	assert.Equal(t, spdmcrypto.AsymECDSAP256, asym)
	assert.Equal(t, spdmcrypto.DheX25519, dhe)
	assert.Equal(t, spdmcrypto.AeadAES128GCM, aead)

	_, _, _, _, err = AlgorithmsConfig{BaseHash: "md5"}.Resolve()
	assert.Error(t, err)
}

func TestCapabilitiesConfigFlags(t *testing.T) {
	c := CapabilitiesConfig{CertCap: true, ChalCap: true, KeyExCap: true, EncryptCap: true}
	f := c.Flags()
	assert.NotZero(t, f&wire.CapCertCap)
	assert.NotZero(t, f&wire.CapChalCap)
	assert.NotZero(t, f&wire.CapKeyExCap)
	assert.NotZero(t, f&wire.CapEncryptCap)
	assert.Zero(t, f&wire.CapPSKCap)
}

func TestGetEnvironmentAndHelpers(t *testing.T) {
	os.Unsetenv("SPDM_ENV")
	os.Unsetenv("ENVIRONMENT")
	assert.Equal(t, "development", GetEnvironment())
	assert.True(t, IsDevelopment())
	assert.False(t, IsProduction())

	os.Setenv("SPDM_ENV", "production")
	defer os.Unsetenv("SPDM_ENV")
	assert.Equal(t, "production", GetEnvironment())
	assert.True(t, IsProduction())
}
