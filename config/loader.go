package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// ConfigLoader loads and caches the active Config, guarding concurrent
// access the way session.Manager guards its session table.
type ConfigLoader struct {
	mu     sync.RWMutex
	config *Config
}

// NewConfigLoader returns an empty loader; call Load or LoadFromEnv to
// populate it.
func NewConfigLoader() *ConfigLoader {
	return &ConfigLoader{}
}

// Load reads path, substitutes ${VAR} references, applies defaults,
// validates, and caches the result.
func (l *ConfigLoader) Load(path string) (*Config, error) {
	cfg, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}

	SubstituteEnvVarsInConfig(cfg)
	setDefaults(cfg)

	if err := l.Validate(cfg); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.config = cfg
	l.mu.Unlock()
	return cfg, nil
}

// LoadFromEnv builds a Config entirely from SPDM_* environment variables
// plus defaults, with no file on disk involved.
func (l *ConfigLoader) LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Environment: GetEnvironment(),
		Version: VersionConfig{
			Major: uint8(getEnvInt("SPDM_VERSION_MAJOR", 1)),
			Minor: uint8(getEnvInt("SPDM_VERSION_MINOR", 3)),
		},
		Algorithms: AlgorithmsConfig{
			BaseHash: getEnvOrDefault("SPDM_BASE_HASH", ""),
			BaseAsym: getEnvOrDefault("SPDM_BASE_ASYM", ""),
			Dhe:      getEnvOrDefault("SPDM_DHE", ""),
			Aead:     getEnvOrDefault("SPDM_AEAD", ""),
		},
		Transport: TransportConfig{
			Kind:        getEnvOrDefault("SPDM_TRANSPORT_KIND", ""),
			Address:     getEnvOrDefault("SPDM_TRANSPORT_ADDRESS", ""),
			DialTimeout: getEnvDuration("SPDM_TRANSPORT_DIAL_TIMEOUT", 0),
		},
		Certificates: CertificatesConfig{
			TrustedRootPath: getEnvOrDefault("SPDM_TRUSTED_ROOT_PATH", ""),
		},
		PSK: PSKConfig{
			HintsFile: getEnvOrDefault("SPDM_PSK_HINTS_FILE", ""),
		},
		Session: &SessionConfig{
			MaxIdleTime:     getEnvDuration("SPDM_SESSION_MAX_IDLE_TIME", 0),
			CleanupInterval: getEnvDuration("SPDM_SESSION_CLEANUP_INTERVAL", 0),
			MaxSessions:     getEnvInt("SPDM_SESSION_MAX_SESSIONS", 0),
		},
		Handshake: &HandshakeConfig{
			Timeout: getEnvDuration("SPDM_HANDSHAKE_TIMEOUT", 0),
		},
		Logging: &LoggingConfig{
			Level:  getEnvOrDefault("SPDM_LOG_LEVEL", ""),
			Format: getEnvOrDefault("SPDM_LOG_FORMAT", ""),
			Output: getEnvOrDefault("SPDM_LOG_OUTPUT", ""),
		},
		Metrics: &MetricsConfig{
			Enabled: getEnvBool("SPDM_METRICS_ENABLED", false),
			Port:    getEnvInt("SPDM_METRICS_PORT", 0),
		},
	}

	setDefaults(cfg)
	if err := l.Validate(cfg); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.config = cfg
	l.mu.Unlock()
	return cfg, nil
}

// Validate returns the first error-level ValidationError found in cfg, or
// nil if cfg is fit to run with (warnings are logged by the caller, not
// rejected).
func (l *ConfigLoader) Validate(cfg *Config) error {
	for _, e := range ValidateConfiguration(cfg) {
		if e.Level == "error" {
			return e
		}
	}
	return nil
}

// GetConfig returns the most recently loaded Config, or nil if nothing has
// been loaded yet.
func (l *ConfigLoader) GetConfig() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// LoadForEnvironment loads dir/<environment>.yaml, falling back to
// dir/default.yaml.
func LoadForEnvironment(dir, environment string) (*Config, error) {
	l := NewConfigLoader()
	cfg, err := l.Load(dir + "/" + environment + ".yaml")
	if err != nil {
		return l.Load(dir + "/default.yaml")
	}
	return cfg, nil
}

// MustLoad loads path or panics, for cmd/* wiring where a broken config
// file should fail fast at startup.
func MustLoad(path string) *Config {
	cfg, err := NewConfigLoader().Load(path)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
