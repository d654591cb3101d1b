package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/openspdm/spdm-go/config"
	"github.com/openspdm/spdm-go/connection"
	"github.com/openspdm/spdm-go/internal/keymaterial"
	"github.com/openspdm/spdm-go/internal/logger"
	"github.com/openspdm/spdm-go/spdmcrypto/software"
	"github.com/openspdm/spdm-go/transport/wstransport"
)

func loadConfig() (*config.Config, error) {
	if cfgPath == "" {
		return config.NewConfigLoader().LoadFromEnv()
	}
	return config.NewConfigLoader().Load(cfgPath)
}

func newLogger(cfg *config.Config) logger.Logger {
	level := logger.InfoLevel
	out := os.Stdout
	if cfg.Logging != nil {
		switch cfg.Logging.Level {
		case "debug":
			level = logger.DebugLevel
		case "warn":
			level = logger.WarnLevel
		case "error":
			level = logger.ErrorLevel
		}
		if cfg.Logging.Output == "stderr" {
			out = os.Stderr
		}
	}
	return logger.NewLogger(out, level)
}

// dialAndBuildContext dials the configured Responder and builds a fresh
// requester-side Context with the configured algorithm proposal installed,
// mirroring how cmd/spdm-responder provisions its per-connection Context.
func dialAndBuildContext(ctx context.Context, cfg *config.Config, log logger.Logger) (*connection.Context, [8][]byte, func() error, error) {
	url := cfg.Transport.Address
	if dialURL != "" {
		url = dialURL
	}
	if url == "" {
		return nil, [8][]byte{}, nil, fmt.Errorf("spdm-requester: no Responder URL (set transport.address in config or pass --url)")
	}

	t, err := wstransport.Dial(ctx, url, cfg.Transport.DialTimeout, cfg.Transport.DialTimeout)
	if err != nil {
		return nil, [8][]byte{}, nil, err
	}

	backend := software.New()
	c := connection.NewContext(connection.RoleRequester, t, backend, log, cfg.Version.Version(), cfg.Capabilities.Flags())
	if hash, asym, dhe, aead, err := cfg.Algorithms.Resolve(); err == nil {
		c.Algorithms = connection.NegotiatedAlgorithms{BaseHash: hash, BaseAsym: asym, Dhe: dhe, Aead: aead}
	}

	var trustAnchors [8][]byte
	if cfg.Certificates.TrustedRootPath != "" {
		anchor, err := keymaterial.LoadTrustAnchor(cfg.Certificates.TrustedRootPath)
		if err != nil {
			t.Close()
			return nil, [8][]byte{}, nil, err
		}
		for slot := range trustAnchors {
			trustAnchors[slot] = anchor
		}
	}

	return c, trustAnchors, t.Close, nil
}

func handshakeTimeout(cfg *config.Config) time.Duration {
	if cfg.Handshake != nil && cfg.Handshake.Timeout != 0 {
		return cfg.Handshake.Timeout
	}
	return 30 * time.Second
}
