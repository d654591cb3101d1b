package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/openspdm/spdm-go/config"
	"github.com/openspdm/spdm-go/internal/logger"
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

func decodeHex(field, s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("spdm-responder: invalid hex for --%s: %w", field, err)
	}
	return b, nil
}
