// Package clistack builds the provisioning stack for CLI commands from the same environment
// the API server reads.
package clistack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/zenGate-Global/palmyra-workspaces/apps/internal/wiring"
	platformlogging "github.com/zenGate-Global/palmyra-workspaces/platform/go/logging"
)

// LoadConfig reads .env (when present) and the process environment.
func LoadConfig() (wiring.Config, error) {
	_ = godotenv.Load()

	var cfg wiring.Config
	if err := env.Parse(&cfg); err != nil {
		return wiring.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// NewLogger writes console logs to stderr so command output stays parseable.
func NewLogger(level string) (*zap.Logger, error) {
	return platformlogging.NewLogger(platformlogging.Config{
		Component: "cli",
		Level:     level,
		Format:    "console",
		Output:    zapcore.Lock(os.Stderr),
	})
}

// Open loads the configuration and builds the stack. The returned close func releases it.
func Open(ctx context.Context) (*wiring.Stack, func(), error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	stack, err := wiring.Build(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return stack, func() {
		stack.Close()
		_ = logger.Sync()
	}, nil
}

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
