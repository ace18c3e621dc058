package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Format selects the log encoder
type Format string

const (
	FormatJSON    Format = "json"
	FormatConsole Format = "console"
)

// Config contains the logger initialization inputs
type Config struct {
	Level  string
	Format Format
}

// New creates a structured logger and returns it with a runtime-adjustable level handle
func New(cfg Config) (*zap.Logger, zap.AtomicLevel, error) {
	level, err := resolveLevel(cfg.Level)
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}

	var base zap.Config
	switch Format(strings.ToLower(string(cfg.Format))) {
	case FormatConsole:
		base = zap.NewDevelopmentConfig()
		base.Encoding = string(FormatConsole)
		base.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case FormatJSON, "":
		base = zap.NewProductionConfig()
		base.Encoding = string(FormatJSON)
		base.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		base.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	default:
		return nil, zap.AtomicLevel{}, fmt.Errorf("invalid log format %q", cfg.Format)
	}

	base.Level = level
	base.DisableStacktrace = true

	logger, err := base.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, level, nil
}

func resolveLevel(raw string) (zap.AtomicLevel, error) {
	if strings.TrimSpace(raw) == "" {
		return zap.NewAtomicLevelAt(zapcore.InfoLevel), nil
	}

	var parsed zapcore.Level
	if err := parsed.Set(raw); err != nil {
		return zap.AtomicLevel{}, fmt.Errorf("invalid level %q: %w", raw, err)
	}
	return zap.NewAtomicLevelAt(parsed), nil
}
