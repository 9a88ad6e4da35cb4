package telemetry

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoggerOptions configures NewLogger.
type LoggerOptions struct {
	Level string
	// JSON selects the production encoder; otherwise the console encoder is used.
	JSON bool
}

// NewLogger builds a logger that writes to stderr so command output on stdout stays clean.
func NewLogger(opts LoggerOptions) (*zap.Logger, zap.AtomicLevel, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, zap.AtomicLevel{}, err
	}
	atomic := zap.NewAtomicLevelAt(level)

	cfg := zap.NewDevelopmentConfig()
	if opts.JSON {
		cfg = zap.NewProductionConfig()
	}
	cfg.Level = atomic
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true

	logger, err := cfg.Build()
	if err != nil {
		return nil, zap.AtomicLevel{}, fmt.Errorf("build logger: %w", err)
	}
	return logger, atomic, nil
}

// ParseLevel accepts zap level names; empty means info.
func ParseLevel(raw string) (zapcore.Level, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(raw))); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}
