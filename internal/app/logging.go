package app

import (
	"go.uber.org/zap"

	"mcpdesk/internal/infra/config"
	"mcpdesk/internal/infra/telemetry"
)

// Logging bundles the logger and its adjustable level.
type Logging struct {
	Logger *zap.Logger
	Level  zap.AtomicLevel
}

// NewLogging builds the process logger from the loaded config.
func NewLogging(cfg config.Config) (Logging, func(), error) {
	logger, level, err := telemetry.NewLogger(telemetry.LoggerOptions{
		Level: cfg.Log.Level,
		JSON:  cfg.Log.JSON,
	})
	if err != nil {
		return Logging{}, nil, err
	}
	cleanup := func() {
		_ = logger.Sync()
	}
	return Logging{Logger: logger.Named("mcpdesk"), Level: level}, cleanup, nil
}

// NewLogger returns the logger from a Logging bundle.
func NewLogger(logging Logging) *zap.Logger {
	return logging.Logger
}
