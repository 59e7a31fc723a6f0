// Package logging builds the zap loggers used across bluescan.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ModeRelease selects JSON production logging. Any other mode logs in
// colored development format.
const ModeRelease = "release"

// New builds a logger for mode.
func New(mode string) (*zap.Logger, error) {
	var config zap.Config

	if mode == ModeRelease {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	return config.Build()
}

// Sync flushes buffered entries, ignoring the errors stderr returns on some platforms.
func Sync(logger *zap.Logger) {
	if logger != nil {
		_ = logger.Sync()
	}
}
