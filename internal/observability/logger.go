// Package observability provides logging and metrics functionality.
package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a new zap logger. appEnv selects the base encoder:
// production/staging get JSON output, anything else gets the console
// encoder. logLevel is parsed as a zap level, defaulting to info on a bad
// value since the config loader already validates it's one of
// debug/info/warn/error before this is called.
func NewLogger(logLevel, appEnv string) (*zap.Logger, error) {
	var zapConfig zap.Config

	if appEnv == "production" || appEnv == "staging" {
		zapConfig = zap.NewProductionConfig()
	} else {
		zapConfig = zap.NewDevelopmentConfig()
	}

	level, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapConfig.Level = zap.NewAtomicLevelAt(level)

	return zapConfig.Build()
}

// NewNopLogger creates a no-op logger for testing.
func NewNopLogger() *zap.Logger {
	return zap.NewNop()
}
