package config

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var globalLogger *zap.Logger

// InitLogger builds a zap logger at the given level. The "json" format uses
// the production encoder; anything else gets the console development one.
func InitLogger(logLevelStr, format string) (*zap.Logger, error) {
	var config zap.Config
	if strings.EqualFold(format, "json") {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}
	config.Level = zap.NewAtomicLevelAt(ParseLevel(logLevelStr))

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	// Store for cleanup purposes
	globalLogger = logger

	return logger, nil
}

// ParseLevel maps a level name to a zap level, defaulting to info.
// "warning" is accepted as an alias for warn.
func ParseLevel(logLevelStr string) zapcore.Level {
	name := strings.ToLower(strings.TrimSpace(logLevelStr))
	if name == "warning" {
		name = "warn"
	}
	level, err := zapcore.ParseLevel(name)
	if err != nil || level < zap.DebugLevel || level > zap.ErrorLevel {
		return zap.InfoLevel
	}
	return level
}

// Cleanup flushes any buffered log entries
func Cleanup() {
	if globalLogger != nil {
		_ = globalLogger.Sync()
	}
}
