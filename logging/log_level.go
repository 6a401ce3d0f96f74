package logging

import (
	"os"
	"strings"

	"go.uber.org/zap/zapcore"
)

// LevelEnvVar names the environment variable that overrides the log level.
const LevelEnvVar = "CROWDVIEW_LOG_LEVEL"

// ParseLogLevel reads envVarName and parses it, returning defaultLevel
// when the variable is unset or unrecognised.
//
//	level := ParseLogLevel(LevelEnvVar, zapcore.InfoLevel)
func ParseLogLevel(envVarName string, defaultLevel zapcore.Level) zapcore.Level {
	value := os.Getenv(envVarName)
	if value == "" {
		return defaultLevel
	}
	return ParseLogLevelString(value, defaultLevel)
}

// ParseLogLevelString accepts debug, info, warn/warning, error and fatal in
// any case.
func ParseLogLevelString(levelStr string, defaultLevel zapcore.Level) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return defaultLevel
	}
}

// IsValidLevel reports whether levelStr names a known level.
func IsValidLevel(levelStr string) bool {
	const sentinel = zapcore.InvalidLevel
	return ParseLogLevelString(levelStr, sentinel) != sentinel
}
