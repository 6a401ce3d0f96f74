// Package logging provides structured zap logging for the crowd viewer,
// with rotating file output and secret redaction.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger and scrubs credentials out of stream URLs and
// other sensitive fields before they reach any sink.
//
// Example:
//
//	logger, err := NewLogger(true, "crowdview.log")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("stream connected", zap.String("stream_url", url))
type Logger struct {
	zap   *zap.Logger
	sugar *zap.SugaredLogger

	isDevelopment bool
	logFilePath   string
}

// Options configures a Logger built by New.
type Options struct {
	// Development switches the console sink to colored output and lowers the
	// default level to debug.
	Development bool

	// FilePath is the rotated JSON log file. Empty disables the file sink.
	FilePath string

	// Level overrides the mode default when LevelSet is true.
	Level    zapcore.Level
	LevelSet bool

	// File tunes lumberjack rotation. Zero values fall back to defaults.
	File FileWriterConfig
}

// NewLogger creates a Logger writing to stdout and a rotated log file.
// Development mode uses debug level, production uses info.
func NewLogger(isDevelopment bool, logFilePath string) (*Logger, error) {
	return New(Options{
		Development: isDevelopment,
		FilePath:    logFilePath,
		File:        DefaultFileWriterConfig(),
	})
}

// New builds a Logger from opts.
func New(opts Options) (*Logger, error) {
	level := zapcore.InfoLevel
	if opts.Development {
		level = zapcore.DebugLevel
	}
	if opts.LevelSet {
		level = opts.Level
	}

	console := zapcore.Lock(zapcore.AddSync(os.Stdout))

	var core zapcore.Core
	if strings.TrimSpace(opts.FilePath) == "" {
		core = newConsoleCore(level, console, opts.Development)
	} else {
		if err := ensureLogDir(opts.FilePath); err != nil {
			return nil, fmt.Errorf("failed to prepare log file: %w", err)
		}
		file := NewFileWriterWithConfig(opts.FilePath, opts.File)
		core = NewMultiCoreWithWriters(level, console, file, opts.Development)
	}

	return newFromCore(core, opts.Development, opts.FilePath), nil
}

// FromZap wraps an existing zap.Logger, typically one built by zaptest or
// an observer core in tests.
func FromZap(z *zap.Logger) *Logger {
	return &Logger{
		zap:   z.WithOptions(zap.AddCallerSkip(1)),
		sugar: z.WithOptions(zap.AddCallerSkip(1)).Sugar(),
	}
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return FromZap(zap.NewNop())
}

func newFromCore(core zapcore.Core, isDev bool, path string) *Logger {
	z := zap.New(core,
		zap.AddCaller(),
		zap.AddCallerSkip(1),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	return &Logger{
		zap:           z,
		sugar:         z.Sugar(),
		isDevelopment: isDev,
		logFilePath:   path,
	}
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	if l == nil || l.zap == nil {
		return nil
	}
	err := l.zap.Sync()
	if err != nil && isIgnorableSyncError(err) {
		return nil
	}
	return err
}

func (l *Logger) Debug(msg string, fields ...zap.Field) {
	l.zap.Debug(msg, redactFields(fields)...)
}

func (l *Logger) Info(msg string, fields ...zap.Field) {
	l.zap.Info(msg, redactFields(fields)...)
}

func (l *Logger) Warn(msg string, fields ...zap.Field) {
	l.zap.Warn(msg, redactFields(fields)...)
}

func (l *Logger) Error(msg string, fields ...zap.Field) {
	l.zap.Error(msg, redactFields(fields)...)
}

// Fatal logs at FatalLevel then calls os.Exit(1).
func (l *Logger) Fatal(msg string, fields ...zap.Field) {
	l.zap.Fatal(msg, redactFields(fields)...)
}

// Debugw logs with loosely-typed key-value pairs.
func (l *Logger) Debugw(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, redactKeysAndValues(keysAndValues)...)
}

func (l *Logger) Infow(msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, redactKeysAndValues(keysAndValues)...)
}

func (l *Logger) Warnw(msg string, keysAndValues ...interface{}) {
	l.sugar.Warnw(msg, redactKeysAndValues(keysAndValues)...)
}

func (l *Logger) Errorw(msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, redactKeysAndValues(keysAndValues)...)
}

// Infof logs a formatted message. Arguments are not scrubbed, so never
// format a raw stream URL through it.
func (l *Logger) Infof(template string, args ...interface{}) {
	l.sugar.Infof(template, args...)
}

func (l *Logger) Warnf(template string, args ...interface{}) {
	l.sugar.Warnf(template, args...)
}

func (l *Logger) Errorf(template string, args ...interface{}) {
	l.sugar.Errorf(template, args...)
}

// Printf satisfies the minimal printf-style logger interface used by
// third-party hooks such as kardianos/service.
func (l *Logger) Printf(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// With creates a child logger whose entries all carry fields.
func (l *Logger) With(fields ...zap.Field) *Logger {
	z := l.zap.With(redactFields(fields)...)
	return &Logger{
		zap:           z,
		sugar:         z.Sugar(),
		isDevelopment: l.isDevelopment,
		logFilePath:   l.logFilePath,
	}
}

// Named adds a sub-logger name such as "stream" or "webui".
func (l *Logger) Named(name string) *Logger {
	z := l.zap.Named(name)
	return &Logger{
		zap:           z,
		sugar:         z.Sugar(),
		isDevelopment: l.isDevelopment,
		logFilePath:   l.logFilePath,
	}
}

// Zap returns the underlying zap.Logger.
func (l *Logger) Zap() *zap.Logger {
	return l.zap
}

func (l *Logger) IsDevelopment() bool {
	return l.isDevelopment
}

func (l *Logger) LogFilePath() string {
	return l.logFilePath
}

func redactFields(fields []zap.Field) []zap.Field {
	if len(fields) == 0 {
		return fields
	}
	result := make([]zap.Field, len(fields))
	for i, field := range fields {
		result[i] = redactField(field)
	}
	return result
}

func redactField(field zap.Field) zap.Field {
	if IsSensitiveField(field.Key) {
		return zap.String(field.Key, RedactedPlaceholder)
	}
	if field.Type != zapcore.StringType {
		return field
	}
	value := field.String
	if isURLField(field.Key) {
		value = RedactURL(value)
	}
	value = RedactSensitiveData(value)
	if value != field.String {
		return zap.String(field.Key, value)
	}
	return field
}

func redactKeysAndValues(keysAndValues []interface{}) []interface{} {
	if len(keysAndValues) == 0 {
		return keysAndValues
	}
	result := make([]interface{}, len(keysAndValues))
	copy(result, keysAndValues)

	for i := 0; i < len(result)-1; i += 2 {
		key, ok := result[i].(string)
		if !ok {
			continue
		}
		if IsSensitiveField(key) {
			result[i+1] = RedactedPlaceholder
			continue
		}
		if value, ok := result[i+1].(string); ok {
			if isURLField(key) {
				value = RedactURL(value)
			}
			result[i+1] = RedactSensitiveData(value)
		}
	}
	return result
}
