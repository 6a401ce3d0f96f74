package logging

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"

	"go.uber.org/zap/zapcore"
)

// NewMultiCore tees output to stdout and a rotated file at filePath.
//
// The file sink always encodes JSON. The console sink is human-readable in
// development and JSON otherwise.
func NewMultiCore(level zapcore.Level, filePath string, isDev bool) (zapcore.Core, error) {
	if err := ensureLogDir(filePath); err != nil {
		return nil, err
	}
	// Probe writability up front; lumberjack would otherwise fail on first write.
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	f.Close()

	return NewMultiCoreWithWriters(
		level,
		zapcore.Lock(zapcore.AddSync(os.Stdout)),
		NewFileWriter(filePath),
		isDev,
	), nil
}

// NewMultiCoreWithWriters tees output to the provided writers. Tests pass
// buffers here.
func NewMultiCoreWithWriters(level zapcore.Level, consoleWriter, fileWriter zapcore.WriteSyncer, isDev bool) zapcore.Core {
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(NewEncoderConfig()),
		fileWriter,
		level,
	)
	return zapcore.NewTee(newConsoleCore(level, consoleWriter, isDev), fileCore)
}

func newConsoleCore(level zapcore.Level, w zapcore.WriteSyncer, isDev bool) zapcore.Core {
	var enc zapcore.Encoder
	if isDev {
		enc = zapcore.NewConsoleEncoder(NewConsoleEncoderConfig())
	} else {
		enc = zapcore.NewJSONEncoder(NewEncoderConfig())
	}
	return zapcore.NewCore(enc, w, level)
}

// ensureLogDir creates the parent directory of path. It does not create
// deep missing hierarchies beyond one level so that typos surface early.
func ensureLogDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	if _, err := os.Stat(filepath.Dir(dir)); err != nil {
		return err
	}
	return os.Mkdir(dir, 0o755)
}

// isIgnorableSyncError reports errors returned when syncing a terminal or
// pipe, which zap surfaces on every Sync of os.Stdout.
func isIgnorableSyncError(err error) bool {
	return errors.Is(err, syscall.EINVAL) || errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EBADF)
}
