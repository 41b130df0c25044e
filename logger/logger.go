package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/teranos/dawn/errors"
)

var (
	// Global logger instance
	Logger *zap.SugaredLogger
	// Flag to track if JSON output is enabled
	JSONOutput bool
)

func init() {
	// Initialize with a safe no-op logger at package load time
	// This prevents nil pointer panics if logger is used before Initialize() is called
	Logger = zap.NewNop().Sugar()
}

// Initialize sets up the global logger based on the JSON output preference
func Initialize(jsonOutput bool) error {
	return InitializeWithLevel(jsonOutput, zap.InfoLevel)
}

// InitializeWithLevel sets up the global logger writing to stdout at the given level.
func InitializeWithLevel(jsonOutput bool, level zapcore.Level) error {
	core, err := newStdoutCore(jsonOutput, level)
	if err != nil {
		return err
	}

	JSONOutput = jsonOutput
	Logger = zap.New(core).Sugar()
	return nil
}

// InitializeWithFile tees log output to stdout and an append-only log file.
// The file always receives uncolored lines with full dates so it stays
// readable with tail/grep after the scheduler has been running for days.
func InitializeWithFile(jsonOutput bool, level zapcore.Level, path string) error {
	stdoutCore, err := newStdoutCore(jsonOutput, level)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return errors.Wrapf(err, "failed to open log file %s", path)
	}

	var fileEncoder zapcore.Encoder
	if jsonOutput {
		fileEncoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		fileEncoder = newPlainEncoder()
	}

	JSONOutput = jsonOutput
	Logger = zap.New(zapcore.NewTee(
		stdoutCore,
		zapcore.NewCore(fileEncoder, zapcore.AddSync(f), level),
	)).Sugar()
	return nil
}

func newStdoutCore(jsonOutput bool, level zapcore.Level) (zapcore.Core, error) {
	if jsonOutput {
		// JSON structured output for machine consumption
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(level)
		zapLogger, err := config.Build()
		if err != nil {
			return nil, err
		}
		return zapLogger.Core(), nil
	}

	// Human-readable console output. Colors only when stdout is a terminal:
	// the polling scheduler's stdout is redirected into its log file.
	var enc zapcore.Encoder
	if isTerminal(os.Stdout) {
		enc = newMinimalEncoder()
	} else {
		enc = newPlainEncoder()
	}
	return zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), level), nil
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// Cleanup flushes any buffered log entries
func Cleanup() {
	if Logger != nil {
		Logger.Sync()
	}
}

// Named returns a child of the global logger for a component.
func Named(component string) *zap.SugaredLogger {
	return Logger.Named(component)
}

// Infow logs an info message with structured fields
func Infow(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Infow(msg, keysAndValues...)
	}
}

// Errorw logs an error message with structured fields
func Errorw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Errorw(msg, keysAndValues...)
	}
}

// Warnw logs a warning message with structured fields
func Warnw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Warnw(msg, keysAndValues...)
	}
}

// Debugw logs a debug message with structured fields
func Debugw(msg string, keysAndValues ...interface{}) {
	if Logger != nil {
		Logger.Debugw(msg, keysAndValues...)
	}
}
