package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	global *zap.SugaredLogger
	level  = zap.NewAtomicLevelAt(zap.InfoLevel)
)

// Init sets the logger returned by Logger.
func Init(z *zap.SugaredLogger) { global = z }

// Logger returns the process logger. It is never nil: before Init or Setup
// it is a no-op logger.
func Logger() *zap.SugaredLogger {
	if global == nil {
		return zap.NewNop().Sugar()
	}
	return global
}

// Setup builds a console logger writing to stderr at the given level and
// installs it both here and as the zap global.
func Setup(levelName string) error {
	if err := SetLogLevel(levelName); err != nil {
		return err
	}

	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.Level = level
	cfg.DisableStacktrace = true
	cfg.Sampling = nil
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	z, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	zap.ReplaceGlobals(z)
	Init(z.Sugar())
	return nil
}

// SetLogLevel changes the level of the logger built by Setup. An empty name
// leaves the level unchanged.
func SetLogLevel(levelName string) error {
	if levelName == "" {
		return nil
	}
	l, err := ParseLevel(levelName)
	if err != nil {
		return err
	}
	level.SetLevel(l)
	return nil
}

// Level returns the current level name.
func Level() string {
	return level.Level().String()
}

// ParseLevel maps a configured level name to a zap level.
func ParseLevel(levelName string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(levelName)) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info", "":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q (expected debug|info|warn|error)", levelName)
	}
}
