// Package zaplogging backs logging.Logger with a zap SugaredLogger.
package zaplogging

import (
	"fmt"

	"github.com/autoblog/autoblog-procman/pkg/errors"
	"github.com/autoblog/autoblog-procman/pkg/logging"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel maps the level names accepted on the command line to zap levels
func ParseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zapcore.DebugLevel, nil
	case "", "info":
		return zapcore.InfoLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, errors.NewValidationError(
			fmt.Sprintf("invalid log level: %s", level),
			nil,
		).WithContext("valid_levels", "debug, info, warn, error")
	}
}

// NewZapLogger builds a console zap logger writing to stderr at the given level
func NewZapLogger(level string) (*zap.SugaredLogger, error) {
	zapLevel, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.DisableStacktrace = true
	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	base, err := config.Build()
	if err != nil {
		return nil, errors.NewInternalError("failed to build zap logger", err)
	}
	return base.Sugar(), nil
}

// LogFuncs adapts a SugaredLogger to logging.LogFuncs
func LogFuncs(sugar *zap.SugaredLogger) logging.LogFuncs {
	return logging.LogFuncs{
		LogLevelf: func(level int, format string, args ...interface{}) {
			sugar.Logf(zapLevel(level), format, args...)
		},
		Debugf: sugar.Debugf,
		Infof:  sugar.Infof,
		Warnf:  sugar.Warnf,
		Errorf: sugar.Errorf,
	}
}

func zapLevel(level int) zapcore.Level {
	switch level {
	case logging.DebugLevel:
		return zapcore.DebugLevel
	case logging.WarnLevel:
		return zapcore.WarnLevel
	case logging.ErrorLevel:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// NewLogger is the one-call constructor used by the binaries
func NewLogger(prefix, level string) (logging.Logger, func(), error) {
	sugar, err := NewZapLogger(level)
	if err != nil {
		return nil, nil, err
	}
	sync := func() { _ = sugar.Sync() }
	return logging.NewLogger(prefix, LogFuncs(sugar)), sync, nil
}
