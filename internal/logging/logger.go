// Package logging provides zap logger helpers.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options controls logger construction.
type Options struct {
	// Development selects the console encoder with colored levels.
	Development bool
	// Debug lowers the minimum level to debug.
	Debug bool
	// ErrorLog, when set, receives a JSON copy of every error-level entry.
	ErrorLog string
}

// New builds a zap.Logger configured for development or production. The
// returned cleanup func closes the error log file and must be called once
// the logger is no longer used.
func New(opts Options) (*zap.Logger, func(), error) {
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = false
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.EncoderConfig.TimeKey = "ts"
	if opts.Debug {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	} else {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	var buildOpts []zap.Option
	cleanup := func() {}
	if opts.ErrorLog != "" {
		sink, closeSink, err := zap.Open(opts.ErrorLog)
		if err != nil {
			return nil, nil, fmt.Errorf("open error log %q: %w", opts.ErrorLog, err)
		}
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "ts"
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		errCore := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, zap.ErrorLevel)
		buildOpts = append(buildOpts, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, errCore)
		}))
		cleanup = closeSink
	}

	logger, err := cfg.Build(buildOpts...)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, cleanup, nil
}
