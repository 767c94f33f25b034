// Package logger builds the zap loggers used across the storefront.
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const serviceName = "textile-store"

// New returns the process logger: JSON to stdout in production, coloured
// console output elsewhere. level overrides the default of info in
// production and debug otherwise.
func New(env string, level ...string) (*zap.Logger, error) {
	lvl := ""
	if len(level) > 0 {
		lvl = level[0]
	}
	return build(env, lvl, zapcore.Lock(os.Stdout))
}

// build wires the encoder for env to sink. Errors carry a stacktrace.
func build(env, level string, sink zapcore.WriteSyncer) (*zap.Logger, error) {
	production := env == "production"

	enabled := zapcore.DebugLevel
	if production {
		enabled = zapcore.InfoLevel
	}
	if level != "" {
		parsed, err := zapcore.ParseLevel(strings.ToLower(level))
		if err != nil {
			return nil, err
		}
		enabled = parsed
	}

	var encoder zapcore.Encoder
	if production {
		cfg := zap.NewProductionEncoderConfig()
		cfg.TimeKey = "timestamp"
		cfg.MessageKey = "message"
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(cfg)
	}

	core := zapcore.NewCore(encoder, sink, zap.NewAtomicLevelAt(enabled))
	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
	).With(zap.String("service", serviceName)), nil
}

// Email logs an address with most of the local part masked.
func Email(key, addr string) zap.Field {
	local, domain, ok := strings.Cut(addr, "@")
	if !ok || local == "" {
		return zap.String(key, "***")
	}
	return zap.String(key, local[:1]+"***@"+domain)
}
