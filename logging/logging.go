// Package logging builds the zap loggers used by the binaries.
package logging

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the log level and encoding.
type Config struct {
	// Level is debug, info, warn or error. Empty means info.
	Level string `yaml:"level"`
	// JSON switches from the console encoder to JSON lines.
	JSON bool `yaml:"json"`
	// Color enables colored levels on the console encoder.
	Color bool `yaml:"color"`
}

// ParseLevel maps a level name to a zap level.
func ParseLevel(name string) (zapcore.Level, error) {
	if name == "" {
		return zapcore.InfoLevel, nil
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(name))); err != nil {
		return lvl, errors.Wrapf(err, "invalid log level %q", name)
	}
	return lvl, nil
}

// NewLoggerConfig returns a console config writing Info+ to stderr with
// stacktraces disabled.
func NewLoggerConfig() zap.Config {
	return zap.Config{
		Level:    zap.NewAtomicLevelAt(zap.InfoLevel),
		Encoding: "console",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			FunctionKey:    zapcore.OmitKey,
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.CapitalLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.StringDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		DisableStacktrace: true,
		OutputPaths:       []string{"stderr"},
		ErrorOutputPaths:  []string{"stderr"},
	}
}

// ZapConfig applies c to NewLoggerConfig.
func (c Config) ZapConfig() (zap.Config, error) {
	zc := NewLoggerConfig()

	lvl, err := ParseLevel(c.Level)
	if err != nil {
		return zc, err
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)

	if c.JSON {
		zc.Encoding = "json"
	} else if c.Color {
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return zc, nil
}

// NewLogger builds a named logger from c.
func NewLogger(name string, c Config) (*zap.Logger, error) {
	zc, err := c.ZapConfig()
	if err != nil {
		return nil, err
	}
	logger, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(err, "failed to build logger")
	}
	return logger.Named(name), nil
}
