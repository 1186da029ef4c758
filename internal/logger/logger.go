// Package logger builds the zap logger shared by every storyworld component.
package logger

import (
	"cmp"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"storyworld/internal/config"
)

const serviceName = "storyworld"

// New builds the logger described by the log section of the configuration.
// Level and encoding default to info and json; an empty output path means
// stdout. Unknown levels and encodings are configuration errors.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cmp.Or(cfg.Level, "info")))
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	enc, err := encoder(cmp.Or(cfg.Encoding, "json"))
	if err != nil {
		return nil, err
	}

	out, _, err := zap.Open(cmp.Or(cfg.OutputPath, "stdout"))
	if err != nil {
		return nil, fmt.Errorf("open log output %q: %w", cfg.OutputPath, err)
	}

	return zap.New(
		zapcore.NewCore(enc, out, level),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
		zap.Fields(zap.String("service", serviceName)),
	), nil
}

// ForTerminal builds the logger used while the terminal player owns the
// screen: debug entries go to path as JSON and nothing reaches stdout. An
// empty path disables logging.
func ForTerminal(path string) (*zap.Logger, error) {
	if path == "" {
		return zap.NewNop(), nil
	}
	return New(config.LogConfig{Level: "debug", Encoding: "json", OutputPath: path})
}

func encoder(name string) (zapcore.Encoder, error) {
	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "timestamp"
	ec.EncodeTime = zapcore.ISO8601TimeEncoder
	ec.EncodeLevel = zapcore.CapitalLevelEncoder

	switch strings.ToLower(name) {
	case "json":
		return zapcore.NewJSONEncoder(ec), nil
	case "console":
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(ec), nil
	default:
		return nil, fmt.Errorf("unknown log encoding %q", name)
	}
}
