// Package logging builds the process logger.
package logging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultFile is where logs are written next to stderr unless configured
// otherwise.
const DefaultFile = "logs/bot.log"

// Options selects the level, encoding and optional file output.
type Options struct {
	Level string // debug, info, warn, error
	// Format is "json" (default) or "console".
	Format string
	// File is appended to in addition to stderr. Empty disables it.
	File string
}

// New builds a zap logger from opts. The log file's directory is created
// when missing.
func New(opts Options) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()

	level := zap.NewAtomicLevel()
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("parsing log level %q: %w", opts.Level, err)
		}
	}
	cfg.Level = level

	switch opts.Format {
	case "", "json":
	case "console":
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	default:
		return nil, fmt.Errorf("unknown log format %q", opts.Format)
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Sampling = nil

	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		cfg.OutputPaths = append(cfg.OutputPaths, opts.File)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	return logger, nil
}
