package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the level, encoding and destination of a logger. Empty
// fields take their value from DefaultConfig.
type Config struct {
	// Level is one of debug, info, warn, error or fatal, in any case.
	Level string
	// Format is json or console.
	Format string
	// Output is stdout, stderr or a file path.
	Output string
}

// DefaultConfig returns the default logging configuration.
func DefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: "json",
		Output: "stderr",
	}
}

// NewLogger creates a new logger with the given configuration.
func NewLogger(cfg *Config) (*Logger, error) {
	c := *DefaultConfig()
	if cfg != nil {
		if cfg.Level != "" {
			c.Level = cfg.Level
		}
		if cfg.Format != "" {
			c.Format = cfg.Format
		}
		if cfg.Output != "" {
			c.Output = cfg.Output
		}
	}

	level, err := ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	if c.Format != "json" && c.Format != "console" {
		return nil, fmt.Errorf("unknown log format %q", c.Format)
	}

	sink, _, err := zap.Open(c.Output)
	if err != nil {
		return nil, fmt.Errorf("open log output %q: %w", c.Output, err)
	}
	return newLogger(level, c.Format, sink), nil
}

// ParseLevel maps a level name onto a LogLevel. The empty string is info.
func ParseLevel(name string) (LogLevel, error) {
	if name == "" {
		return InfoLevel, nil
	}
	l, err := zapcore.ParseLevel(strings.ToLower(name))
	if err != nil {
		return "", fmt.Errorf("unknown log level %q", name)
	}
	switch l {
	case zapcore.DebugLevel:
		return DebugLevel, nil
	case zapcore.InfoLevel:
		return InfoLevel, nil
	case zapcore.WarnLevel:
		return WarnLevel, nil
	case zapcore.ErrorLevel:
		return ErrorLevel, nil
	case zapcore.FatalLevel:
		return FatalLevel, nil
	default:
		return "", fmt.Errorf("unsupported log level %q", name)
	}
}
