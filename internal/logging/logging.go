// Package logging configures the application-wide structured logger.
// The pipeline emits request-scoped diagnostic events (which candidate,
// page, or row was skipped); this package only decides where they go and
// how they look, never what gets logged.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logging settings.
type Config struct {
	Level      string `mapstructure:"level"       yaml:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"      yaml:"format"` // text or json
	File       string `mapstructure:"file"        yaml:"file"`   // empty = stderr only
	MaxSizeMB  int    `mapstructure:"max_size"    yaml:"max_size"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age"     yaml:"max_age"`
}

// New builds a logrus logger from the config.
func New(cfg Config) (*logrus.Logger, error) {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	logger.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	logger.SetOutput(output(cfg))
	return logger, nil
}

// output returns stderr, a rotating file, or both.
func output(cfg Config) io.Writer {
	if cfg.File == "" {
		return os.Stderr
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    orDefault(cfg.MaxSizeMB, 100),
		MaxBackups: orDefault(cfg.MaxBackups, 3),
		MaxAge:     orDefault(cfg.MaxAgeDays, 28),
		Compress:   true,
	}
	return io.MultiWriter(os.Stderr, rotator)
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
