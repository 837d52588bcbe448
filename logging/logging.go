// Package logging - Logrus logger construction.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Config selects the level, format and optional file of a logger.
type Config struct {
	// Level is a logrus level name such as "debug" or "info".
	Level string `json:"level" yaml:"level" mapstructure:"level"`
	// Format is "text" or "json".
	Format string `json:"format" yaml:"format" mapstructure:"format"`
	// File, when set, receives a copy of every entry.
	File string `json:"file" yaml:"file" mapstructure:"file"`
}

// New builds a logger writing to out, and to cfg.File when set.
//
// Arguments:
//   - cfg: The logger configuration.
//   - out: The primary writer, usually os.Stdout.
//
// Returns:
//   - *logrus.Logger: The logger.
//   - io.Closer: Closes the log file; a no-op when there is none.
//   - error: An error for an unknown level or format, or an unopenable file.
func New(cfg Config, out io.Writer) (*logrus.Logger, io.Closer, error) {
	log := logrus.New()

	level := cfg.Level
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "invalid log level %q", cfg.Level)
	}
	log.SetLevel(lvl)

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, nil, errors.Errorf("invalid log format %q", cfg.Format)
	}

	if cfg.File == "" {
		log.SetOutput(out)
		return log, nopCloser{}, nil
	}

	file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to open log file %s", cfg.File)
	}
	// Write to both out and file.
	log.SetOutput(io.MultiWriter(out, file))
	return log, file, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
