// Package logging builds the process logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Options mirrors the logging keys of the config file.
type Options struct {
	Level            string `mapstructure:"log_level"`
	Format           string `mapstructure:"log_format"`
	DisableTimestamp bool   `mapstructure:"log_disable_timestamp"`
	// Out defaults to stderr; stdout is kept for command output.
	Out io.Writer `mapstructure:"-"`
}

// New returns a logrus logger configured from opts. An unknown level or format is
// an error so a typo in the config file is not silently ignored.
func New(opts Options) (*logrus.Logger, error) {
	log := logrus.New()
	level := strings.TrimSpace(opts.Level)
	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	log.Level = lvl

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "text":
		log.Formatter = &logrus.TextFormatter{DisableTimestamp: opts.DisableTimestamp, FullTimestamp: true}
	case "json":
		log.Formatter = &logrus.JSONFormatter{DisableTimestamp: opts.DisableTimestamp}
	default:
		return nil, fmt.Errorf("log format %q: want text or json", opts.Format)
	}

	log.Out = os.Stderr
	if opts.Out != nil {
		log.Out = opts.Out
	}
	return log, nil
}

// Discard returns a logger that drops everything. Used as the default by packages
// that accept an optional logger.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.Out = io.Discard
	return log
}
