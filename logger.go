package main

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// newLogger builds the run's logger. verbose and quiet override level.
func newLogger(w io.Writer, level, format string, verbose, quiet bool) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(w)

	lvl := logrus.InfoLevel
	if level != "" {
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}
	switch {
	case verbose:
		lvl = logrus.DebugLevel
	case quiet:
		lvl = logrus.WarnLevel
	}
	logger.SetLevel(lvl)

	switch format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{TimestampFormat: time.RFC3339, FullTimestamp: true})
	default:
		return nil, fmt.Errorf("invalid log format %q: want text or json", format)
	}

	return logger, nil
}
