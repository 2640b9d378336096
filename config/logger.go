package config

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger builds the process logger from the configured level and format.
func NewLogger(c Config) (*logrus.Logger, error) {
	return newLogger(c, os.Stdout)
}

func newLogger(c Config, out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

// DiscardLogger returns a logger that writes nowhere. Used by tests.
func DiscardLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
