package utils

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var (
	InfoLogger  = newLogger(os.Stdout, logrus.InfoLevel, false)
	ErrorLogger = newLogger(os.Stderr, logrus.WarnLevel, false)
)

func newLogger(out io.Writer, level logrus.Level, jsonFormat bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	if jsonFormat {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
	return logger
}

// InitLogger rebuilds the shared loggers. level is a logrus level name
// ("debug", "info", ...); an unknown level falls back to info.
func InitLogger(level, format string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	jsonFormat := format == "json"

	InfoLogger = newLogger(os.Stdout, lvl, jsonFormat)
	// Errors always go to stderr, never below warn
	errLevel := logrus.ErrorLevel
	if lvl > logrus.WarnLevel {
		errLevel = logrus.WarnLevel
	}
	ErrorLogger = newLogger(os.Stderr, errLevel, jsonFormat)
}
