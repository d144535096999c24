// Package logger builds the logrus loggers used by the daemon and CLI.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// TimestampFormat is the timestamp layout used by both formatters.
const TimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// Format selects the log line encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// New returns a logger writing to stderr at the given level.
// level is one of debug, info, warn, error (case-insensitive); anything
// else falls back to info. format is json or text; anything else is json.
func New(level string, format string) *logrus.Logger {
	return NewWithOutput(os.Stderr, level, format)
}

// NewWithOutput is New with an explicit destination.
func NewWithOutput(out io.Writer, level string, format string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)

	switch Format(strings.ToLower(strings.TrimSpace(format))) {
	case FormatText:
		log.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: TimestampFormat,
			FullTimestamp:   true,
		})
	default:
		log.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: TimestampFormat,
		})
	}

	log.SetLevel(ParseLevel(level))
	return log
}

// ParseLevel parses a level name, defaulting to info.
func ParseLevel(level string) logrus.Level {
	parsed, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return logrus.InfoLevel
	}
	return parsed
}

// Discard returns a logger that drops everything. Components use it when
// no logger is injected.
func Discard() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	log.SetLevel(logrus.PanicLevel)
	return log
}
