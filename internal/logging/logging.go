package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

// New returns a configured logger. Production gets JSON output for log
// aggregation; everything else gets the human-readable text formatter.
func New(env string) *logrus.Logger {
	l := logrus.New()
	if env == "production" || env == "prod" {
		l.SetFormatter(&logrus.JSONFormatter{})
		l.SetLevel(logrus.InfoLevel)
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
