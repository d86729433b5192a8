// Package logger configures the structured application logger.
package logger

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// New creates a JSON logger writing to out at the given level. An unknown
// level falls back to info and is reported once.
func New(level string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "ts",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		log.SetLevel(logrus.InfoLevel)
		log.WithField("configured_level", level).Warn("invalid log level, using info")
		return log
	}
	log.SetLevel(lvl)

	return log
}
