// Package logging configures structured logging for the tracker and provides
// context-scoped logger helpers.
package logging

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
)

// Init configures the global logger from config values. Format is "json" or
// "text"; unknown values fall back to JSON.
func Init(level, format string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)

	switch format {
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	logrus.SetOutput(os.Stdout)
}

// L returns the global logger.
func L() *logrus.Logger {
	return logrus.StandardLogger()
}

type loggerKey struct{}

// WithLogger stores a field-scoped entry in the context.
func WithLogger(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, loggerKey{}, entry)
}

// FromContext retrieves the entry stored by WithLogger, or a plain entry on
// the global logger when none is present.
func FromContext(ctx context.Context) *logrus.Entry {
	if entry, ok := ctx.Value(loggerKey{}).(*logrus.Entry); ok {
		return entry
	}
	return logrus.NewEntry(logrus.StandardLogger())
}
