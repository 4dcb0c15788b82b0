// Package logging provides per-component logrus entries sharing one
// configurable root logger.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	root      = newRoot()
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex
)

func newRoot() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	level := logrus.InfoLevel
	if v := os.Getenv("SIGNAL_LOG_LEVEL"); v != "" {
		if parsed, err := logrus.ParseLevel(v); err == nil {
			level = parsed
		}
	}
	l.SetLevel(level)
	return l
}

// NewLogger returns the logger for component, creating it on first use.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	entry := root.WithField("component", component)
	loggers[component] = entry
	return entry
}

// Configure applies level and format to every component logger. An empty or
// unknown level keeps the current one; format is "json" or "text".
func Configure(level, format string) {
	if level != "" {
		if parsed, err := logrus.ParseLevel(level); err == nil {
			root.SetLevel(parsed)
		} else {
			root.Warnf("unknown log level %q, keeping %s", level, root.GetLevel())
		}
	}

	switch strings.ToLower(format) {
	case "json":
		root.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		root.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		root.Warnf("unknown log format %q, using text", format)
		root.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

// SetOutput redirects all component loggers.
func SetOutput(w io.Writer) {
	root.SetOutput(w)
}
