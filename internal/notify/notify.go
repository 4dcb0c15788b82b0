// Package notify delivers signal_received events to the host's buses.
package notify

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/Enriquefft/signal-receiver/internal/delivery"
	"github.com/Enriquefft/signal-receiver/internal/logging"
)

// Multi calls every notifier in order. A failing notifier does not stop the
// rest; all errors are joined.
type Multi []delivery.Notifier

// Notify implements delivery.Notifier.
func (m Multi) Notify(ctx context.Context, evt delivery.Event) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes each event to a logger.
type Log struct {
	Logger *logrus.Entry
}

// NewLog creates a Log notifier on the "events" component logger.
func NewLog() *Log {
	return &Log{Logger: logging.NewLogger("events")}
}

// Notify implements delivery.Notifier.
func (l *Log) Notify(_ context.Context, evt delivery.Event) error {
	l.Logger.WithFields(logrus.Fields{
		"id":     evt.ID,
		"number": evt.Number,
		"mode":   evt.Mode,
	}).Info(evt.Type)
	return nil
}
