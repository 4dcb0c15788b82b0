package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType is the bus event name fired for every received message.
const EventType = "signal_received"

// Mode identifies which transport produced an event.
type Mode string

const (
	ModePush Mode = "push"
	ModePoll Mode = "poll"
)

// Event is the outbound notification for one received message. Data is the
// envelope (push) or the raw batch element (poll), passed through as-is.
type Event struct {
	ID         string // unique per event, used as a dedup key downstream
	Type       string
	Number     string // receiving account
	Mode       Mode
	ReceivedAt time.Time
	Data       map[string]any
}

// NewEvent stamps a new signal_received event.
func NewEvent(number string, mode Mode, data map[string]any, at time.Time) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       EventType,
		Number:     number,
		Mode:       mode,
		ReceivedAt: at,
		Data:       data,
	}
}

// Notifier delivers events to whatever bus the host provides. Producers call
// it in arrival order and do not retry failures.
type Notifier interface {
	Notify(ctx context.Context, evt Event) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, evt Event) error

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}

// Source produces messages from one gateway transport until ctx is cancelled.
type Source interface {
	Run(ctx context.Context) error
}

// Discard is a Notifier that drops every event.
var Discard Notifier = NotifierFunc(func(context.Context, Event) error { return nil })
