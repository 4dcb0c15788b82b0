package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/Enriquefft/signal-receiver/internal/delivery"
	"github.com/Enriquefft/signal-receiver/internal/logging"
)

// DefaultSubject is the subject prefix events are published under.
const DefaultSubject = "signal.received"

// Publisher is the part of *nats.Conn the notifier needs.
type Publisher interface {
	PublishMsg(msg *nats.Msg) error
}

// NATS publishes events as JSON to "<subject>.<number>". The event ID is sent
// as the Nats-Msg-Id header so a JetStream stream can drop duplicates.
type NATS struct {
	conn    Publisher
	subject string
}

// NewNATS wraps an existing connection. The connection is borrowed; closing
// it is the caller's job.
func NewNATS(conn Publisher, subject string) *NATS {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATS{conn: conn, subject: subject}
}

// Connect dials a NATS server with unlimited reconnects.
func Connect(url string) (*nats.Conn, error) {
	logger := logging.NewLogger("nats")
	conn, err := nats.Connect(url,
		nats.Name("signal-receiver"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.WithError(err).Warn("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Infof("nats reconnected to %s", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return conn, nil
}

type wireEvent struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Number     string         `json:"number"`
	Mode       string         `json:"mode"`
	ReceivedAt time.Time      `json:"received_at"`
	Data       map[string]any `json:"data"`
}

// Subject returns the subject an event for number is published on.
func (n *NATS) Subject(number string) string {
	return n.subject + "." + subjectToken(number)
}

// Notify implements delivery.Notifier.
func (n *NATS) Notify(_ context.Context, evt delivery.Event) error {
	data, err := json.Marshal(wireEvent{
		ID:         evt.ID,
		Type:       evt.Type,
		Number:     evt.Number,
		Mode:       string(evt.Mode),
		ReceivedAt: evt.ReceivedAt,
		Data:       evt.Data,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := nats.NewMsg(n.Subject(evt.Number))
	msg.Header.Set(nats.MsgIdHdr, evt.ID)
	msg.Data = data

	if err := n.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	return nil
}

// subjectToken makes s safe as a single subject token.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}
