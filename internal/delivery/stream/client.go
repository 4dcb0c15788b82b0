package stream

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Enriquefft/signal-receiver/internal/delivery"
	"github.com/Enriquefft/signal-receiver/internal/logging"
	"github.com/Enriquefft/signal-receiver/internal/metrics"
	"github.com/Enriquefft/signal-receiver/internal/signal"
	"github.com/Enriquefft/signal-receiver/internal/state"
)

const (
	DefaultSettleDelay      = 5 * time.Second
	DefaultMinBackoff       = 5 * time.Second
	DefaultMaxBackoff       = 60 * time.Second
	DefaultHeartbeat        = 30 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second

	writeWait = 5 * time.Second
)

// Config tunes the stream client. Zero durations take the defaults above.
type Config struct {
	URL    string
	Number string

	// SettleDelay is waited once before the first connection attempt.
	SettleDelay      time.Duration
	MinBackoff       time.Duration
	MaxBackoff       time.Duration
	Heartbeat        time.Duration
	HandshakeTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.SettleDelay <= 0 {
		c.SettleDelay = DefaultSettleDelay
	}
	if c.MinBackoff <= 0 {
		c.MinBackoff = DefaultMinBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = DefaultMaxBackoff
	}
	if c.MaxBackoff < c.MinBackoff {
		c.MaxBackoff = c.MinBackoff
	}
	if c.Heartbeat <= 0 {
		c.Heartbeat = DefaultHeartbeat
	}
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	return c
}

// Option configures a Client.
type Option func(*Client)

// WithDialer replaces the websocket dialer. The dialer is borrowed and may be
// shared between clients.
func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithMetrics enables metric collection.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// Client keeps one websocket connection to the gateway open, reconnecting
// with exponential backoff, and publishes every received data message to its
// sink and notifier. It implements delivery.Source.
type Client struct {
	cfg      Config
	dialer   *websocket.Dialer
	sink     *state.PushSink
	notifier delivery.Notifier
	metrics  *metrics.Metrics
	logger   *logrus.Entry
	backoff  *Backoff
	now      func() time.Time
}

// NewClient creates a stream client writing to sink. The client is the only
// writer of sink for its lifetime.
func NewClient(cfg Config, sink *state.PushSink, notifier delivery.Notifier, opts ...Option) *Client {
	cfg = cfg.withDefaults()
	if notifier == nil {
		notifier = delivery.Discard
	}
	c := &Client{
		cfg:      cfg,
		sink:     sink,
		notifier: notifier,
		logger:   logging.NewLogger("stream"),
		backoff:  NewBackoff(cfg.MinBackoff, cfg.MaxBackoff),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dialer == nil {
		c.dialer = &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		}
	}
	return c
}

// Run connects, streams and reconnects until ctx is cancelled. Connection
// failures never escape; they are recorded in the sink's status and retried.
// Run returns ctx.Err() once cancelled.
func (c *Client) Run(ctx context.Context) error {
	c.logger.Infof("streaming from %s", c.cfg.URL)

	if !sleep(ctx, c.cfg.SettleDelay) {
		return c.terminate(ctx)
	}

	for {
		c.setStatus(state.Status{Phase: state.Connecting})

		err := c.stream(ctx)
		if ctx.Err() != nil {
			return c.terminate(ctx)
		}

		c.setStatus(state.ErrorStatus(err))
		delay := c.backoff.Next()
		c.logger.WithError(err).Warnf("stream disconnected, reconnecting in %s", delay)

		if !sleep(ctx, delay) {
			return c.terminate(ctx)
		}
		c.metrics.ReconnectAttempt()
	}
}

func (c *Client) terminate(ctx context.Context) error {
	c.setStatus(state.Status{Phase: state.Idle})
	c.logger.Info("stream stopped")
	return ctx.Err()
}

// stream runs one connection from dial to disconnect. It always returns a
// non-nil error describing why the connection ended.
func (c *Client) stream(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", c.cfg.URL, err)
	}
	defer conn.Close()

	c.backoff.Reset()
	c.setStatus(state.Status{Phase: state.Connected})
	c.logger.Infof("connected to %s", c.cfg.URL)

	// Without a pong or frame within two heartbeats the peer is gone.
	readTimeout := 2 * c.cfg.Heartbeat
	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go c.keepalive(ctx, conn, done)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout))

		if msgType != websocket.TextMessage {
			c.metrics.FrameDropped("non_text")
			continue
		}
		c.handleFrame(ctx, data)
	}
}

// keepalive pings the gateway every heartbeat and closes the connection when
// ctx is cancelled so a blocked read returns immediately.
func (c *Client) keepalive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.cfg.Heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.logger.WithError(err).Debug("ping failed")
				conn.Close()
				return
			}
		}
	}
}

// handleFrame normalizes one text frame and publishes it. Frames that are not
// JSON or carry no message text are dropped.
func (c *Client) handleFrame(ctx context.Context, data []byte) {
	frame, err := signal.DecodeFrame(data)
	if err != nil {
		c.logger.WithError(err).Debug("ignoring undecodable frame")
		c.metrics.FrameDropped("decode")
		return
	}

	msg, ok := signal.Normalize(frame, c.now())
	if !ok {
		c.logger.Debug("ignoring event without message text")
		c.metrics.FrameDropped("no_text")
		return
	}

	c.sink.ApplyMessage(msg)
	c.metrics.MessageReceived(string(delivery.ModePush))
	c.logger.WithField("source", msg.Source).Debug("message received")

	evt := delivery.NewEvent(c.cfg.Number, delivery.ModePush, msg.Envelope, msg.ReceivedAt)
	err = c.notifier.Notify(ctx, evt)
	c.metrics.Notified(string(delivery.ModePush), err)
	if err != nil {
		c.logger.WithError(err).Warn("notify failed")
	}
}

func (c *Client) setStatus(st state.Status) {
	c.sink.SetStatus(st)

	switch st.Phase {
	case state.Connecting:
		c.metrics.ConnectionState(metrics.StateConnecting)
	case state.Connected:
		c.metrics.ConnectionState(metrics.StateConnected)
	case state.Errored:
		c.metrics.ConnectionState(metrics.StateError)
	default:
		c.metrics.ConnectionState(metrics.StateIdle)
	}
}

// sleep waits for d or until ctx is cancelled, reporting whether the full
// wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
