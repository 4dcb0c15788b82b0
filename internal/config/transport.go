package config

import (
	"time"

	"github.com/Enriquefft/signal-receiver/internal/signal"
)

// Transport is the receive mode selected by the connection entry: exactly
// one of PushTransport or PollTransport.
type Transport interface {
	transport()
}

// PushTransport selects the websocket receiver.
type PushTransport struct {
	URL         string
	SettleDelay time.Duration
	MinBackoff  time.Duration
	MaxBackoff  time.Duration
	Heartbeat   time.Duration
}

// PollTransport selects the REST receiver.
type PollTransport struct {
	URL      string
	Interval time.Duration
	Timeout  time.Duration
}

func (PushTransport) transport() {}
func (PollTransport) transport() {}

// Client returns a gateway client for the configured number.
func (c *Config) Client() *signal.Client {
	return signal.NewClient(c.Signal.Host, c.Signal.Port, c.Signal.Number)
}

// Transport resolves the receive mode. Call Validate first; an unknown
// connection type resolves to nil.
func (c *Config) Transport() Transport {
	client := c.Client()
	switch c.Signal.ConnectionType {
	case ConnectionWebsocket:
		return PushTransport{
			URL:         client.StreamURL(),
			SettleDelay: seconds(c.Stream.SettleDelay),
			MinBackoff:  seconds(c.Stream.MinBackoff),
			MaxBackoff:  seconds(c.Stream.MaxBackoff),
			Heartbeat:   seconds(c.Stream.Heartbeat),
		}
	case ConnectionREST:
		return PollTransport{
			URL:      client.ReceiveURL(),
			Interval: c.Options.Interval(),
			Timeout:  seconds(c.Poll.Timeout),
		}
	}
	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
