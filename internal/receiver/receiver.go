// Package receiver sets up one configured receiving instance: it resolves the
// transport once, builds the matching producer and its sink, and owns the
// producer's lifetime until Close.
package receiver

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/Enriquefft/signal-receiver/internal/config"
	"github.com/Enriquefft/signal-receiver/internal/delivery"
	"github.com/Enriquefft/signal-receiver/internal/delivery/poller"
	"github.com/Enriquefft/signal-receiver/internal/delivery/stream"
	"github.com/Enriquefft/signal-receiver/internal/logging"
	"github.com/Enriquefft/signal-receiver/internal/metrics"
	"github.com/Enriquefft/signal-receiver/internal/state"
)

// Deps are the collaborators shared with the host. All fields are optional.
type Deps struct {
	HTTPClient *http.Client
	Dialer     *websocket.Dialer
	Notifier   delivery.Notifier
	Metrics    *metrics.Metrics
}

// Instance is a running receiver.
type Instance struct {
	mode   delivery.Mode
	view   state.View
	poller *poller.Poller
	logger *logrus.Entry

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Setup validates cfg and starts the receiver it selects. Validation failures
// are returned before any connection or timer is created. In poll mode the
// first fetch completes before Setup returns, so State already reflects the
// gateway's queue. The instance runs until Close or until ctx is cancelled.
func Setup(ctx context.Context, cfg *config.Config, deps Deps) (*Instance, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	inst := &Instance{
		logger: logging.NewLogger("receiver").WithField("number", cfg.Signal.Number),
		done:   make(chan struct{}),
	}

	var src delivery.Source
	switch t := cfg.Transport().(type) {
	case config.PushTransport:
		sink := state.NewPushSink(cfg.Signal.Number)
		opts := []stream.Option{stream.WithMetrics(deps.Metrics)}
		if deps.Dialer != nil {
			opts = append(opts, stream.WithDialer(deps.Dialer))
		}
		src = stream.NewClient(stream.Config{
			URL:         t.URL,
			Number:      cfg.Signal.Number,
			SettleDelay: t.SettleDelay,
			MinBackoff:  t.MinBackoff,
			MaxBackoff:  t.MaxBackoff,
			Heartbeat:   t.Heartbeat,
		}, sink, deps.Notifier, opts...)
		inst.mode, inst.view = delivery.ModePush, sink

	case config.PollTransport:
		client := cfg.Client()
		if deps.HTTPClient != nil {
			client.HTTPClient = deps.HTTPClient
		}
		sink := state.NewPollSink(cfg.Signal.Number)
		p := poller.New(poller.Config{
			Number:   cfg.Signal.Number,
			Interval: t.Interval,
			Timeout:  t.Timeout,
			Metrics:  deps.Metrics,
		}, client, sink, deps.Notifier)
		p.Refresh(ctx)
		src = p
		inst.mode, inst.view, inst.poller = delivery.ModePoll, sink, p

	default:
		return nil, fmt.Errorf("%w: no transport for connection type %q", config.ErrInvalid, cfg.Signal.ConnectionType)
	}

	runCtx, cancel := context.WithCancel(ctx)
	inst.cancel = cancel
	go func() {
		defer close(inst.done)
		src.Run(runCtx)
	}()

	inst.logger.Infof("receiver started in %s mode", inst.mode)
	return inst, nil
}

// Mode reports which producer is running.
func (i *Instance) Mode() delivery.Mode { return i.mode }

// State returns the read side of the instance's sink.
func (i *Instance) State() state.View { return i.view }

// UpdateOptions applies changed runtime options. Only the poll interval is
// adjustable; in push mode the call is accepted and ignored.
func (i *Instance) UpdateOptions(opts config.Options) error {
	if i.poller == nil {
		return nil
	}
	if err := opts.Validate(); err != nil {
		return err
	}
	_, err := i.poller.SetInterval(opts.Interval())
	return err
}

// Done is closed once the producer has stopped.
func (i *Instance) Done() <-chan struct{} { return i.done }

// Close stops the producer and waits for it to release its connection.
// Further calls return immediately.
func (i *Instance) Close() {
	i.once.Do(func() {
		i.cancel()
		<-i.done
		i.logger.Info("receiver stopped")
	})
}
