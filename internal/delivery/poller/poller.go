package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Enriquefft/signal-receiver/internal/delivery"
	"github.com/Enriquefft/signal-receiver/internal/logging"
	"github.com/Enriquefft/signal-receiver/internal/metrics"
	"github.com/Enriquefft/signal-receiver/internal/signal"
	"github.com/Enriquefft/signal-receiver/internal/state"
)

const (
	DefaultInterval = 10 * time.Second
	DefaultTimeout  = 15 * time.Second
)

// ErrInvalidInterval is returned by SetInterval for non-positive durations.
var ErrInvalidInterval = errors.New("poll interval must be positive")

// Fetcher returns the frames waiting on the gateway. *signal.Client
// implements it.
type Fetcher interface {
	Receive(ctx context.Context) ([]signal.Frame, error)
}

// Poller implements delivery.Source by draining the REST receive endpoint on
// a fixed period. The period can be changed while running; the new value is
// picked up at the start of the next wait.
type Poller struct {
	fetcher  Fetcher
	sink     *state.PollSink
	notifier delivery.Notifier
	number   string
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   *logrus.Entry
	now      func() time.Time

	// after arms the inter-tick timer; replaced in tests.
	after func(time.Duration) (<-chan time.Time, func() bool)

	interval atomic.Int64
	tickMu   sync.Mutex
}

// Config holds the poller's settings. Zero values take the defaults.
type Config struct {
	Number   string
	Interval time.Duration
	Timeout  time.Duration
	Metrics  *metrics.Metrics
}

// New creates a poller writing to sink. The poller is the only writer of sink
// for its lifetime.
func New(cfg Config, fetcher Fetcher, sink *state.PollSink, notifier delivery.Notifier) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if notifier == nil {
		notifier = delivery.Discard
	}

	p := &Poller{
		fetcher:  fetcher,
		sink:     sink,
		notifier: notifier,
		number:   cfg.Number,
		timeout:  cfg.Timeout,
		metrics:  cfg.Metrics,
		logger:   logging.NewLogger("poller"),
		now:      time.Now,
		after: func(d time.Duration) (<-chan time.Time, func() bool) {
			t := time.NewTimer(d)
			return t.C, t.Stop
		},
	}
	p.interval.Store(int64(cfg.Interval))
	p.metrics.PollInterval(cfg.Interval)
	return p
}

// Interval returns the current poll period.
func (p *Poller) Interval() time.Duration {
	return time.Duration(p.interval.Load())
}

// SetInterval changes the poll period. A wait already in progress keeps its
// original length; the next one uses d. It reports whether the period
// changed, so re-applying the current value is a no-op.
func (p *Poller) SetInterval(d time.Duration) (bool, error) {
	if d <= 0 {
		return false, fmt.Errorf("%w: %s", ErrInvalidInterval, d)
	}
	old := time.Duration(p.interval.Swap(int64(d)))
	if old == d {
		return false, nil
	}
	p.metrics.PollInterval(d)
	p.logger.Infof("poll interval updated to %d seconds", int(d.Seconds()))
	return true, nil
}

// Run waits one interval, polls, and repeats until ctx is cancelled. The
// initial fetch is the caller's job (see Refresh) so setup can block on it.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Infof("polling every %s", p.Interval())

	for {
		c, stop := p.after(p.Interval())
		select {
		case <-ctx.Done():
			stop()
			p.logger.Info("poller stopped")
			return ctx.Err()
		case <-c:
			p.Refresh(ctx)
		}
	}
}

// Refresh performs one fetch and publishes the result. Failures are logged
// and otherwise ignored; the next tick is the retry. Refresh calls are
// serialized so a batch is fully published before another fetch starts.
// It reports whether the sink changed.
func (p *Poller) Refresh(ctx context.Context) bool {
	p.tickMu.Lock()
	defer p.tickMu.Unlock()

	fetchCtx, cancel := context.WithTimeout(ctx, p.timeout)
	frames, err := p.fetcher.Receive(fetchCtx)
	cancel()
	if err != nil {
		if ctx.Err() == nil {
			p.logger.WithError(err).Debug("poll skipped")
		}
		p.metrics.PollFetch("error", 0)
		return false
	}

	if len(frames) == 0 {
		p.metrics.PollFetch("empty", 0)
		return false
	}

	p.logger.Debugf("poll returned %d message(s)", len(frames))
	p.metrics.PollFetch("ok", len(frames))
	p.publish(ctx, frames)
	return true
}

// publish updates the sink and emits one event per raw batch element,
// including elements that carry no message text.
func (p *Poller) publish(ctx context.Context, frames []signal.Frame) {
	p.sink.ApplyBatch(frames)

	at := p.now()
	mode := string(delivery.ModePoll)
	for _, f := range frames {
		if _, ok := signal.Normalize(f, at); ok {
			p.metrics.MessageReceived(mode)
		}

		err := p.notifier.Notify(ctx, delivery.NewEvent(p.number, delivery.ModePoll, f, at))
		p.metrics.Notified(mode, err)
		if err != nil {
			p.logger.WithError(err).Warn("notify failed")
		}
	}
}
