package stream

import "time"

// Backoff is the reconnect delay policy: start at Min, double after every
// failed attempt, never exceed Max, and return to Min once a connection is
// established.
type Backoff struct {
	Min time.Duration
	Max time.Duration

	cur time.Duration
}

// NewBackoff returns a Backoff positioned at min.
func NewBackoff(min, max time.Duration) *Backoff {
	return &Backoff{Min: min, Max: max, cur: min}
}

// Next returns the delay to wait now and advances to the following one.
func (b *Backoff) Next() time.Duration {
	if b.cur <= 0 {
		b.cur = b.Min
	}
	d := b.cur
	b.cur *= 2
	if b.cur > b.Max {
		b.cur = b.Max
	}
	return d
}

// Peek returns the delay Next would return.
func (b *Backoff) Peek() time.Duration {
	if b.cur <= 0 {
		return b.Min
	}
	return b.cur
}

// Reset returns the delay to Min.
func (b *Backoff) Reset() {
	b.cur = b.Min
}
