package state

import (
	"maps"
	"sync"
	"time"

	"github.com/Enriquefft/signal-receiver/internal/signal"
)

const (
	pushPlaceholder = "Waiting..."
	pollPlaceholder = "Listening..."

	// latestFallback is shown when the newest polled envelope has no text.
	latestFallback = "New Msg"
)

// Attribute keys.
const (
	AttrConnectionStatus = "connection_status"
	AttrLastReceived     = "last_received"
	AttrSource           = "source"
	AttrSourceNumber     = "source_number"
	AttrFullEnvelope     = "full_envelope"
	AttrAttachments      = "attachment_count"
	AttrBatchSize        = "batch_size"
	AttrRecentMessages   = "recent_messages"
)

// View is the read side of a sink, handed to the display layer. Attributes
// returns a copy; callers may keep or modify it.
type View interface {
	Name() string
	UniqueID() string
	Value() string
	Attributes() map[string]any
}

// base holds the observable value. Writes go through the typed sinks below so
// each instance has exactly one producer.
type base struct {
	name     string
	uniqueID string
	now      func() time.Time

	mu    sync.RWMutex
	value string
	attrs map[string]any
}

func (b *base) Name() string     { return b.name }
func (b *base) UniqueID() string { return b.uniqueID }

func (b *base) Value() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.value
}

func (b *base) Attributes() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := maps.Clone(b.attrs)
	if recent, ok := out[AttrRecentMessages].([]string); ok {
		out[AttrRecentMessages] = append(make([]string, 0, len(recent)), recent...)
	}
	return out
}

// PushSink is written by the websocket receiver.
type PushSink struct {
	base
	status Status
}

// NewPushSink creates the sink for a push receiver of number.
func NewPushSink(number string) *PushSink {
	return &PushSink{
		base: base{
			name:     "Signal " + number,
			uniqueID: "signal_ws_" + number,
			now:      time.Now,
			value:    pushPlaceholder,
			attrs:    map[string]any{AttrConnectionStatus: Status{}.String()},
		},
	}
}

// Status returns the last connection status written.
func (s *PushSink) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// SetStatus records a connection status transition. The rest of the
// attributes are left untouched.
func (s *PushSink) SetStatus(st Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
	s.attrs[AttrConnectionStatus] = st.String()
}

// ApplyMessage makes msg the current value. Attributes are replaced with the
// message's metadata; a message can only arrive on a live stream, so the
// connection status is reported as connected.
func (s *PushSink) ApplyMessage(msg signal.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status = Status{Phase: Connected}
	s.value = msg.Text
	s.attrs = map[string]any{
		AttrLastReceived:     msg.ReceivedAt.Format("2006-01-02 15:04:05"),
		AttrSource:           msg.SourceName,
		AttrSourceNumber:     msg.Source,
		AttrFullEnvelope:     msg.Envelope,
		AttrAttachments:      msg.AttachmentCount,
		AttrConnectionStatus: s.status.String(),
	}
}

// PollSink is written by the REST poller.
type PollSink struct {
	base
}

// NewPollSink creates the sink for a poll receiver of number.
func NewPollSink(number string) *PollSink {
	return &PollSink{
		base: base{
			name:     "Signal " + number,
			uniqueID: "signal_rest_" + number,
			now:      time.Now,
			value:    pollPlaceholder,
			attrs: map[string]any{
				AttrLastReceived:   "Never",
				AttrRecentMessages: []string{},
			},
		},
	}
}

// ApplyBatch publishes a fetched batch. The current value is the last frame's
// message, or latestFallback when that frame has no message key.
// recent_messages holds every frame's text, blank for frames without one, so
// positions line up with the raw batch. An empty batch changes nothing and
// ApplyBatch reports false.
func (s *PollSink) ApplyBatch(frames []signal.Frame) bool {
	if len(frames) == 0 {
		return false
	}

	recent := make([]string, len(frames))
	for i, f := range frames {
		recent[i], _ = f.Envelope().Text()
	}

	last := frames[len(frames)-1].Envelope()
	value, ok := last.Text()
	if !ok {
		value = latestFallback
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.value = value
	s.attrs[AttrLastReceived] = s.now().Format("15:04:05")
	s.attrs[AttrSource] = last.DisplayName()
	s.attrs[AttrBatchSize] = len(frames)
	s.attrs[AttrRecentMessages] = recent
	return true
}
