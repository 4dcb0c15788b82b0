package signal

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// signal-cli-rest-api payload types.
//
// The gateway wraps every event in a frame such as
//
//	{"envelope": {"source": "+100", "sourceName": "Ann", "dataMessage": {"message": "hi"}}, "account": "+200"}
//
// Only a handful of keys are interpreted here. Everything else is carried
// through untouched for display and for the outbound bus, so frames and
// envelopes stay schema-less documents.

// RawKey holds a batch element that is not a JSON object.
const RawKey = "raw"

// Frame is one raw event from the gateway: a websocket text frame or one
// element of a REST batch.
type Frame map[string]any

// Envelope is the "envelope" object inside a Frame.
type Envelope map[string]any

// Envelope returns the frame's envelope, or an empty Envelope when the key is
// missing or not an object.
func (f Frame) Envelope() Envelope {
	if m, ok := f["envelope"].(map[string]any); ok {
		return Envelope(m)
	}
	return Envelope{}
}

// Source returns the sender identity (phone number or UUID).
func (e Envelope) Source() string {
	return e.str("source")
}

// SourceName returns the sender's profile name, if the gateway knows it.
func (e Envelope) SourceName() string {
	return e.str("sourceName")
}

// DisplayName returns SourceName, falling back to Source.
func (e Envelope) DisplayName() string {
	if name := e.SourceName(); name != "" {
		return name
	}
	return e.Source()
}

// DataMessage returns the dataMessage object, or nil if the envelope carries a
// receipt, typing indicator or any other non-data event.
func (e Envelope) DataMessage() map[string]any {
	m, _ := e["dataMessage"].(map[string]any)
	return m
}

// Text returns dataMessage.message and whether it was present as a string.
func (e Envelope) Text() (string, bool) {
	dm := e.DataMessage()
	if dm == nil {
		return "", false
	}
	s, ok := dm["message"].(string)
	return s, ok
}

// Attachments returns dataMessage.attachments.
func (e Envelope) Attachments() []any {
	dm := e.DataMessage()
	if dm == nil {
		return nil
	}
	a, _ := dm["attachments"].([]any)
	return a
}

func (e Envelope) str(key string) string {
	s, _ := e[key].(string)
	return s
}

// DecodeFrame parses one websocket text frame.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if f == nil {
		return nil, fmt.Errorf("decode frame: null payload")
	}
	return f, nil
}

// DecodeBatch parses a REST receive body. An empty or null body yields a nil
// batch. Elements that are not JSON objects are kept under RawKey so the batch
// keeps its length and ordering.
func DecodeBatch(data []byte) ([]Frame, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}

	frames := make([]Frame, 0, len(raw))
	for _, r := range raw {
		var f Frame
		if err := json.Unmarshal(r, &f); err != nil || f == nil {
			var v any
			json.Unmarshal(r, &v)
			f = Frame{RawKey: v}
		}
		frames = append(frames, f)
	}
	return frames, nil
}
