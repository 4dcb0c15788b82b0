package signal

import (
	"strings"
	"time"
)

// Message is a received data message in canonical form.
type Message struct {
	Text            string
	SourceName      string // display name, falls back to Source
	Source          string
	ReceivedAt      time.Time
	AttachmentCount int
	Envelope        Envelope
}

// Normalize converts a frame into a Message. It returns false for anything
// that is not a data message with non-blank text: receipts, typing
// indicators, attachment-only messages and malformed frames are all skipped
// rather than treated as errors.
func Normalize(f Frame, receivedAt time.Time) (Message, bool) {
	env := f.Envelope()

	text, ok := env.Text()
	if !ok || strings.TrimSpace(text) == "" {
		return Message{}, false
	}

	return Message{
		Text:            text,
		SourceName:      env.DisplayName(),
		Source:          env.Source(),
		ReceivedAt:      receivedAt,
		AttachmentCount: len(env.Attachments()),
		Envelope:        env,
	}, true
}
