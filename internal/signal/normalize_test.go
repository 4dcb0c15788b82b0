package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var received = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func mustFrame(t *testing.T, raw string) Frame {
	t.Helper()
	f, err := DecodeFrame([]byte(raw))
	require.NoError(t, err)
	return f
}

func TestNormalize_Text(t *testing.T) {
	f := mustFrame(t, `{"envelope":{"source":"+100","sourceName":"Ann","dataMessage":{"message":"hi"}}}`)

	msg, ok := Normalize(f, received)
	require.True(t, ok)
	assert.Equal(t, "hi", msg.Text)
	assert.Equal(t, "Ann", msg.SourceName)
	assert.Equal(t, "+100", msg.Source)
	assert.Equal(t, received, msg.ReceivedAt)
	assert.Equal(t, "+100", msg.Envelope["source"])
}

func TestNormalize_DisplayNameFallsBackToSource(t *testing.T) {
	f := mustFrame(t, `{"envelope":{"source":"+100","dataMessage":{"message":"hi"}}}`)

	msg, ok := Normalize(f, received)
	require.True(t, ok)
	assert.Equal(t, "+100", msg.SourceName)

	f = mustFrame(t, `{"envelope":{"source":"+100","sourceName":"","dataMessage":{"message":"hi"}}}`)
	msg, ok = Normalize(f, received)
	require.True(t, ok)
	assert.Equal(t, "+100", msg.SourceName)
}

func TestNormalize_Skipped(t *testing.T) {
	cases := map[string]string{
		"no envelope":        `{"account":"+200"}`,
		"envelope not map":   `{"envelope":"oops"}`,
		"receipt":            `{"envelope":{"source":"+100","receiptMessage":{"isRead":true}}}`,
		"typing":             `{"envelope":{"source":"+100","typingMessage":{"action":"STARTED"}}}`,
		"no text key":        `{"envelope":{"source":"+100","dataMessage":{"attachments":[{"id":"a"}]}}}`,
		"null text":          `{"envelope":{"source":"+100","dataMessage":{"message":null}}}`,
		"empty text":         `{"envelope":{"source":"+100","dataMessage":{"message":""}}}`,
		"whitespace text":    `{"envelope":{"source":"+100","dataMessage":{"message":"  \n\t"}}}`,
		"non-string text":    `{"envelope":{"source":"+100","dataMessage":{"message":42}}}`,
		"dataMessage scalar": `{"envelope":{"source":"+100","dataMessage":true}}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, ok := Normalize(mustFrame(t, raw), received)
			assert.False(t, ok)
		})
	}
}

func TestNormalize_EmptyFrame(t *testing.T) {
	_, ok := Normalize(Frame{}, received)
	assert.False(t, ok)
	_, ok = Normalize(nil, received)
	assert.False(t, ok)
}

func TestNormalize_KeepsTextVerbatim(t *testing.T) {
	f := mustFrame(t, `{"envelope":{"source":"+100","dataMessage":{"message":"  padded  "}}}`)
	msg, ok := Normalize(f, received)
	require.True(t, ok)
	assert.Equal(t, "  padded  ", msg.Text)
}

func TestNormalize_CountsAttachments(t *testing.T) {
	f := mustFrame(t, `{"envelope":{"source":"+100","dataMessage":{"message":"look","attachments":[{"id":"a"},{"id":"b"}]}}}`)
	msg, ok := Normalize(f, received)
	require.True(t, ok)
	assert.Equal(t, 2, msg.AttachmentCount)
}

func TestDecodeFrame_Invalid(t *testing.T) {
	_, err := DecodeFrame([]byte(`not json`))
	assert.Error(t, err)

	_, err = DecodeFrame([]byte(`null`))
	assert.Error(t, err)
}

func TestDecodeBatch(t *testing.T) {
	frames, err := DecodeBatch([]byte(`[{"envelope":{"dataMessage":{"message":"a"}}}, 7, null, {"envelope":{}}]`))
	require.NoError(t, err)
	require.Len(t, frames, 4)

	text, ok := frames[0].Envelope().Text()
	assert.True(t, ok)
	assert.Equal(t, "a", text)
	assert.Equal(t, Frame{RawKey: float64(7)}, frames[1])
	assert.Equal(t, Frame{RawKey: nil}, frames[2])
	assert.Empty(t, frames[1].Envelope())
	_, ok = Normalize(frames[1], time.Now())
	assert.False(t, ok)
}

func TestDecodeBatch_Empty(t *testing.T) {
	for _, body := range []string{"", "  \n", "null", "[]"} {
		frames, err := DecodeBatch([]byte(body))
		assert.NoError(t, err, "body %q", body)
		assert.Nil(t, frames, "body %q", body)
	}
}

func TestDecodeBatch_NotArray(t *testing.T) {
	_, err := DecodeBatch([]byte(`{"error":"busy"}`))
	assert.Error(t, err)
}
