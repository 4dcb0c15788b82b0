package signal

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clientFor points a Client at a test server.
func clientFor(t *testing.T, srv *httptest.Server, number string) *Client {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	c := NewClient(u.Hostname(), port, number)
	c.HTTPClient = srv.Client()
	return c
}

func TestClientURLs(t *testing.T) {
	c := NewClient("127.0.0.1", 8080, "+15550001111")
	assert.Equal(t, "ws://127.0.0.1:8080/v1/receive/+15550001111", c.StreamURL())
	assert.Equal(t, "http://127.0.0.1:8080/v1/receive/+15550001111?send_read_receipts=true", c.ReceiveURL())
}

func TestReceive_Batch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/receive/+100", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("send_read_receipts"))
		w.Write([]byte(`[{"envelope":{"dataMessage":{"message":"a"}}},{"envelope":{"dataMessage":{"message":"b"}}}]`))
	}))
	defer srv.Close()

	frames, err := clientFor(t, srv, "+100").Receive(context.Background())
	require.NoError(t, err)
	require.Len(t, frames, 2)
	text, _ := frames[1].Envelope().Text()
	assert.Equal(t, "b", text)
}

func TestReceive_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	frames, err := clientFor(t, srv, "+100").Receive(context.Background())
	require.NoError(t, err)
	assert.Nil(t, frames)
}

func TestReceive_NonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such account", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := clientFor(t, srv, "+100").Receive(context.Background())
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Contains(t, statusErr.Error(), "no such account")
}

func TestReceive_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := clientFor(t, srv, "+100").Receive(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
