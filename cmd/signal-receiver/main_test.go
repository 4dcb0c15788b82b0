package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Enriquefft/signal-receiver/internal/config"
)

func TestStatusCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/state", r.URL.Path)
		w.Write([]byte(`{"name":"Signal +200","unique_id":"signal_ws_+200","state":"hi","attributes":{"connection_status":"connected","last_received":"2024-01-02 03:04:05"}}`))
	}))
	defer srv.Close()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"status", "--addr", srv.URL + "/"})
	require.NoError(t, cmd.Execute())

	assert.Equal(t, "Signal +200 (signal_ws_+200)\n  state: hi\n  connection: connected\n  last received: 2024-01-02 03:04:05\n", out.String())
}

func TestStatusCommand_Unhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"status", "--addr", srv.URL})
	assert.ErrorContains(t, cmd.Execute(), "status 503")
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("SIGNAL_NUMBER", "")
	t.Setenv("SIGNAL_NATS_URL", "")
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[signal]\nconnection_type = \"rest\"\n"), 0o600))

	err := run(context.Background(), path)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SIGNAL_CONFIG", "SIGNAL_HOST", "SIGNAL_PORT", "SIGNAL_NUMBER",
		"SIGNAL_CONNECTION_TYPE", "SIGNAL_SCAN_INTERVAL", "SIGNAL_HTTP_ADDR",
		"SIGNAL_NATS_URL", "SIGNAL_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

// restConfig writes a poll-mode config pointing at gateway and serving HTTP on
// httpAddr.
func restConfig(t *testing.T, gateway *httptest.Server, httpAddr string) string {
	t.Helper()
	host, port, err := net.SplitHostPort(gateway.Listener.Addr().String())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.toml")
	body := fmt.Sprintf("[signal]\nhost = %q\nport = %s\nnumber = \"+200\"\nconnection_type = \"rest\"\n[http]\naddr = %q\n", host, port, httpAddr)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRun_ReleasesHTTPBeforeReturning(t *testing.T) {
	clearEnv(t)
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"envelope":{"dataMessage":{"message":"hi"}}}]`))
	}))
	defer gateway.Close()

	addr := freeAddr(t)
	path := restConfig(t, gateway, addr)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, path) }()

	require.Eventually(t, func() bool {
		st, err := fetchState(http.DefaultClient, "http://"+addr)
		return err == nil && st.State == "hi"
	}, 3*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return after cancel")
	}

	// The listener is gone once run has returned.
	_, err := net.DialTimeout("tcp", addr, time.Second)
	assert.Error(t, err)
}

func TestRun_ReturnsHTTPListenError(t *testing.T) {
	clearEnv(t)
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer gateway.Close()

	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	path := restConfig(t, gateway, busy.Addr().String())
	done := make(chan error, 1)
	go func() { done <- run(context.Background(), path) }()

	select {
	case err := <-done:
		assert.ErrorContains(t, err, "http listen")
	case <-time.After(10 * time.Second):
		t.Fatal("run did not return on listen failure")
	}
}
