package signal

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
)

// StatusError is returned by Receive when the gateway answers with anything
// other than 200.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("signal API error (status %d): %s", e.StatusCode, e.Body)
}

// Client talks to a signal-cli-rest-api gateway for one registered number.
// The HTTP client is borrowed from the caller and never closed here.
type Client struct {
	Host       string
	Port       int
	Number     string
	HTTPClient *http.Client
}

// NewClient creates a gateway client using http.DefaultClient.
func NewClient(host string, port int, number string) *Client {
	return &Client{
		Host:       host,
		Port:       port,
		Number:     number,
		HTTPClient: http.DefaultClient,
	}
}

// StreamURL is the websocket endpoint that pushes envelopes as they arrive.
func (c *Client) StreamURL() string {
	u := url.URL{
		Scheme: "ws",
		Host:   c.hostPort(),
		Path:   "/v1/receive/" + c.Number,
	}
	return u.String()
}

// ReceiveURL is the REST endpoint that drains pending envelopes. Read
// receipts are requested for everything fetched.
func (c *Client) ReceiveURL() string {
	u := url.URL{
		Scheme:   "http",
		Host:     c.hostPort(),
		Path:     "/v1/receive/" + c.Number,
		RawQuery: "send_read_receipts=true",
	}
	return u.String()
}

func (c *Client) hostPort() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Receive fetches one batch of pending frames. A 200 with an empty or null
// body returns a nil batch and no error. The request is bounded by ctx.
func (c *Client) Receive(ctx context.Context) ([]Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ReceiveURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("receive messages: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return DecodeBatch(body)
}
