// Package client is the Go binding of the kkvd API. Failures are reported
// with the fridge sentinel errors, errors.Is works the same way it does
// against an in-process Fridge.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hashicorp/go-cleanhttp"

	"kkv/api"
	"kkv/fridge"
)

type Client struct {
	baseUrl string
	http    *http.Client
}

// New creates a client of the daemon listening on address. network is
// "unix" or "tcp".
func New(network, address string) *Client {
	transport := cleanhttp.DefaultPooledTransport()
	baseUrl := fmt.Sprintf("http://%s", address)
	if network == "unix" {
		transport.DialContext = func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", address)
		}
		baseUrl = "http://kkvd"
	}
	return &Client{
		baseUrl: baseUrl,
		http:    &http.Client{Transport: transport},
	}
}

// NewWithHTTPClient targets baseUrl through c, mostly useful for tests
func NewWithHTTPClient(baseUrl string, c *http.Client) *Client {
	return &Client{baseUrl: baseUrl, http: c}
}

// Error reported by the daemon
type Error struct {
	Kind       fridge.Kind
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the fridge sentinel error of the kind
func (e *Error) Unwrap() error {
	return e.Kind.Err()
}

func (c *Client) Init(ctx context.Context, flags int) error {
	resp, err := c.do(ctx, http.MethodPost, "/init", flagsQuery(flags), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return expect(resp, http.StatusNoContent)
}

// Destroy returns the number of entries removed
func (c *Client) Destroy(ctx context.Context, flags int) (int, error) {
	resp, err := c.do(ctx, http.MethodPost, "/destroy", flagsQuery(flags), nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if err := expect(resp, http.StatusOK); err != nil {
		return 0, err
	}

	var d api.DestroyResponse
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return 0, fmt.Errorf("error decoding destroy response: %w", err)
	}
	return d.Removed, nil
}

func (c *Client) Put(ctx context.Context, key fridge.Key, value []byte, flags int) error {
	resp, err := c.do(ctx, http.MethodPut, "/entries/"+key.String(), flagsQuery(flags), value)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return expect(resp, http.StatusNoContent)
}

// Get reads at most length bytes of key. Cancelling ctx while the daemon
// holds a blocking get abandons it and returns an error wrapping
// fridge.ErrInterrupted.
func (c *Client) Get(ctx context.Context, key fridge.Key, length int, flags int) ([]byte, error) {
	q := flagsQuery(flags)
	q.Set("length", strconv.Itoa(length))
	resp, err := c.do(ctx, http.MethodGet, "/entries/"+key.String(), q, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := expect(resp, http.StatusOK); err != nil {
		return nil, err
	}

	value, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, interrupted(ctx, fmt.Errorf("error reading value: %w", err))
	}
	return value, nil
}

func (c *Client) Metrics(ctx context.Context) (*api.MetricsResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, "/metrics", nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := expect(resp, http.StatusOK); err != nil {
		return nil, err
	}

	var m api.MetricsResponse
	if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
		return nil, fmt.Errorf("error decoding metrics response: %w", err)
	}
	return &m, nil
}

func (c *Client) do(ctx context.Context, method, path string, q url.Values, body []byte) (*http.Response, error) {
	u := c.baseUrl + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, interrupted(ctx, err)
	}
	return resp, nil
}

func flagsQuery(flags int) url.Values {
	q := url.Values{}
	if flags != 0 {
		q.Set("flags", strconv.Itoa(flags))
	}
	return q
}

// Report a request aborted by its context as an interruption
func interrupted(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", fridge.ErrInterrupted, err)
	}
	return err
}

func expect(resp *http.Response, status int) error {
	if resp.StatusCode == status {
		return nil
	}

	var e api.ErrResponse
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Kind == fridge.KindNone {
		return &Error{
			Kind:       fridge.KindIO,
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("received an unexpected response code: %d", resp.StatusCode),
		}
	}
	return &Error{Kind: e.Kind, StatusCode: e.HTTPStatusCode, Message: e.Message}
}

// Errno of err as reported by the syscall interface, 0 when err is nil
func Errno(err error) int {
	return int(fridge.KindOf(err).Errno())
}
