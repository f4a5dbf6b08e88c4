package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-channels/core"
	goerrors "github.com/goliatone/go-errors"
)

// Client is the verb level facade providers talk to. It stamps the
// configured timeout on every request and encodes JSON bodies.
type Client struct {
	adapter core.TransportAdapter
	timeout time.Duration
}

func NewClient(adapter core.TransportAdapter, timeout time.Duration) *Client {
	if adapter == nil {
		adapter = NewRESTAdapter(nil)
	}
	return &Client{adapter: adapter, timeout: timeout}
}

func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (core.TransportResponse, error) {
	return c.Do(ctx, http.MethodGet, url, headers, nil)
}

func (c *Client) Post(ctx context.Context, url string, headers map[string]string, payload any) (core.TransportResponse, error) {
	return c.Do(ctx, http.MethodPost, url, headers, payload)
}

func (c *Client) Delete(ctx context.Context, url string, headers map[string]string) (core.TransportResponse, error) {
	return c.Do(ctx, http.MethodDelete, url, headers, nil)
}

// Do issues a request with an optional JSON payload.
func (c *Client) Do(ctx context.Context, method string, url string, headers map[string]string, payload any) (core.TransportResponse, error) {
	req := core.TransportRequest{
		Method:  method,
		URL:     url,
		Headers: map[string]string{"Accept": "application/json"},
		Timeout: c.timeout,
	}
	for key, value := range headers {
		req.Headers[key] = value
	}
	if payload != nil {
		body, err := encodePayload(payload)
		if err != nil {
			return core.TransportResponse{}, err
		}
		req.Body = body
		if _, ok := req.Headers["Content-Type"]; !ok {
			req.Headers["Content-Type"] = "application/json"
		}
	}
	return c.adapter.Do(ctx, req)
}

func encodePayload(payload any) ([]byte, error) {
	if raw, ok := payload.([]byte); ok {
		return raw, nil
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, transportWrapError(err, goerrors.CategoryBadInput, "transport: encode request body", http.StatusBadRequest, nil)
	}
	return body, nil
}

// DecodeJSON unmarshals a response body into target. An empty body leaves
// target untouched.
func DecodeJSON(res core.TransportResponse, target any) error {
	if len(strings.TrimSpace(string(res.Body))) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.Body, target); err != nil {
		return transportWrapError(err, goerrors.CategoryExternal, "transport: decode response body", http.StatusBadGateway, map[string]any{
			"status_code": res.StatusCode,
		})
	}
	return nil
}
