// Package rpc provides the JSON-RPC 2.0 HTTP transport used by the tool client.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// Transport sends one tool request and returns one response payload.
// Implementations apply the deadline carried by the context and surface
// transport-level failures as plain errors; application-level failures
// returned by the callee come back as *Error.
type Transport interface {
	Call(ctx context.Context, tool string, args map[string]any) (json.RawMessage, error)
}

// Error is a well-formed application error returned by the callee.
type Error struct {
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message"`
	Code    int             `json:"code"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type request struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      string         `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      string          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// HTTPTransport implements Transport over a single JSON-RPC HTTP endpoint.
type HTTPTransport struct {
	client   *resty.Client
	endpoint string
}

// NewHTTPTransport creates a transport that POSTs JSON-RPC requests to endpoint.
// The timeout is a hard cap on any single HTTP exchange; the per-call
// context deadline still applies on top of it.
func NewHTTPTransport(endpoint string, timeout time.Duration) *HTTPTransport {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(0) // retries are owned by the tool client, not the transport

	return &HTTPTransport{
		client:   client,
		endpoint: endpoint,
	}
}

// Call sends a single JSON-RPC request for the named tool.
func (t *HTTPTransport) Call(ctx context.Context, tool string, args map[string]any) (json.RawMessage, error) {
	req := request{
		JSONRPC: "2.0",
		ID:      uuid.New().String(),
		Method:  tool,
		Params:  args,
	}

	resp, err := t.client.R().
		SetContext(ctx).
		SetBody(req).
		Post(t.endpoint)
	if err != nil {
		return nil, fmt.Errorf("transport call failed: %w", err)
	}

	if resp.StatusCode() >= 400 {
		return nil, fmt.Errorf("transport status %d: %s", resp.StatusCode(), resp.Status())
	}

	var parsed response
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, fmt.Errorf("malformed rpc response: %w", err)
	}

	if parsed.Error != nil {
		return nil, parsed.Error
	}

	return parsed.Result, nil
}
