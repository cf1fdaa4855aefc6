// Package agentrpc implements the JSON action envelope used for every
// cross-service call between newsroom agents, plus the bounded-retry client
// for unreliable collaborators.
package agentrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Request is the action envelope sent to a collaborator: an action name plus
// action-specific fields flattened into the same JSON object.
type Request struct {
	Action string
	Fields map[string]interface{}
}

// MarshalJSON flattens Fields alongside the action key
func (r Request) MarshalJSON() ([]byte, error) {
	body := make(map[string]interface{}, len(r.Fields)+1)
	for k, v := range r.Fields {
		body[k] = v
	}
	body["action"] = r.Action
	return json.Marshal(body)
}

// Response is a decoded collaborator reply. Every well-formed reply carries
// at least a status and message; operation-specific fields stay in Fields.
type Response struct {
	Status  string
	Message string
	Fields  map[string]interface{}
}

// IsError reports whether the collaborator returned an explicit error status
func (r *Response) IsError() bool {
	return r.Status == "error"
}

// StringField returns a string field from the response body
func (r *Response) StringField(key string) string {
	if v, ok := r.Fields[key].(string); ok {
		return v
	}
	return ""
}

// StringSliceField returns a string list field from the response body
func (r *Response) StringSliceField(key string) []string {
	raw, ok := r.Fields[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Client performs a single action call with a fixed per-attempt timeout
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	headers    map[string]string
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHeader attaches a header (e.g. a credential) to every call
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithHTTPClient overrides the underlying HTTP client (for tests)
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a client with the given per-attempt timeout
func NewClient(timeout time.Duration, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{},
		timeout:    timeout,
		headers:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call sends one action request and decodes the reply. Transport errors,
// timeouts, HTTP error statuses and success-shaped empty payloads all return
// a non-nil error; a well-formed "no results" reply is a successful empty
// outcome and returns a Response, not an error.
func (c *Client) Call(ctx context.Context, url string, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("call to %s returned HTTP %d", url, resp.StatusCode)
	}

	// Some collaborators return success-shaped empty answers; treat those
	// the same as a failed attempt so the retry layer can try again.
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("call to %s returned an empty payload", url)
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to decode response from %s: %w", url, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("call to %s returned an empty payload", url)
	}

	out := &Response{Fields: fields}
	if s, ok := fields["status"].(string); ok {
		out.Status = s
	}
	if m, ok := fields["message"].(string); ok {
		out.Message = m
	}
	return out, nil
}
