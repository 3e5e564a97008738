package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

const maxResponseSize = 1 << 20

// Processor runs a conversation/process call.
type Processor interface {
	Process(ctx context.Context, req Request) (*Response, error)
}

// Client is a Home Assistant REST API client.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Logger     *slog.Logger
}

var _ Processor = (*Client)(nil)

func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
	}
}

// EntityState is the state object of one entity.
type EntityState struct {
	EntityID    string         `json:"entity_id"`
	State       string         `json:"state"`
	Attributes  map[string]any `json:"attributes,omitempty"`
	LastChanged string         `json:"last_changed,omitempty"`
	LastUpdated string         `json:"last_updated,omitempty"`
}

// Ping checks that the API is reachable and the token is accepted.
func (c *Client) Ping(ctx context.Context) error {
	var out struct {
		Message string `json:"message"`
	}
	return c.do(ctx, http.MethodGet, "/api/", nil, &out)
}

// Process sends text to a conversation agent.
func (c *Client) Process(ctx context.Context, req Request) (*Response, error) {
	var raw any
	if err := c.do(ctx, http.MethodPost, "/api/conversation/process", req, &raw); err != nil {
		return nil, err
	}
	return ParseResponse(ctx, raw)
}

// CallService invokes domain.service with data and returns the states that
// changed.
func (c *Client) CallService(ctx context.Context, domain, service string, data map[string]any) ([]EntityState, error) {
	if domain == "" || service == "" {
		return nil, fmt.Errorf("assist: call service: domain and service are required")
	}
	if data == nil {
		data = map[string]any{}
	}
	path := "/api/services/" + url.PathEscape(domain) + "/" + url.PathEscape(service)
	var changed []EntityState
	if err := c.do(ctx, http.MethodPost, path, data, &changed); err != nil {
		return nil, err
	}
	return changed, nil
}

// State returns the current state of entityID.
func (c *Client) State(ctx context.Context, entityID string) (*EntityState, error) {
	if entityID == "" {
		return nil, fmt.Errorf("assist: state: entity_id is required")
	}
	var st EntityState
	if err := c.do(ctx, http.MethodGet, "/api/states/"+url.PathEscape(entityID), nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c.BaseURL == "" {
		return ErrNoURL
	}
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("assist: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("assist: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("assist: http request: %w", err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, maxResponseSize+1)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(limited)
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(errBody))}
	}
	data, err := io.ReadAll(limited)
	if err != nil {
		return fmt.Errorf("assist: read response: %w", err)
	}
	if len(data) > maxResponseSize {
		return fmt.Errorf("assist: response exceeds %d bytes", maxResponseSize)
	}
	c.logger().Debug("assist: http", "method", method, "path", path, "status", resp.StatusCode, "bytes", len(data))
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("assist: decode response: %w", err)
	}
	return nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
