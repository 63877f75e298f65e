// Package client talks to a running supervisor's HTTP control API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client provides HTTP client functionality to communicate with a taskmaster daemon
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration
type Config struct {
	BaseURL string
	Timeout time.Duration
	Logger  *slog.Logger // Optional logger for client operations
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:9412",
		Timeout: 2 * time.Minute,
	}
}

// APIError is a non-2xx answer from the daemon.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

// New creates a new API client. The timeout must cover kill, which waits
// for stopwaitsecs before answering.
func New(config Config) *Client {
	def := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = def.BaseURL
	}
	if config.Timeout == 0 {
		config.Timeout = def.Timeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		logger:  config.Logger,
		client:  &http.Client{Timeout: config.Timeout},
	}
}

// IsReachable checks if the daemon is running and reachable
func (c *Client) IsReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/programs", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("daemon unreachable", "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// List returns every program in display order.
func (c *Client) List(ctx context.Context) ([]Program, error) {
	var out []Program
	err := c.do(ctx, http.MethodGet, "/programs", &out)
	return out, err
}

// Describe returns one program with uptime and resource use.
func (c *Client) Describe(ctx context.Context, name string) (ProgramDetail, error) {
	var out ProgramDetail
	err := c.do(ctx, http.MethodGet, "/programs/"+url.PathEscape(name), &out)
	return out, err
}

func (c *Client) Launch(ctx context.Context, name string) (ActionResult, error) {
	return c.action(ctx, name, "launch")
}

func (c *Client) Kill(ctx context.Context, name string) (ActionResult, error) {
	return c.action(ctx, name, "kill")
}

func (c *Client) Restart(ctx context.Context, name string) (ActionResult, error) {
	return c.action(ctx, name, "restart")
}

// Reload asks the daemon to reread its configuration file.
func (c *Client) Reload(ctx context.Context) (ReloadResult, error) {
	var out ReloadResult
	err := c.do(ctx, http.MethodPost, "/reload", &out)
	return out, err
}

func (c *Client) action(ctx context.Context, name, verb string) (ActionResult, error) {
	var out ActionResult
	err := c.do(ctx, http.MethodPost, "/programs/"+url.PathEscape(name)+"/"+verb, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.logger.Debug("api request", "method", method, "path", path)
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var er ErrorResponse
		if json.Unmarshal(body, &er) == nil && er.Error != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: er.Error}
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
