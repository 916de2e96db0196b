// Package engineclient is the HTTP client for the Durable Engine. It
// exposes exactly two operations, send a state log and mark an execution as
// running, and reports every engine reply as a normalized Response.
package engineclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/endurehq/endure-go/pkg/config"
	"github.com/endurehq/endure-go/pkg/metrics"
)

var (
	// ErrBaseURLNotSet reports a missing DURABLE_ENGINE_BASE_URL.
	ErrBaseURLNotSet = errors.New("engineclient: DURABLE_ENGINE_BASE_URL is not set")

	// ErrInvalidArgument reports a missing required call parameter.
	ErrInvalidArgument = errors.New("engineclient: invalid argument")
)

// UnreachableError reports a transport-level failure talking to the engine:
// connection refused, DNS, TLS, timeout. It is never retried here; the
// caller decides.
type UnreachableError struct {
	URL string
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("engineclient: engine unreachable at %s: %v", e.URL, e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the Durable Engine. It is stateless beyond the configured
// base URL and safe for concurrent use.
type Client struct {
	config     Config
	httpClient *http.Client
}

// New creates an engine client for the given configuration.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// FromEnv creates an engine client from the process environment. It fails
// with ErrBaseURLNotSet when no base URL is configured.
func FromEnv() (*Client, error) {
	cfg := config.New()
	if loaded, err := config.Load(); err == nil {
		cfg = loaded
	}
	base := strings.TrimSpace(cfg.Engine.BaseURL)
	if base == "" {
		return nil, ErrBaseURLNotSet
	}
	return New(Config{BaseURL: base, Timeout: cfg.Engine.Timeout()}), nil
}

// SendLog reports one state transition for an action.
//
//	PATCH {base}/executions/{executionID}/log/{actionName}
func (c *Client) SendLog(ctx context.Context, executionID string, log Log, actionName string) (*Response, error) {
	if strings.TrimSpace(executionID) == "" {
		return nil, fmt.Errorf("%w: execution id must be provided", ErrInvalidArgument)
	}
	if log.Status == "" {
		return nil, fmt.Errorf("%w: log must be provided", ErrInvalidArgument)
	}
	if strings.TrimSpace(actionName) == "" {
		return nil, fmt.Errorf("%w: action name must be provided", ErrInvalidArgument)
	}
	path := fmt.Sprintf("/executions/%s/log/%s", executionID, actionName)
	return c.patch(ctx, "send_log", path, log)
}

// MarkExecutionAsRunning tells the engine an execution has started serving.
//
//	PATCH {base}/executions/{executionID}/started
func (c *Client) MarkExecutionAsRunning(ctx context.Context, executionID string) (*Response, error) {
	if strings.TrimSpace(executionID) == "" {
		return nil, fmt.Errorf("%w: execution id must be provided", ErrInvalidArgument)
	}
	path := fmt.Sprintf("/executions/%s/started", executionID)
	return c.patch(ctx, "mark_running", path, nil)
}

func (c *Client) patch(ctx context.Context, operation, path string, body any) (*Response, error) {
	base := strings.TrimSpace(c.config.BaseURL)
	if base == "" {
		return nil, ErrBaseURLNotSet
	}
	fullURL := strings.TrimRight(base, "/") + path

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveEngineRequest(operation, 0, time.Since(start))
		return nil, &UnreachableError{URL: fullURL, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveEngineRequest(operation, resp.StatusCode, time.Since(start))
		return nil, &UnreachableError{URL: fullURL, Err: err}
	}
	metrics.ObserveEngineRequest(operation, resp.StatusCode, time.Since(start))

	// Non-JSON bodies are tolerated: the envelope then carries an empty
	// payload and the raw bytes.
	payload := map[string]any{}
	var decoded map[string]any
	if len(raw) > 0 && json.Unmarshal(raw, &decoded) == nil && decoded != nil {
		payload = decoded
	}
	return &Response{StatusCode: resp.StatusCode, Payload: payload, Raw: raw}, nil
}
