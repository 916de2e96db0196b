// Package client provides typed HTTP clients for callers of the durable
// execution system: a Manager for the engine's execution-management API and
// an Invoker for a host application serving registered workflows.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config holds client configuration.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Error represents an API error.
type Error struct {
	StatusCode int
	Message    string
	Response   interface{}
}

func (e *Error) Error() string {
	return fmt.Sprintf("API error %d: %s", e.StatusCode, e.Message)
}

// Execution is the engine's view of one workflow run.
type Execution struct {
	ExecutionID string         `json:"execution_id"`
	Status      string         `json:"status"`
	Output      map[string]any `json:"output,omitempty"`
	LastLog     string         `json:"last_log,omitempty"`
}

// Execution statuses sent by Pause, Resume and Terminate.
const (
	StatusRunning    = "running"
	StatusPaused     = "paused"
	StatusTerminated = "terminated"
)

type httpDoer struct {
	config     Config
	httpClient *http.Client
}

func newDoer(cfg Config) httpDoer {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return httpDoer{config: cfg, httpClient: &http.Client{Timeout: cfg.Timeout}}
}

func (d httpDoer) request(ctx context.Context, method, path string, body, result interface{}) error {
	fullURL := strings.TrimRight(d.config.BaseURL, "/") + path

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		var parsed interface{}
		_ = json.Unmarshal(respBody, &parsed)
		return &Error{StatusCode: resp.StatusCode, Message: resp.Status, Response: parsed}
	}

	if resp.StatusCode == http.StatusNoContent || result == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Manager drives the engine's execution-management API: starting, reading
// and pausing, resuming or terminating executions.
type Manager struct {
	doer httpDoer
}

// NewManager creates a Manager for the engine at cfg.BaseURL.
func NewManager(cfg Config) *Manager {
	return &Manager{doer: newDoer(cfg)}
}

// Execute asks the engine to start a new execution of the named workflow.
func (m *Manager) Execute(ctx context.Context, serviceName, workflowName string, input any) (*Execution, error) {
	path := fmt.Sprintf("/services/%s/workflows/%s/executions", serviceName, workflowName)
	var exec Execution
	if err := m.doer.request(ctx, http.MethodPost, path, map[string]any{"input": input}, &exec); err != nil {
		return nil, err
	}
	return &exec, nil
}

// Get reads the current state of an execution.
func (m *Manager) Get(ctx context.Context, executionID string) (*Execution, error) {
	var exec Execution
	if err := m.doer.request(ctx, http.MethodGet, "/executions/"+executionID, nil, &exec); err != nil {
		return nil, err
	}
	return &exec, nil
}

// Pause suspends an execution; in-flight actions finish, no new ones start.
func (m *Manager) Pause(ctx context.Context, executionID string) error {
	return m.updateStatus(ctx, executionID, StatusPaused)
}

// Resume continues a paused execution.
func (m *Manager) Resume(ctx context.Context, executionID string) error {
	return m.updateStatus(ctx, executionID, StatusRunning)
}

// Terminate stops an execution permanently.
func (m *Manager) Terminate(ctx context.Context, executionID string) error {
	return m.updateStatus(ctx, executionID, StatusTerminated)
}

func (m *Manager) updateStatus(ctx context.Context, executionID, status string) error {
	return m.doer.request(ctx, http.MethodPatch, "/executions/"+executionID, map[string]string{"status": status}, nil)
}

// Discovery is the document served by a host's GET /discover.
type Discovery struct {
	Services []DiscoveredService `json:"services"`
}

// DiscoveredService is one service entry in a Discovery document.
type DiscoveredService struct {
	Name      string               `json:"name"`
	Workflows []DiscoveredWorkflow `json:"workflows"`
}

// DiscoveredWorkflow is one workflow entry in a Discovery document. Input
// and Output are descriptors: a string or a nested map at any position.
type DiscoveredWorkflow struct {
	Name          string `json:"name"`
	Input         any    `json:"input"`
	Output        any    `json:"output"`
	IdemRetention int    `json:"idem_retention"`
}

// Invoker calls workflows on a host application that mounted the SDK's
// HTTP surface.
type Invoker struct {
	doer httpDoer
}

// NewInvoker creates an Invoker for the host at cfg.BaseURL.
func NewInvoker(cfg Config) *Invoker {
	return &Invoker{doer: newDoer(cfg)}
}

// Discover lists the host's services and workflows.
func (i *Invoker) Discover(ctx context.Context) (*Discovery, error) {
	var doc Discovery
	if err := i.doer.request(ctx, http.MethodGet, "/discover", nil, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Invoke executes a workflow on the host. A blank executionID gets a fresh
// UUID; reusing an executionID replays the run with cached action results.
// It returns the workflow output together with the execution id used.
func (i *Invoker) Invoke(ctx context.Context, serviceName, workflowName, executionID string, input any) (any, string, error) {
	if strings.TrimSpace(executionID) == "" {
		executionID = uuid.NewString()
	}
	path := fmt.Sprintf("/execute/%s/%s", serviceName, workflowName)
	var envelope struct {
		Output any `json:"output"`
	}
	err := i.doer.request(ctx, http.MethodPost, path, map[string]any{
		"execution_id": executionID,
		"input":        input,
	}, &envelope)
	if err != nil {
		return nil, executionID, err
	}
	return envelope.Output, executionID, nil
}
