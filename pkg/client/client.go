package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/notfall/dispatch-engine/internal/models"
	"github.com/notfall/dispatch-engine/internal/scheduler"
)

// Client is a Go SDK for the dispatch-engine API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new dispatch-engine client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// CreateTask registers a new service task
func (c *Client) CreateTask(ctx context.Context, req models.CreateTaskRequest) (*models.Task, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var task models.Task
	if err := c.call(ctx, "POST", "/api/v1/tasks", bytes.NewReader(body), &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// GetTask retrieves a task by ID
func (c *Client) GetTask(ctx context.Context, id string) (*models.Task, error) {
	var task models.Task
	if err := c.call(ctx, "GET", fmt.Sprintf("/api/v1/tasks/%s", id), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// AssignTask asks the engine to assign the best suitable engineer
func (c *Client) AssignTask(ctx context.Context, id string) (*scheduler.Result, error) {
	var result scheduler.Result
	if err := c.call(ctx, "POST", fmt.Sprintf("/api/v1/tasks/%s/assign", id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CompleteTask records the completion time of a task
func (c *Client) CompleteTask(ctx context.Context, id, completionTime string) error {
	body, err := json.Marshal(map[string]string{"completion_time": completionTime})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	return c.call(ctx, "POST", fmt.Sprintf("/api/v1/tasks/%s/complete", id), bytes.NewReader(body), nil)
}

// RegisterEngineer adds an engineer to the dispatch roster
func (c *Client) RegisterEngineer(ctx context.Context, engineer models.Engineer) error {
	body, err := json.Marshal(engineer)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	return c.call(ctx, "POST", "/api/v1/engineers", bytes.NewReader(body), nil)
}

// ListEngineers retrieves the current roster
func (c *Client) ListEngineers(ctx context.Context) ([]models.Engineer, error) {
	var data struct {
		Engineers []models.Engineer `json:"engineers"`
		Total     int               `json:"total"`
	}
	if err := c.call(ctx, "GET", "/api/v1/engineers", nil, &data); err != nil {
		return nil, err
	}
	return data.Engineers, nil
}

// ReleaseEngineer returns an engineer to the available pool
func (c *Client) ReleaseEngineer(ctx context.Context, id string) error {
	return c.call(ctx, "POST", fmt.Sprintf("/api/v1/engineers/%s/release", id), nil, nil)
}

// Match ranks the roster against a set of tasks
func (c *Client) Match(ctx context.Context, taskIDs []string) (map[string][]models.MatchCandidate, error) {
	body, err := json.Marshal(models.MatchRequest{TaskIDs: taskIDs})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var data struct {
		Matches map[string][]models.MatchCandidate `json:"matches"`
		Tasks   int                                `json:"tasks"`
	}
	if err := c.call(ctx, "POST", "/api/v1/matches", bytes.NewReader(body), &data); err != nil {
		return nil, err
	}
	return data.Matches, nil
}

// SLAReport retrieves the compliance report for completed tasks
func (c *Client) SLAReport(ctx context.Context) (*models.SLAReport, error) {
	var report models.SLAReport
	if err := c.call(ctx, "GET", "/api/v1/sla/report", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, "GET", "/health", nil)
	return err
}

// call performs a request and unmarshals the envelope's data field into
// out when out is non-nil.
func (c *Client) call(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(resp, &envelope); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	if !envelope.Success {
		if envelope.Error != nil {
			return fmt.Errorf("API error: %s - %s", envelope.Error.Code, envelope.Error.Message)
		}
		return fmt.Errorf("API error: request failed")
	}

	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to unmarshal response data: %w", err)
		}
	}

	return nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
