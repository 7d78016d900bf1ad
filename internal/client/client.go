package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cockpit/internal/types"
)

const (
	defaultBaseURL = "http://127.0.0.1:8000"
	apiKeyHeader   = "X-API-Key"
)

// Client talks to the chat backend and, when configured, to a separate task
// API. The task API settings are read on every request so configuration
// reloads apply without rebuilding the client.
type Client struct {
	baseURL string
	http    *http.Client
	taskAPI func() types.TaskAPIConfig
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.http = httpClient
		}
	}
}

func WithTaskAPI(provider func() types.TaskAPIConfig) Option {
	return func(c *Client) {
		c.taskAPI = provider
	}
}

func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, c.baseURL+"/health", nil, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ListEvents(ctx context.Context, sessionID string) ([]types.Event, error) {
	query := url.Values{}
	if sessionID = strings.TrimSpace(sessionID); sessionID != "" {
		query.Set("session_id", sessionID)
	}
	var resp EventsResponse
	if err := c.doJSON(ctx, http.MethodGet, withQuery(c.baseURL+"/api/events", query), nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// ListTasks lists tasks for project, falling back to the configured default
// project when project is blank.
func (c *Client) ListTasks(ctx context.Context, project string) ([]types.Task, error) {
	cfg := c.taskAPIConfig()
	query := url.Values{}
	project = strings.TrimSpace(project)
	if project == "" {
		project = cfg.DefaultProject
	}
	if project != "" {
		query.Set("project", project)
	}
	var resp TasksResponse
	if err := c.doJSON(ctx, http.MethodGet, withQuery(c.taskURL(cfg, "tasks"), query), taskHeaders(cfg), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tasks, nil
}

func (c *Client) ListProjects(ctx context.Context) ([]types.Project, error) {
	cfg := c.taskAPIConfig()
	var resp ProjectsResponse
	if err := c.doJSON(ctx, http.MethodGet, c.taskURL(cfg, "projects"), taskHeaders(cfg), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Projects, nil
}

func (c *Client) AgentInfo(ctx context.Context, sessionID string) (types.AgentInfo, error) {
	query := url.Values{}
	if sessionID = strings.TrimSpace(sessionID); sessionID != "" {
		query.Set("session_id", sessionID)
	}
	var info types.AgentInfo
	if err := c.doJSON(ctx, http.MethodGet, withQuery(c.baseURL+"/api/agent-info", query), nil, nil, &info); err != nil {
		return types.AgentInfo{}, err
	}
	return info, nil
}

// SendRaw posts an already encoded frame, as used by the server-sent events
// transport.
func (c *Client) SendRaw(ctx context.Context, sessionID string, payload json.RawMessage) error {
	if !json.Valid(payload) {
		return errors.New("payload is not valid json")
	}
	return c.postMessage(ctx, sessionID, payload)
}

func (c *Client) postMessage(ctx context.Context, sessionID string, body json.RawMessage) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return errors.New("session id is required")
	}
	path := fmt.Sprintf("%s/api/sessions/%s/messages", c.baseURL, url.PathEscape(sessionID))
	var resp SendMessageResponse
	return c.doJSON(ctx, http.MethodPost, path, nil, body, &resp)
}

func (c *Client) taskAPIConfig() types.TaskAPIConfig {
	if c.taskAPI == nil {
		return types.TaskAPIConfig{}
	}
	return c.taskAPI()
}

func (c *Client) taskURL(cfg types.TaskAPIConfig, resource string) string {
	endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
	if endpoint == "" {
		return c.baseURL + "/api/" + resource
	}
	return endpoint + "/" + resource
}

func taskHeaders(cfg types.TaskAPIConfig) http.Header {
	if strings.TrimSpace(cfg.Endpoint) == "" || strings.TrimSpace(cfg.APIKey) == "" {
		return nil
	}
	header := http.Header{}
	header.Set(apiKeyHeader, cfg.APIKey)
	return header
}

func withQuery(base string, query url.Values) string {
	if len(query) == 0 {
		return base
	}
	return base + "?" + query.Encode()
}

func (c *Client) doJSON(ctx context.Context, method, rawURL string, header http.Header, body any, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return err
	}
	for key, values := range header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.http
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	type errorPayload struct {
		Error string `json:"error"`
	}
	var payload errorPayload
	_ = json.NewDecoder(resp.Body).Decode(&payload)
	if payload.Error != "" {
		return &APIError{StatusCode: resp.StatusCode, Message: payload.Error}
	}
	return &APIError{StatusCode: resp.StatusCode, Message: resp.Status}
}

type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

// AsAPIError unwraps err to an *APIError when one is present.
func AsAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return nil
}
