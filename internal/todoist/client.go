package todoist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/avoronkov/todoist-bot/internal/models"
)

const (
	defaultBaseURL = "https://api.todoist.com/rest/v2"
	defaultTimeout = 10 * time.Second
)

// Client talks to the Todoist API on behalf of a single token. It holds no
// mutable state, so constructing one per message is cheap and concurrent use
// across users is safe.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		token:      token,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type taskPayload struct {
	Content   string `json:"content"`
	Priority  int    `json:"priority,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	DueDate   string `json:"due_date,omitempty"`
	DueString string `json:"due_string,omitempty"`
}

// CreateTask sends one authenticated create call. The request's RequestID
// rides along as the X-Request-Id header, so Todoist de-duplicates replays of
// the same inbound message server-side.
func (c *Client) CreateTask(ctx context.Context, req *models.TaskRequest) (*models.Task, error) {
	payload := taskPayload{
		Content:   req.Content,
		Priority:  req.Priority,
		ProjectID: req.ProjectID,
		DueDate:   req.DueDate,
		DueString: req.DueString,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %v", ErrMalformedResponse, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tasks", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Content-Type", "application/json")
	if req.RequestID != "" {
		httpReq.Header.Set("X-Request-Id", req.RequestID)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var task models.Task
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if task.ID == "" || task.Content == "" || task.URL == "" {
		return nil, ErrMalformedResponse
	}
	return &task, nil
}

// ListProjects fetches the user's projects. The bot uses it only as a
// credential probe before persisting a newly submitted token.
func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/projects", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}

	var projects []models.Project
	if err := json.NewDecoder(resp.Body).Decode(&projects); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return projects, nil
}

func checkStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusForbidden:
		return ErrForbidden
	default:
		return &RemoteError{StatusCode: code}
	}
}
