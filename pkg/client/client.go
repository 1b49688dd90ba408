// Package client provides a Go SDK for the Opsboard HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/mverkerk/opsboard/pkg/models"
)

// Client calls the Opsboard HTTP API. It is safe for concurrent use.
// Every request carries the actor id; the server resolves it to a role
// and enforces permissions.
type Client struct {
	BaseURL    string       // e.g. "http://localhost:3560"
	APIKey     string       // optional; set for X-API-Key
	ActorID    int64        // account performing the operations
	HTTPClient *http.Client // optional; nil uses http.DefaultClient
}

// New returns a client for the given base URL acting as the given account.
// APIKey is optional; when set, requests use the X-API-Key header.
func New(baseURL, apiKey string, actorID int64) *Client {
	return &Client{BaseURL: baseURL, APIKey: apiKey, ActorID: actorID}
}

func (c *Client) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
	if c.ActorID != 0 {
		req.Header.Set("X-Actor-ID", strconv.FormatInt(c.ActorID, 10))
	}
	return c.client().Do(req)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if errBody.Error != "" {
			return fmt.Errorf("api %s %s: %s", method, path, errBody.Error)
		}
		return fmt.Errorf("api %s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Health returns the /health response (ok: true).
func (c *Client) Health(ctx context.Context) (ok bool, err error) {
	var out struct {
		OK bool `json:"ok"`
	}
	err = c.doJSON(ctx, http.MethodGet, "/health", nil, &out)
	return out.OK, err
}

// ListTasks returns the tasks visible to the actor.
func (c *Client) ListTasks(ctx context.Context) ([]models.Task, error) {
	var out []models.Task
	err := c.doJSON(ctx, http.MethodGet, "/tasks", nil, &out)
	return out, err
}

// CreateTask creates a task and returns the hydrated result.
func (c *Client) CreateTask(ctx context.Context, req models.CreateTaskRequest) (*models.Task, error) {
	var out models.Task
	err := c.doJSON(ctx, http.MethodPost, "/tasks", req, &out)
	return &out, err
}

// GetTask returns a task by ID.
func (c *Client) GetTask(ctx context.Context, taskID int64) (*models.Task, error) {
	var out models.Task
	err := c.doJSON(ctx, http.MethodGet, taskPath(taskID), nil, &out)
	return &out, err
}

// UpdateTask applies a partial update and returns the hydrated task.
// Fields not set on the TaskUpdate are left untouched.
func (c *Client) UpdateTask(ctx context.Context, taskID int64, upd TaskUpdate) (*models.Task, error) {
	var out models.Task
	err := c.doJSON(ctx, http.MethodPut, taskPath(taskID), map[string]any(upd), &out)
	return &out, err
}

// DeleteTask deletes a task by ID.
func (c *Client) DeleteTask(ctx context.Context, taskID int64) error {
	return c.doJSON(ctx, http.MethodDelete, taskPath(taskID), nil, nil)
}

// TaskHistory returns a task's audit trail, newest first.
func (c *Client) TaskHistory(ctx context.Context, taskID int64) ([]models.HistoryEntry, error) {
	var out []models.HistoryEntry
	err := c.doJSON(ctx, http.MethodGet, taskPath(taskID)+"/history", nil, &out)
	return out, err
}

// TaskFiles returns the files attached directly to a task.
func (c *Client) TaskFiles(ctx context.Context, taskID int64) ([]models.File, error) {
	var out []models.File
	err := c.doJSON(ctx, http.MethodGet, taskPath(taskID)+"/files", nil, &out)
	return out, err
}

// SubtaskFiles returns the files attached to a subtask.
func (c *Client) SubtaskFiles(ctx context.Context, subtaskID int64) ([]models.File, error) {
	var out []models.File
	err := c.doJSON(ctx, http.MethodGet, "/subtasks/"+strconv.FormatInt(subtaskID, 10)+"/files", nil, &out)
	return out, err
}

// Summary returns task counts, scoped to the actor's visibility.
func (c *Client) Summary(ctx context.Context) (*models.TaskSummary, error) {
	var out models.TaskSummary
	err := c.doJSON(ctx, http.MethodGet, "/tasks/summary", nil, &out)
	return &out, err
}

// ListTags returns all tags.
func (c *Client) ListTags(ctx context.Context) ([]models.Tag, error) {
	var out []models.Tag
	err := c.doJSON(ctx, http.MethodGet, "/tags", nil, &out)
	return out, err
}

// CreateTag creates a tag by name, returning the existing tag if the
// name is already taken.
func (c *Client) CreateTag(ctx context.Context, name string) (*models.Tag, error) {
	var out models.Tag
	err := c.doJSON(ctx, http.MethodPost, "/tags", map[string]string{"name": name}, &out)
	return &out, err
}

// DeleteTag deletes a tag by ID (admin only).
func (c *Client) DeleteTag(ctx context.Context, tagID int64) error {
	return c.doJSON(ctx, http.MethodDelete, "/tags/"+strconv.FormatInt(tagID, 10), nil, nil)
}

// ListUsers returns all accounts.
func (c *Client) ListUsers(ctx context.Context) ([]models.User, error) {
	var out []models.User
	err := c.doJSON(ctx, http.MethodGet, "/users", nil, &out)
	return out, err
}

// ListDivUsers returns all assignable people.
func (c *Client) ListDivUsers(ctx context.Context) ([]models.DivUser, error) {
	var out []models.DivUser
	err := c.doJSON(ctx, http.MethodGet, "/div-users", nil, &out)
	return out, err
}

// CreateDivUser creates an assignable person linked to an account.
func (c *Client) CreateDivUser(ctx context.Context, name string, userID int64) (*models.DivUser, error) {
	var out models.DivUser
	body := map[string]any{"name": name, "user_id": userID}
	err := c.doJSON(ctx, http.MethodPost, "/div-users", body, &out)
	return &out, err
}

// DeleteDivUser deletes an assignable person. Fails while any task still
// references them.
func (c *Client) DeleteDivUser(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, "/div-users/"+strconv.FormatInt(id, 10), nil, nil)
}

// GetFile returns a file record by ID.
func (c *Client) GetFile(ctx context.Context, id int64) (*models.File, error) {
	var out models.File
	err := c.doJSON(ctx, http.MethodGet, "/files/"+strconv.FormatInt(id, 10), nil, &out)
	return &out, err
}

// DeleteFile deletes a file record by ID.
func (c *Client) DeleteFile(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodDelete, "/files/"+strconv.FormatInt(id, 10), nil, nil)
}

func taskPath(id int64) string {
	return "/tasks/" + strconv.FormatInt(id, 10)
}
