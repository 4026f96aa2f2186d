// Package syncclient talks to the kb position service over HTTP.
package syncclient

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

	"github.com/marcus/kb/internal/models"
)

// Sentinel errors matched with errors.Is against any error the client returns.
var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrNotFound            = errors.New("not found")
	ErrCrossTenant         = errors.New("item belongs to another project")
	ErrPositionOutOfRange  = errors.New("position out of range")
	ErrInvalidColumn       = errors.New("invalid column")
	ErrRateLimited         = errors.New("rate limited")
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
)

// Client is an HTTP client for kb-server.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

// New creates a client. A trailing slash on baseURL is ignored.
func New(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthCheck verifies the server is reachable.
func (c *Client) HealthCheck(ctx context.Context) (*HealthResponse, error) {
	var resp HealthResponse
	if err := c.do(ctx, "GET", "/healthz", nil, &resp, nil); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Projects ---

// Project is a tenant as returned by the server.
type Project struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateProject creates a project owned by the caller.
func (c *Client) CreateProject(ctx context.Context, name, description string) (*Project, error) {
	body := map[string]string{"name": name, "description": description}
	var resp Project
	if err := c.do(ctx, "POST", "/v1/projects", body, &resp, nil); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListProjects lists the caller's projects.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var resp []Project
	if err := c.do(ctx, "GET", "/v1/projects", nil, &resp, nil); err != nil {
		return nil, err
	}
	return resp, nil
}

// GetProject fetches one project.
func (c *Client) GetProject(ctx context.Context, projectID string) (*Project, error) {
	var resp Project
	if err := c.do(ctx, "GET", projectPath(projectID), nil, &resp, nil); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- Members ---

// Member is a user's role in a project.
type Member struct {
	ProjectID string    `json:"project_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	InvitedBy string    `json:"invited_by"`
	CreatedAt time.Time `json:"created_at"`
}

// AddMember invites a user by email.
func (c *Client) AddMember(ctx context.Context, projectID, email, role string) (*Member, error) {
	body := map[string]string{"email": email, "role": role}
	var resp Member
	if err := c.do(ctx, "POST", projectPath(projectID)+"/members", body, &resp, nil); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListMembers lists a project's members.
func (c *Client) ListMembers(ctx context.Context, projectID string) ([]Member, error) {
	var resp []Member
	if err := c.do(ctx, "GET", projectPath(projectID)+"/members", nil, &resp, nil); err != nil {
		return nil, err
	}
	return resp, nil
}

// RemoveMember removes a user from a project.
func (c *Client) RemoveMember(ctx context.Context, projectID, userID string) error {
	return c.do(ctx, "DELETE", projectPath(projectID)+"/members/"+url.PathEscape(userID), nil, nil, nil)
}

// --- Items ---

// NewItem is the body for CreateItem. Zero Position appends to the column.
type NewItem struct {
	Column      models.ColumnKey `json:"column,omitempty"`
	Title       string           `json:"title"`
	Description string           `json:"description,omitempty"`
	Position    int              `json:"position,omitempty"`
}

type itemsBody struct {
	Items []models.Item `json:"items"`
}

type positionsBody struct {
	Items []models.ChangedItem `json:"items"`
}

type positionsResult struct {
	Items    []models.Item `json:"items"`
	Replayed bool          `json:"replayed,omitempty"`
}

// ListItems fetches a project's items. A non-empty column filters the result.
func (c *Client) ListItems(ctx context.Context, projectID string, column models.ColumnKey) ([]models.Item, error) {
	path := projectPath(projectID) + "/items"
	if column != "" {
		path += "?column=" + url.QueryEscape(string(column))
	}
	var resp itemsBody
	if err := c.do(ctx, "GET", path, nil, &resp, nil); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// CreateItem adds an item to a project.
func (c *Client) CreateItem(ctx context.Context, projectID string, in NewItem) (*models.Item, error) {
	var resp models.Item
	if err := c.do(ctx, "POST", projectPath(projectID)+"/items", in, &resp, nil); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetItem fetches one item.
func (c *Client) GetItem(ctx context.Context, projectID, itemID string) (*models.Item, error) {
	var resp models.Item
	if err := c.do(ctx, "GET", projectPath(projectID)+"/items/"+url.PathEscape(itemID), nil, &resp, nil); err != nil {
		return nil, err
	}
	return &resp, nil
}

// DeleteItem removes an item.
func (c *Client) DeleteItem(ctx context.Context, projectID, itemID string) error {
	return c.do(ctx, "DELETE", projectPath(projectID)+"/items/"+url.PathEscape(itemID), nil, nil, nil)
}

// UpdatePositions sends one position batch. A non-empty idempotencyKey lets
// the server recognise a resend of the same batch.
func (c *Client) UpdatePositions(ctx context.Context, projectID string, batch []models.ChangedItem, idempotencyKey string) ([]models.Item, bool, error) {
	var hdr http.Header
	if idempotencyKey != "" {
		hdr = http.Header{"Idempotency-Key": []string{idempotencyKey}}
	}
	var resp positionsResult
	if err := c.do(ctx, "POST", projectPath(projectID)+"/items/positions", positionsBody{Items: batch}, &resp, hdr); err != nil {
		return nil, false, err
	}
	return resp.Items, resp.Replayed, nil
}

func projectPath(projectID string) string {
	return "/v1/projects/" + url.PathEscape(projectID)
}

// --- HTTP helpers ---

// APIError is a structured error response from the server. It unwraps to
// the matching sentinel error.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Code, e.Status)
}

func (e *APIError) Unwrap() error {
	switch e.Code {
	case "cross_tenant":
		return ErrCrossTenant
	case "position_out_of_range":
		return ErrPositionOutOfRange
	case "invalid_column":
		return ErrInvalidColumn
	case "rate_limited":
		return ErrRateLimited
	case "idempotency_conflict":
		return ErrIdempotencyConflict
	}
	switch e.Status {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// transportError marks failures where no HTTP response was received.
type transportError struct{ err error }

func (e *transportError) Error() string { return "http request: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// IsTransport reports whether err happened before a response arrived.
func IsTransport(err error) bool {
	var te *transportError
	return errors.As(err, &te)
}

func (c *Client) do(ctx context.Context, method, path string, body, result any, hdr http.Header) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	for k, vs := range hdr {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &transportError{err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
		var env errorEnvelope
		if json.Unmarshal(respBody, &env) == nil && env.Error.Code != "" {
			apiErr.Code, apiErr.Message = env.Error.Code, env.Error.Message
		} else {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return apiErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
