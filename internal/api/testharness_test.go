package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/marcus/kb/internal/models"
	"github.com/marcus/kb/internal/serverdb"
)

// TestHarness runs a full Server behind a real HTTP listener.
type TestHarness struct {
	t       *testing.T
	Server  *Server
	Store   *serverdb.ServerDB
	BaseURL string
	client  *http.Client
}

func newTestHarness(t *testing.T, opts ...func(*Config)) *TestHarness {
	return newTestHarnessWith(t, nil, opts...)
}

func newTestHarnessWith(t *testing.T, serverOpts []ServerOption, opts ...func(*Config)) *TestHarness {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "server.db")
	store, err := serverdb.Open(dbPath)
	if err != nil {
		t.Fatalf("open server db: %v", err)
	}

	cfg := Config{
		ListenAddr:     ":0",
		ServerDBPath:   dbPath,
		RateLimitRead:  100000,
		RateLimitWrite: 100000,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	srv, err := NewServer(cfg, store, serverOpts...)
	if err != nil {
		t.Fatalf("create server: %v", err)
	}
	httpSrv := httptest.NewServer(srv.routes())

	t.Cleanup(func() {
		httpSrv.Close()
		store.Close()
	})

	return &TestHarness{
		t:       t,
		Server:  srv,
		Store:   store,
		BaseURL: httpSrv.URL,
		client:  httpSrv.Client(),
	}
}

// Do sends a request. Callers close resp.Body unless they pass it to an
// assertion helper.
func (h *TestHarness) Do(method, path, token string, body any, headers ...string) *http.Response {
	h.t.Helper()

	var rdr io.Reader
	if body != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			h.t.Fatalf("marshal request body: %v", err)
		}
		rdr = &buf
	}

	req, err := http.NewRequest(method, h.BaseURL+path, rdr)
	if err != nil {
		h.t.Fatalf("create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := h.client.Do(req)
	if err != nil {
		h.t.Fatalf("do request %s %s: %v", method, path, err)
	}
	return resp
}

// DoJSON sends a request, requires success, and decodes the body into out.
func (h *TestHarness) DoJSON(method, path, token string, body, out any) *http.Response {
	h.t.Helper()

	resp := h.Do(method, path, token, body)
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		h.t.Fatalf("%s %s: expected success, got %d: %s", method, path, resp.StatusCode, b)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			h.t.Fatalf("decode response: %v", err)
		}
	}
	return resp
}

// CreateUser registers a user directly in the store and returns an API key.
func (h *TestHarness) CreateUser(email string) (userID, token string) {
	h.t.Helper()
	u, err := h.Store.CreateUser(email)
	if err != nil {
		h.t.Fatalf("create user: %v", err)
	}
	tok, _, err := h.Store.GenerateAPIKey(u.ID, "test", nil)
	if err != nil {
		h.t.Fatalf("generate api key: %v", err)
	}
	return u.ID, tok
}

// CreateProject creates a project through the API and returns its id.
func (h *TestHarness) CreateProject(token, name string) string {
	h.t.Helper()
	var p ProjectResponse
	resp := h.DoJSON("POST", "/v1/projects", token, CreateProjectRequest{Name: name}, &p)
	if resp.StatusCode != http.StatusCreated {
		h.t.Fatalf("create project: expected 201, got %d", resp.StatusCode)
	}
	return p.ID
}

// CreateItem creates an item through the API.
func (h *TestHarness) CreateItem(token, projectID string, column models.ColumnKey, title string) models.Item {
	h.t.Helper()
	var it models.Item
	h.DoJSON("POST", "/v1/projects/"+projectID+"/items", token,
		CreateItemRequest{Column: string(column), Title: title}, &it)
	return it
}

// ListItems fetches a project's items.
func (h *TestHarness) ListItems(token, projectID string) []models.Item {
	h.t.Helper()
	var resp ItemsResponse
	h.DoJSON("GET", "/v1/projects/"+projectID+"/items", token, nil, &resp)
	return resp.Items
}

func AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != expected {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d: %s", expected, resp.StatusCode, b)
	}
}

func AssertErrorResponse(t *testing.T, resp *http.Response, expectedStatus int, expectedCode string) {
	t.Helper()
	defer resp.Body.Close()
	if resp.StatusCode != expectedStatus {
		b, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d: %s", expectedStatus, resp.StatusCode, b)
	}
	var er ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if er.Error.Code != expectedCode {
		t.Fatalf("expected error code %q, got %q (%s)", expectedCode, er.Error.Code, er.Error.Message)
	}
}

func ReadJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}
