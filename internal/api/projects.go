package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/marcus/kb/internal/serverdb"
)

// CreateProjectRequest is the body of POST /v1/projects.
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ProjectResponse is the JSON form of a project.
type ProjectResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func projectToResponse(p *serverdb.Project) ProjectResponse {
	return ProjectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

// handleCreateProject handles POST /v1/projects. The caller becomes owner.
func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())

	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "name is required")
		return
	}

	p, err := s.store.CreateProject(req.Name, req.Description, user.UserID)
	if err != nil {
		writeStoreError(w, r, "create project", err)
		return
	}
	logFor(r.Context()).Info("project created", "project", p.ID)
	writeJSON(w, http.StatusCreated, projectToResponse(p))
}

// handleListProjects handles GET /v1/projects.
func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	user := getUserFromContext(r.Context())

	projects, err := s.store.ListProjectsForUser(user.UserID)
	if err != nil {
		writeStoreError(w, r, "list projects", err)
		return
	}

	resp := make([]ProjectResponse, 0, len(projects))
	for _, p := range projects {
		resp = append(resp, projectToResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetProject handles GET /v1/projects/{id}.
func (s *Server) handleGetProject(w http.ResponseWriter, r *http.Request) {
	p, err := s.store.GetProject(r.PathValue("id"))
	if err != nil {
		writeStoreError(w, r, "get project", err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "project not found")
		return
	}
	writeJSON(w, http.StatusOK, projectToResponse(p))
}

// handleDeleteProject handles DELETE /v1/projects/{id}.
func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	if err := s.store.SoftDeleteProject(r.PathValue("id")); err != nil {
		writeStoreError(w, r, "delete project", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
