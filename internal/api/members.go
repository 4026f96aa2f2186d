package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/marcus/kb/internal/serverdb"
)

// AddMemberRequest is the body of POST /v1/projects/{id}/members. Either
// UserID or Email is required; an unknown email registers a new user.
type AddMemberRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// MemberResponse is the JSON form of a membership.
type MemberResponse struct {
	ProjectID string    `json:"project_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	InvitedBy string    `json:"invited_by"`
	CreatedAt time.Time `json:"created_at"`
}

func memberToResponse(m *serverdb.Membership) MemberResponse {
	return MemberResponse{
		ProjectID: m.ProjectID,
		UserID:    m.UserID,
		Role:      m.Role,
		InvitedBy: m.InvitedBy,
		CreatedAt: m.CreatedAt,
	}
}

// handleAddMember handles POST /v1/projects/{id}/members.
func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")
	caller := getUserFromContext(r.Context())

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid json body")
		return
	}
	if req.Role == "" {
		req.Role = serverdb.RoleWriter
	}

	if req.UserID == "" && req.Email != "" {
		u, err := s.store.GetUserByEmail(req.Email)
		if err != nil {
			writeStoreError(w, r, "look up user", err)
			return
		}
		if u == nil {
			if u, err = s.store.CreateUser(req.Email); err != nil {
				writeStoreError(w, r, "create user", err)
				return
			}
		}
		req.UserID = u.ID
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "user_id or email is required")
		return
	}

	m, err := s.store.AddMember(projectID, req.UserID, req.Role, caller.UserID)
	if err != nil {
		writeStoreError(w, r, "add member", err)
		return
	}
	logFor(r.Context()).Info("member added", "member", m.UserID, "role", m.Role)
	writeJSON(w, http.StatusCreated, memberToResponse(m))
}

// handleListMembers handles GET /v1/projects/{id}/members.
func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.store.ListMembers(r.PathValue("id"))
	if err != nil {
		writeStoreError(w, r, "list members", err)
		return
	}
	resp := make([]MemberResponse, 0, len(members))
	for _, m := range members {
		resp = append(resp, memberToResponse(m))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRemoveMember handles DELETE /v1/projects/{id}/members/{userID}.
func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	if err := s.store.RemoveMember(r.PathValue("id"), r.PathValue("userID")); err != nil {
		writeStoreError(w, r, "remove member", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
