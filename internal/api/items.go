package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/marcus/kb/internal/models"
	"github.com/marcus/kb/internal/serverdb"
)

// IdempotencyHeader carries the client-chosen key for a position batch.
const IdempotencyHeader = "Idempotency-Key"

// ReplayedHeader is set on responses answered from a remembered key.
const ReplayedHeader = "Idempotent-Replayed"

// ItemsResponse wraps a list of items.
type ItemsResponse struct {
	Items []models.Item `json:"items"`
}

// PositionsRequest is the body of POST /v1/projects/{id}/items/positions.
type PositionsRequest struct {
	Items []models.ChangedItem `json:"items"`
}

// PositionsResponse returns the canonical records of a batch.
type PositionsResponse struct {
	Items    []models.Item `json:"items"`
	Replayed bool          `json:"replayed,omitempty"`
}

// CreateItemRequest is the body of POST /v1/projects/{id}/items.
type CreateItemRequest struct {
	Column      string `json:"column"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Position    int    `json:"position,omitempty"`
}

// handleListItems handles GET /v1/projects/{id}/items.
func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	var column models.ColumnKey
	if raw := r.URL.Query().Get("column"); raw != "" {
		c, err := models.ParseColumn(raw)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, ErrCodeInvalidColumn, err.Error())
			return
		}
		column = c
	}

	items, err := s.store.ListItems(projectID, column)
	if err != nil {
		writeStoreError(w, r, "list items", err)
		return
	}
	writeJSON(w, http.StatusOK, ItemsResponse{Items: items})
}

// handleCreateItem handles POST /v1/projects/{id}/items.
func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("id")

	var req CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "title is required")
		return
	}
	column := models.ColumnBacklog
	if req.Column != "" {
		c, err := models.ParseColumn(req.Column)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, ErrCodeInvalidColumn, err.Error())
			return
		}
		column = c
	}

	it, err := s.store.CreateItem(projectID, serverdb.NewItem{
		Column:      column,
		Position:    req.Position,
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		writeStoreError(w, r, "create item", err)
		return
	}
	logFor(r.Context()).Info("item created", "item", it.ID, "column", it.Column, "position", it.Position)
	writeJSON(w, http.StatusCreated, it)
}

// handleGetItem handles GET /v1/projects/{id}/items/{itemID}.
func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	it, err := s.store.GetItem(r.PathValue("id"), r.PathValue("itemID"))
	if err != nil {
		writeStoreError(w, r, "get item", err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// handleDeleteItem handles DELETE /v1/projects/{id}/items/{itemID}.
func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteItem(r.PathValue("id"), r.PathValue("itemID")); err != nil {
		writeStoreError(w, r, "delete item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleUpdatePositions handles POST /v1/projects/{id}/items/positions.
// The batch is applied atomically. A request repeating a completed
// Idempotency-Key with the same body gets the current records without a
// second write; a key still in flight or reused with another body is a 409.
func (s *Server) handleUpdatePositions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	projectID := r.PathValue("id")
	user := getUserFromContext(ctx)

	var req PositionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeBadRequest, "invalid json body")
		return
	}
	if err := serverdb.ValidateBatch(req.Items); err != nil {
		s.metrics.RecordBatch(len(req.Items), false)
		writeStoreError(w, r, "validate batch", err)
		return
	}

	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	scope := idempotencyScope(projectID, user.UserID)
	hash := batchHash(req.Items)
	recorded := false
	if s.deduper != nil && key != "" {
		state, err := s.deduper.Begin(ctx, scope, key, hash)
		switch {
		case err != nil:
			logFor(ctx).Warn("idempotency check failed, applying batch", "key", key, "err", err)
		case state == KeyDone:
			s.replayBatch(w, r, projectID, req.Items)
			return
		case state == KeyPending:
			writeError(w, http.StatusConflict, ErrCodeIdempotencyConflict, "a batch with this idempotency key is still in progress")
			return
		case state == KeyMismatch:
			writeError(w, http.StatusConflict, ErrCodeIdempotencyConflict, "idempotency key was used with a different batch")
			return
		default:
			recorded = true
		}
	}

	records, err := s.store.UpdatePositions(projectID, req.Items)
	// the key must settle even when the client has gone away
	bg := context.WithoutCancel(ctx)
	if err != nil {
		s.metrics.RecordBatch(len(req.Items), false)
		if recorded {
			if ferr := s.deduper.Forget(bg, scope, key); ferr != nil {
				logFor(ctx).Warn("forget idempotency key", "key", key, "err", ferr)
			}
		}
		logFor(ctx).Info("batch rejected", "items", len(req.Items), "err", err)
		writeStoreError(w, r, "update positions", err)
		return
	}
	if recorded {
		if cerr := s.deduper.Complete(bg, scope, key, hash); cerr != nil {
			logFor(ctx).Warn("complete idempotency key", "key", key, "err", cerr)
			_ = s.deduper.Forget(bg, scope, key)
		}
	}

	s.metrics.RecordBatch(len(records), true)
	logFor(ctx).Debug("batch applied", "items", len(records))
	writeJSON(w, http.StatusOK, PositionsResponse{Items: records})
}

func (s *Server) replayBatch(w http.ResponseWriter, r *http.Request, projectID string, batch []models.ChangedItem) {
	ids := make([]string, 0, len(batch))
	seen := make(map[string]bool, len(batch))
	for _, c := range batch {
		if !seen[c.ID] {
			seen[c.ID] = true
			ids = append(ids, c.ID)
		}
	}
	records, err := s.store.ItemsByID(projectID, ids)
	if err != nil {
		writeStoreError(w, r, "replay batch", err)
		return
	}
	s.metrics.RecordReplay()
	logFor(r.Context()).Info("batch replayed", "items", len(records))
	w.Header().Set(ReplayedHeader, "true")
	writeJSON(w, http.StatusOK, PositionsResponse{Items: records, Replayed: true})
}
