package api

import (
	"bytes"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gudangmitra/gudang/internal/export"
	"github.com/gudangmitra/gudang/internal/lifecycle"
	"github.com/gudangmitra/gudang/internal/model"
	"github.com/gudangmitra/gudang/internal/store"
)

// RequestsHandler exposes the request lifecycle.
type RequestsHandler struct {
	DB       *sql.DB
	Requests *lifecycle.Manager
}

type createRequestBody struct {
	ProjectName string            `json:"project_name" validate:"required"`
	RequesterID int64             `json:"requester_id"`
	Reason      string            `json:"reason"`
	Priority    string            `json:"priority" validate:"omitempty,oneof=low medium high"`
	DueDate     string            `json:"due_date"`
	Items       []model.LineDraft `json:"items"`
}

type updateStatusBody struct {
	Status string `json:"status" validate:"required"`
}

type statusChangeResponse struct {
	*model.StatusChange
	Warnings []string `json:"warnings,omitempty"`
}

// List handles GET /api/requests. Managers see every request and may filter
// by requester_id; everyone else sees their own.
func (h *RequestsHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, ok := requestFilter(w, r)
	if !ok {
		return
	}
	h.list(w, r, filter)
}

// ListByUser handles GET /api/requests/user/{userId}.
func (h *RequestsHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userId")
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	claims := GetClaims(r.Context())
	if userID != claims.UserID && !model.RoleAtLeast(claims.Role, model.RoleManager) {
		jsonError(w, http.StatusForbidden, "insufficient permissions")
		return
	}

	status := r.URL.Query().Get("status")
	if status != "" && !model.ValidRequestStatus(status) {
		jsonError(w, http.StatusBadRequest, "invalid status")
		return
	}
	h.list(w, r, model.RequestFilter{RequesterID: userID, Status: status})
}

func (h *RequestsHandler) list(w http.ResponseWriter, r *http.Request, filter model.RequestFilter) {
	requests, err := h.Requests.ListRequests(r.Context(), filter)
	if err != nil {
		storeError(w, err, "failed to list requests")
		return
	}
	if requests == nil {
		requests = []model.Request{}
	}
	jsonResponse(w, http.StatusOK, requests)
}

// requestFilter builds the list filter from the query string, scoped to
// the caller unless they are a manager.
func requestFilter(w http.ResponseWriter, r *http.Request) (model.RequestFilter, bool) {
	q := r.URL.Query()
	claims := GetClaims(r.Context())

	filter := model.RequestFilter{Status: q.Get("status")}
	if filter.Status != "" && !model.ValidRequestStatus(filter.Status) {
		jsonError(w, http.StatusBadRequest, "invalid status")
		return filter, false
	}

	if !model.RoleAtLeast(claims.Role, model.RoleManager) {
		filter.RequesterID = claims.UserID
		return filter, true
	}
	if v := q.Get("requester_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			jsonError(w, http.StatusBadRequest, "invalid requester_id")
			return filter, false
		}
		filter.RequesterID = id
	}
	return filter, true
}

// Get handles GET /api/requests/{id}.
func (h *RequestsHandler) Get(w http.ResponseWriter, r *http.Request) {
	req, err := h.Requests.GetRequest(r.Context(), r.PathValue("id"))
	if err != nil {
		storeError(w, err, "failed to get request")
		return
	}

	claims := GetClaims(r.Context())
	if req.RequesterID != claims.UserID && !model.RoleAtLeast(claims.Role, model.RoleManager) {
		jsonError(w, http.StatusForbidden, "insufficient permissions")
		return
	}
	jsonResponse(w, http.StatusOK, req)
}

// Create handles POST /api/requests. The caller is the requester; managers
// may submit on behalf of another user with requester_id.
func (h *RequestsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body createRequestBody
	if err := decodeJSON(w, r, &body); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateBody(&body); msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}

	claims := GetClaims(r.Context())
	requesterID := claims.UserID
	if body.RequesterID != 0 && body.RequesterID != claims.UserID {
		if !model.RoleAtLeast(claims.Role, model.RoleManager) {
			jsonError(w, http.StatusForbidden, "only managers may submit on behalf of others")
			return
		}
		u, err := store.GetUser(r.Context(), h.DB, body.RequesterID)
		if err != nil {
			storeError(w, err, "failed to create request")
			return
		}
		if u == nil || u.DeletedAt != nil {
			jsonError(w, http.StatusBadRequest, fmt.Sprintf("requester_id %d does not exist", body.RequesterID))
			return
		}
		requesterID = u.ID
	}

	due, err := parseDueDate(body.DueDate)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	req, err := h.Requests.CreateRequest(r.Context(), model.RequestDraft{
		ProjectName: body.ProjectName,
		RequesterID: requesterID,
		Reason:      body.Reason,
		Priority:    body.Priority,
		DueDate:     due,
		Items:       body.Items,
	})
	if err != nil {
		storeError(w, err, "failed to create request")
		return
	}

	jsonResponse(w, http.StatusCreated, req)
}

// parseDueDate accepts a calendar date or an RFC 3339 timestamp.
func parseDueDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.DateOnly, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("due_date %q must be YYYY-MM-DD or RFC 3339", s)
}

// UpdateStatus handles PUT /api/requests/{id}/status.
func (h *RequestsHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var body updateStatusBody
	if err := decodeJSON(w, r, &body); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateBody(&body); msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}

	id := r.PathValue("id")
	change, err := h.Requests.SetRequestStatus(r.Context(), id, body.Status)
	if err != nil {
		storeError(w, err, "failed to update request status")
		return
	}

	resp := statusChangeResponse{StatusChange: change}
	for _, s := range change.Shortfalls() {
		resp.Warnings = append(resp.Warnings, fmt.Sprintf(
			"%s: requested %d but only %d on hand", s.Name, s.Requested, s.Before))
	}

	slog.Info("request reviewed", "request", id, "user", GetClaims(r.Context()).Email, "status", change.To)
	jsonResponse(w, http.StatusOK, resp)
}

// Delete handles DELETE /api/requests/{id}.
func (h *RequestsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.Requests.DeleteRequest(r.Context(), r.PathValue("id")); err != nil {
		storeError(w, err, "failed to delete request")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "request deleted"})
}

// Export handles GET /api/requests/export. It honours the same filters as List.
func (h *RequestsHandler) Export(w http.ResponseWriter, r *http.Request) {
	filter, ok := requestFilter(w, r)
	if !ok {
		return
	}

	requests, err := h.Requests.ListRequests(r.Context(), filter)
	if err != nil {
		storeError(w, err, "failed to export requests")
		return
	}

	var buf bytes.Buffer
	if err := export.RequestsWorkbook(&buf, requests); err != nil {
		slog.Error("failed to build requests workbook", "error", err)
		jsonError(w, http.StatusInternalServerError, "failed to export requests")
		return
	}

	filename := fmt.Sprintf("requests_export_%s.xlsx", time.Now().Format("2006-01-02"))
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Write(buf.Bytes())
}
