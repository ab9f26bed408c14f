package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gudangmitra/gudang/internal/model"
	"github.com/gudangmitra/gudang/internal/store"
)

// NotificationsHandler serves the caller's notifications.
type NotificationsHandler struct {
	DB *sql.DB
}

type createNotificationRequest struct {
	UserID           int64  `json:"user_id" validate:"required,gt=0"`
	Type             string `json:"type" validate:"omitempty,oneof=request_submitted request_approved request_rejected request_fulfilled system"`
	Message          string `json:"message" validate:"required"`
	RelatedRequestID string `json:"related_request_id"`
}

// List handles GET /api/notifications. ?unread=true limits to unread ones;
// ?limit caps the result.
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	unread, _ := strconv.ParseBool(q.Get("unread"))
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	list, err := store.ListNotifications(r.Context(), h.DB, GetClaims(r.Context()).UserID, unread, limit)
	if err != nil {
		storeError(w, err, "failed to list notifications")
		return
	}
	if list == nil {
		list = []model.Notification{}
	}
	jsonResponse(w, http.StatusOK, list)
}

// UnreadCount handles GET /api/notifications/unread-count.
func (h *NotificationsHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	n, err := store.CountUnreadNotifications(r.Context(), h.DB, GetClaims(r.Context()).UserID)
	if err != nil {
		storeError(w, err, "failed to count notifications")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"count": n})
}

// MarkRead handles PUT /api/notifications/{id}/read.
func (h *NotificationsHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := store.MarkNotificationRead(r.Context(), h.DB, r.PathValue("id"), GetClaims(r.Context()).UserID); err != nil {
		storeError(w, err, "failed to mark notification read")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "notification marked as read"})
}

// MarkAllRead handles PUT /api/notifications/read-all.
func (h *NotificationsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	n, err := store.MarkAllNotificationsRead(r.Context(), h.DB, GetClaims(r.Context()).UserID)
	if err != nil {
		storeError(w, err, "failed to mark notifications read")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int64{"updated": n})
}

// Delete handles DELETE /api/notifications/{id}.
func (h *NotificationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := store.DeleteNotification(r.Context(), h.DB, r.PathValue("id"), GetClaims(r.Context()).UserID); err != nil {
		storeError(w, err, "failed to delete notification")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "notification deleted"})
}

// Create handles POST /api/notifications.
func (h *NotificationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createNotificationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateBody(&req); msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}

	target, err := store.GetUser(r.Context(), h.DB, req.UserID)
	if err != nil {
		storeError(w, err, "failed to create notification")
		return
	}
	if target == nil || target.DeletedAt != nil {
		jsonError(w, http.StatusBadRequest, "user_id does not exist")
		return
	}

	n, err := store.CreateNotification(r.Context(), h.DB, model.Notification{
		UserID:           req.UserID,
		Type:             req.Type,
		Message:          req.Message,
		RelatedRequestID: req.RelatedRequestID,
	})
	if err != nil {
		storeError(w, err, "failed to create notification")
		return
	}

	slog.Info("notification created", "user", GetClaims(r.Context()).Email, "recipient", req.UserID, "type", n.Type)
	jsonResponse(w, http.StatusCreated, n)
}
