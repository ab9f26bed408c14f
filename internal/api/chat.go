package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gudangmitra/gudang/internal/chat"
	"github.com/gudangmitra/gudang/internal/model"
	"github.com/gudangmitra/gudang/internal/store"
)

// ChatHandler serves the inventory assistant.
type ChatHandler struct {
	DB     *sql.DB
	Client *chat.Client
}

type chatRequest struct {
	Message   string `json:"message" validate:"required"`
	SessionID string `json:"sessionId"`
}

type chatResponse struct {
	Message   *chat.Message `json:"message"`
	SessionID string        `json:"sessionId"`
}

// Send handles POST /api/chat.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateBody(&req); msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}
	if !h.Client.Configured() {
		jsonError(w, http.StatusServiceUnavailable, chat.ErrNotConfigured.Error())
		return
	}

	items, err := h.itemsContext(r)
	if err != nil {
		storeError(w, err, "failed to load inventory")
		return
	}

	claims := GetClaims(r.Context())
	reply, sessionID, err := h.Client.Chat(r.Context(), claims.UserID, req.SessionID, req.Message, items)
	switch {
	case errors.Is(err, chat.ErrNotConfigured):
		jsonError(w, http.StatusServiceUnavailable, err.Error())
		return
	case errors.Is(err, chat.ErrRateLimited):
		jsonError(w, http.StatusTooManyRequests, "AI service temporarily unavailable, please try again later")
		return
	case errors.Is(err, chat.ErrSessionNotFound):
		jsonError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		slog.Error("chat failed", "user", claims.Email, "error", err)
		jsonError(w, http.StatusBadGateway, "failed to process chat message")
		return
	}

	jsonResponse(w, http.StatusOK, chatResponse{Message: reply, SessionID: sessionID})
}

// ItemsContext handles GET /api/chat/items-context.
func (h *ChatHandler) ItemsContext(w http.ResponseWriter, r *http.Request) {
	items, err := h.itemsContext(r)
	if err != nil {
		storeError(w, err, "failed to load inventory")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]any{"items": items})
}

func (h *ChatHandler) itemsContext(r *http.Request) ([]chat.ItemContext, error) {
	items, err := store.ListItems(r.Context(), h.DB, model.ItemFilter{})
	if err != nil {
		return nil, err
	}
	return chat.BuildItemsContext(items), nil
}

// Sessions handles GET /api/chat/sessions.
func (h *ChatHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, h.Client.Sessions(GetClaims(r.Context()).UserID))
}

// CreateSession handles POST /api/chat/sessions.
func (h *ChatHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusCreated, h.Client.NewSession(GetClaims(r.Context()).UserID))
}

// Session handles GET /api/chat/sessions/{id}.
func (h *ChatHandler) Session(w http.ResponseWriter, r *http.Request) {
	sess, err := h.Client.Session(GetClaims(r.Context()).UserID, r.PathValue("id"))
	if err != nil {
		jsonError(w, http.StatusNotFound, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, sess)
}

// DeleteSession handles DELETE /api/chat/sessions/{id}.
func (h *ChatHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.Client.DeleteSession(GetClaims(r.Context()).UserID, r.PathValue("id")); err != nil {
		jsonError(w, http.StatusNotFound, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"message": "session deleted"})
}
