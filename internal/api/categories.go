package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/gudangmitra/gudang/internal/model"
	"github.com/gudangmitra/gudang/internal/store"
)

// CategoriesHandler handles category endpoints.
type CategoriesHandler struct {
	DB *sql.DB
}

type categoryRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
}

// List handles GET /api/categories.
func (h *CategoriesHandler) List(w http.ResponseWriter, r *http.Request) {
	categories, err := store.ListCategories(r.Context(), h.DB)
	if err != nil {
		storeError(w, err, "failed to list categories")
		return
	}
	if categories == nil {
		categories = []model.Category{}
	}
	jsonResponse(w, http.StatusOK, categories)
}

// Get handles GET /api/categories/{id}.
func (h *CategoriesHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := store.GetCategory(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		storeError(w, err, "failed to get category")
		return
	}
	jsonResponse(w, http.StatusOK, c)
}

// Create handles POST /api/categories.
func (h *CategoriesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateBody(&req); msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}

	c, err := store.CreateCategory(r.Context(), h.DB, req.Name, req.Description)
	if err != nil {
		storeError(w, err, "failed to create category")
		return
	}

	slog.Info("category created", "user", GetClaims(r.Context()).Email, "category", c.Name)
	jsonResponse(w, http.StatusCreated, c)
}

// Update handles PUT /api/categories/{id}.
func (h *CategoriesHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := validateBody(&req); msg != "" {
		jsonError(w, http.StatusBadRequest, msg)
		return
	}

	c, err := store.UpdateCategory(r.Context(), h.DB, r.PathValue("id"), req.Name, req.Description)
	if err != nil {
		storeError(w, err, "failed to update category")
		return
	}

	slog.Info("category updated", "user", GetClaims(r.Context()).Email, "category", c.Name)
	jsonResponse(w, http.StatusOK, c)
}

// Delete handles DELETE /api/categories/{id}.
func (h *CategoriesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := store.DeleteCategory(r.Context(), h.DB, id); err != nil {
		storeError(w, err, "failed to delete category")
		return
	}

	slog.Info("category deleted", "user", GetClaims(r.Context()).Email, "category_id", id)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "category deleted"})
}
