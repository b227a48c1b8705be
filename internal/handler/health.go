package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/takk/backend/internal/store"
)

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// HealthHandler reports whether the Record Store is reachable.
type HealthHandler struct {
	store store.Store
}

// NewHealthHandler returns a HealthHandler probing s.
func NewHealthHandler(s store.Store) *HealthHandler {
	return &HealthHandler{store: s}
}

// Health handles GET /api/health. A missing probe key is fine; any other
// store error means the backend is unreachable.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := h.store.Get(r.Context(), "health:probe"); err != nil && !errors.Is(err, store.ErrNotFound) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(healthResponse{Status: "unhealthy", Message: err.Error()})
		return
	}
	_ = json.NewEncoder(w).Encode(healthResponse{Status: "ok", Message: "takk API"})
}
