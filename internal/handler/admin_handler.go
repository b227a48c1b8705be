package handler

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/takk/backend/internal/repository"
	"github.com/takk/backend/internal/service"
	"github.com/takk/backend/internal/store"
)

// AdminHandler exposes the manual capture retry and the donation listing.
// Both require the shared admin secret in the X-Admin-Secret header.
type AdminHandler struct {
	svc    service.PaymentService
	index  repository.IndexRepository
	secret string
}

// NewAdminHandler returns an AdminHandler. An empty secret disables the
// endpoints entirely.
func NewAdminHandler(svc service.PaymentService, index repository.IndexRepository, secret string) *AdminHandler {
	return &AdminHandler{svc: svc, index: index, secret: secret}
}

// Capture handles POST /api/admin/capture.
func (h *AdminHandler) Capture(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !h.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
		return
	}

	var req struct {
		Reference string `json:"reference"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Reference == "" {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "reference_required"})
		return
	}

	rec, err := h.svc.CaptureByReference(r.Context(), req.Reference)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "reference_not_found"})
		case errors.Is(err, service.ErrNotCapturable):
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "not_capturable"})
		default:
			slog.Error("admin capture failed", "reference", req.Reference, "error", err)
			w.WriteHeader(http.StatusBadGateway)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "capture_failed"})
		}
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]string{
		"reference": rec.Reference,
		"status":    string(rec.Status),
	})
}

// ListDonations handles GET /api/admin/donations.
func (h *AdminHandler) ListDonations(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !h.authorized(r) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
		return
	}

	entries, err := h.index.List(r.Context())
	if err != nil {
		slog.Error("donation index read failed", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "index_unavailable"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"donations": entries})
}

func (h *AdminHandler) authorized(r *http.Request) bool {
	if h.secret == "" {
		return false
	}
	got := r.Header.Get("X-Admin-Secret")
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) == 1
}
