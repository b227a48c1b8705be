package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/takk/backend/internal/service"
	"github.com/takk/backend/internal/storage"
)

// DownloadHandler releases the protected artifact for valid grants.
type DownloadHandler struct {
	svc    service.DownloadService
	assets storage.AssetStore
}

// NewDownloadHandler returns a DownloadHandler.
func NewDownloadHandler(svc service.DownloadService, assets storage.AssetStore) *DownloadHandler {
	return &DownloadHandler{svc: svc, assets: assets}
}

// Download handles GET /api/downloads/{downloadId}.
func (h *DownloadHandler) Download(w http.ResponseWriter, r *http.Request) {
	downloadID := r.PathValue("downloadId")
	if downloadID == "" {
		writeDenial(w, http.StatusNotFound, "not_found")
		return
	}

	grant, err := h.svc.Authorize(r.Context(), downloadID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrGrantNotFound):
			writeDenial(w, http.StatusNotFound, "not_found")
		case errors.Is(err, service.ErrGrantExpired):
			writeDenial(w, http.StatusNotFound, "expired")
		case errors.Is(err, service.ErrNoPaymentRecord):
			writeDenial(w, http.StatusNotFound, "no_payment_record")
		case errors.Is(err, service.ErrPaymentNotCompleted):
			writeDenial(w, http.StatusForbidden, "payment_not_completed")
		default:
			slog.Error("download authorization failed", "download_id", downloadID, "error", err)
			writeDenial(w, http.StatusInternalServerError, "internal_error")
		}
		return
	}

	asset, info, err := h.assets.Open(r.Context(), grant.AssetKey)
	if err != nil {
		slog.Error("asset open failed", "asset_key", grant.AssetKey, "error", err)
		writeDenial(w, http.StatusInternalServerError, "asset_unavailable")
		return
	}
	defer asset.Close()

	w.Header().Set("Content-Type", info.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", info.Filename))
	if info.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	}
	if _, err := io.Copy(w, asset); err != nil {
		slog.Warn("asset stream interrupted", "download_id", downloadID, "error", err)
	}
}

func writeDenial(w http.ResponseWriter, status int, reason string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": reason})
}
