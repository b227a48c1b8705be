package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/takk/backend/internal/service"
	"github.com/takk/backend/pkg/vipps"
)

// maxWebhookBody bounds inbound notification payloads.
const maxWebhookBody = 1 << 20

// WebhookHandler receives asynchronous payment-status notifications.
type WebhookHandler struct {
	svc    service.PaymentService
	secret []byte // empty disables signature verification
}

// NewWebhookHandler returns a WebhookHandler. An empty secret skips
// signature verification; that posture is insecure by default and gets a
// warning log per request.
func NewWebhookHandler(svc service.PaymentService, secret []byte) *WebhookHandler {
	return &WebhookHandler{svc: svc, secret: secret}
}

// Webhook handles POST /api/webhooks/payment.
func (h *WebhookHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "read_body_failed"})
		return
	}

	if len(h.secret) > 0 {
		sig := r.Header.Get("X-Signature")
		if err := vipps.VerifySignature(h.secret, payload, sig); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "signature_verification_failed"})
			return
		}
	} else {
		slog.Warn("webhook signature verification disabled: no secret configured")
	}

	ev, err := vipps.ParseEvent(payload)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_event"})
		return
	}

	if _, err := h.svc.ProcessEvent(r.Context(), ev); err != nil {
		if errors.Is(err, service.ErrInvalidEvent) {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid_event"})
			return
		}
		// Persistence failed; the provider redelivers and the idempotency
		// check absorbs the retry.
		slog.Error("webhook processing failed", "reference", ev.Reference, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "processing_failed"})
		return
	}

	_ = json.NewEncoder(w).Encode(map[string]bool{"received": true})
}
