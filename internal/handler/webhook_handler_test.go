package handler

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/takk/backend/internal/model"
	"github.com/takk/backend/internal/service"
	"github.com/takk/backend/pkg/vipps"
)

// ---------------------------------------------------------------------------
// Mock services
// ---------------------------------------------------------------------------

type mockPaymentService struct {
	processFunc func(ctx context.Context, ev vipps.Event) (*model.DonationRecord, error)
	captureFunc func(ctx context.Context, reference string) (*model.DonationRecord, error)
}

func (m *mockPaymentService) ProcessEvent(ctx context.Context, ev vipps.Event) (*model.DonationRecord, error) {
	if m.processFunc != nil {
		return m.processFunc(ctx, ev)
	}
	return &model.DonationRecord{Reference: ev.Reference}, nil
}

func (m *mockPaymentService) CaptureByReference(ctx context.Context, reference string) (*model.DonationRecord, error) {
	if m.captureFunc != nil {
		return m.captureFunc(ctx, reference)
	}
	return &model.DonationRecord{Reference: reference, Status: model.StatusCaptured}, nil
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

const validWebhookBody = `{"reference":"ref-1","name":"AUTHORIZED","amount":{"value":25000,"currency":"NOK"}}`

func postWebhook(h *WebhookHandler, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/payment", bytes.NewBufferString(body))
	if signature != "" {
		req.Header.Set("X-Signature", signature)
	}
	w := httptest.NewRecorder()
	h.Webhook(w, req)
	return w
}

func TestWebhook_AcceptsValidSignature(t *testing.T) {
	secret := []byte("hook-secret")
	var processed []string
	svc := &mockPaymentService{
		processFunc: func(_ context.Context, ev vipps.Event) (*model.DonationRecord, error) {
			processed = append(processed, ev.Reference)
			return &model.DonationRecord{Reference: ev.Reference}, nil
		},
	}
	h := NewWebhookHandler(svc, secret)

	sig := vipps.Sign(secret, []byte(validWebhookBody))
	w := postWebhook(h, validWebhookBody, sig)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if len(processed) != 1 || processed[0] != "ref-1" {
		t.Errorf("processed = %v", processed)
	}
}

func TestWebhook_RejectsBadSignature(t *testing.T) {
	svc := &mockPaymentService{
		processFunc: func(context.Context, vipps.Event) (*model.DonationRecord, error) {
			t.Error("event processed despite bad signature")
			return nil, nil
		},
	}
	h := NewWebhookHandler(svc, []byte("hook-secret"))

	for _, sig := range []string{"", "0000deadbeef"} {
		w := postWebhook(h, validWebhookBody, sig)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("signature %q: status = %d, want 401", sig, w.Code)
		}
	}
}

func TestWebhook_NoSecretSkipsVerification(t *testing.T) {
	h := NewWebhookHandler(&mockPaymentService{}, nil)

	w := postWebhook(h, validWebhookBody, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 when verification is disabled", w.Code)
	}
}

func TestWebhook_InvalidPayload(t *testing.T) {
	h := NewWebhookHandler(&mockPaymentService{}, nil)

	w := postWebhook(h, `{"unrelated": true}`, "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestWebhook_ProcessingErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid event", service.ErrInvalidEvent, http.StatusBadRequest},
		{"store failure", errors.New("store unavailable"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		svc := &mockPaymentService{
			processFunc: func(context.Context, vipps.Event) (*model.DonationRecord, error) {
				return nil, tt.err
			},
		}
		h := NewWebhookHandler(svc, nil)
		w := postWebhook(h, validWebhookBody, "")
		if w.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.name, w.Code, tt.want)
		}
	}
}
