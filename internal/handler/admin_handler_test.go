package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/takk/backend/internal/model"
	"github.com/takk/backend/internal/repository"
	"github.com/takk/backend/internal/service"
	"github.com/takk/backend/internal/store"
)

const adminSecret = "admin-secret"

func postCapture(h *AdminHandler, secret, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/admin/capture", bytes.NewBufferString(body))
	if secret != "" {
		req.Header.Set("X-Admin-Secret", secret)
	}
	w := httptest.NewRecorder()
	h.Capture(w, req)
	return w
}

func TestAdminCapture_Success(t *testing.T) {
	svc := &mockPaymentService{
		captureFunc: func(_ context.Context, reference string) (*model.DonationRecord, error) {
			return &model.DonationRecord{Reference: reference, Status: model.StatusCaptured}, nil
		},
	}
	h := NewAdminHandler(svc, repository.NewIndexRepository(store.NewMemoryStore()), adminSecret)

	w := postCapture(h, adminSecret, `{"reference":"ref-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["reference"] != "ref-1" || resp["status"] != "CAPTURED" {
		t.Errorf("unexpected response: %v", resp)
	}
}

func TestAdminCapture_Unauthorized(t *testing.T) {
	h := NewAdminHandler(&mockPaymentService{}, repository.NewIndexRepository(store.NewMemoryStore()), adminSecret)

	for _, secret := range []string{"", "wrong"} {
		w := postCapture(h, secret, `{"reference":"ref-1"}`)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("secret %q: status = %d, want 401", secret, w.Code)
		}
	}
}

func TestAdminCapture_EmptySecretDisablesEndpoint(t *testing.T) {
	h := NewAdminHandler(&mockPaymentService{}, repository.NewIndexRepository(store.NewMemoryStore()), "")

	// Even a matching empty header must not authorize.
	w := postCapture(h, "", `{"reference":"ref-1"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 with no secret configured", w.Code)
	}
}

func TestAdminCapture_BadRequest(t *testing.T) {
	h := NewAdminHandler(&mockPaymentService{}, repository.NewIndexRepository(store.NewMemoryStore()), adminSecret)

	for _, body := range []string{"", "{}", `{"reference":""}`} {
		w := postCapture(h, adminSecret, body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, w.Code)
		}
	}
}

func TestAdminCapture_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{store.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: CANCELLED", service.ErrNotCapturable), http.StatusConflict},
		{errors.New("provider down"), http.StatusBadGateway},
	}
	for _, tt := range tests {
		svc := &mockPaymentService{
			captureFunc: func(context.Context, string) (*model.DonationRecord, error) {
				return nil, tt.err
			},
		}
		h := NewAdminHandler(svc, repository.NewIndexRepository(store.NewMemoryStore()), adminSecret)
		w := postCapture(h, adminSecret, `{"reference":"ref-1"}`)
		if w.Code != tt.want {
			t.Errorf("%v: status = %d, want %d", tt.err, w.Code, tt.want)
		}
	}
}

func TestAdminListDonations(t *testing.T) {
	ctx := context.Background()
	index := repository.NewIndexRepository(store.NewMemoryStore())
	for _, ref := range []string{"r1", "r2"} {
		entry := model.DonationIndexEntry{Reference: ref, Status: model.StatusCaptured}
		if err := index.Upsert(ctx, entry); err != nil {
			t.Fatalf("seed index: %v", err)
		}
	}
	h := NewAdminHandler(&mockPaymentService{}, index, adminSecret)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/donations", nil)
	req.Header.Set("X-Admin-Secret", adminSecret)
	w := httptest.NewRecorder()
	h.ListDonations(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp struct {
		Donations []model.DonationIndexEntry `json:"donations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Donations) != 2 {
		t.Errorf("donations = %d, want 2", len(resp.Donations))
	}
}

func TestAdminListDonations_Unauthorized(t *testing.T) {
	h := NewAdminHandler(&mockPaymentService{}, repository.NewIndexRepository(store.NewMemoryStore()), adminSecret)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/donations", nil)
	w := httptest.NewRecorder()
	h.ListDonations(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}
