package vipps

import (
	"errors"
	"testing"
)

func TestVerifySignature(t *testing.T) {
	secret := []byte("webhook-secret")
	body := []byte(`{"reference":"ref-1","name":"AUTHORIZED"}`)

	if err := VerifySignature(secret, body, Sign(secret, body)); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}

	if err := VerifySignature(secret, body, ""); !errors.Is(err, ErrBadSignature) {
		t.Errorf("empty signature: expected ErrBadSignature, got %v", err)
	}
	if err := VerifySignature(secret, body, "deadbeef"); !errors.Is(err, ErrBadSignature) {
		t.Errorf("wrong signature: expected ErrBadSignature, got %v", err)
	}
	if err := VerifySignature([]byte("other"), body, Sign(secret, body)); !errors.Is(err, ErrBadSignature) {
		t.Errorf("wrong secret: expected ErrBadSignature, got %v", err)
	}
}
