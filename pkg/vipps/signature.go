package vipps

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrBadSignature is returned when a webhook signature is absent or does
// not match the request body.
var ErrBadSignature = errors.New("vipps: signature verification failed")

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a webhook's X-Signature value against the raw
// request body.
func VerifySignature(secret, body []byte, signature string) error {
	if signature == "" {
		return ErrBadSignature
	}
	expected := Sign(secret, body)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrBadSignature
	}
	return nil
}
