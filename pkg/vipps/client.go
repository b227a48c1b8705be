// Package vipps provides a lightweight client for the mobile-payment
// provider's ePayment API. Uses raw HTTP calls (no SDK) to minimize
// external dependencies.
package vipps

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// DefaultBaseURL is the production API host.
const DefaultBaseURL = "https://api.vipps.no"

// ErrNotConfigured is returned when provider credentials are absent.
var ErrNotConfigured = errors.New("vipps: not configured")

// ErrUpstreamAuth is returned when the provider rejects our credentials
// even after a token refresh.
var ErrUpstreamAuth = errors.New("vipps: upstream auth failed")

// Config holds the merchant credentials for the provider API.
type Config struct {
	ClientID        string
	ClientSecret    string
	SubscriptionKey string
	MerchantSerial  string
	BaseURL         string // defaults to DefaultBaseURL
}

func (c Config) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return DefaultBaseURL
}

// Client is the outbound surface the payment pipeline depends on.
type Client interface {
	// Capture finalizes fund transfer for an authorized payment. The
	// idempotency key must be unique per capture attempt: the provider
	// treats a reused key as the same attempt and a fresh key as a new one.
	Capture(ctx context.Context, reference string, amount Amount, idempotencyKey string) error
}

// RealClient talks to the provider over HTTP with cached bearer tokens.
type RealClient struct {
	cfg        Config
	tokens     *TokenProvider
	httpClient *http.Client
}

// NewClient returns a RealClient. Outbound calls carry a bounded timeout so
// a hung provider cannot stall the webhook pipeline.
func NewClient(cfg Config) *RealClient {
	hc := &http.Client{Timeout: 10 * time.Second}
	return &RealClient{
		cfg:        cfg,
		tokens:     NewTokenProvider(cfg, hc),
		httpClient: hc,
	}
}

// Capture issues POST /epayment/v1/payments/{reference}/capture for the
// full amount. A 401 triggers one token refresh and retry before
// surfacing ErrUpstreamAuth.
func (c *RealClient) Capture(ctx context.Context, reference string, amount Amount, idempotencyKey string) error {
	if c.cfg.ClientID == "" || c.cfg.ClientSecret == "" {
		return ErrNotConfigured
	}

	retried := false
	for {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return err
		}
		status, err := c.doCapture(ctx, token, reference, amount, idempotencyKey)
		if err != nil {
			return err
		}
		if status == http.StatusUnauthorized {
			if retried {
				return ErrUpstreamAuth
			}
			c.tokens.Invalidate()
			retried = true
			continue
		}
		return nil
	}
}

func (c *RealClient) doCapture(ctx context.Context, token, reference string, amount Amount, idempotencyKey string) (int, error) {
	body := map[string]any{
		"modificationAmount": map[string]any{
			"value":    amount.Value,
			"currency": amount.Currency,
		},
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}

	endpoint := fmt.Sprintf("%s/epayment/v1/payments/%s/capture", c.cfg.baseURL(), reference)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.SubscriptionKey)
	req.Header.Set("Merchant-Serial-Number", c.cfg.MerchantSerial)
	req.Header.Set("Idempotency-Key", idempotencyKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("vipps capture: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return resp.StatusCode, nil
	}
	if resp.StatusCode >= 400 {
		var errResp struct {
			Detail string `json:"detail"`
			Title  string `json:"title"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		msg := errResp.Detail
		if msg == "" {
			msg = errResp.Title
		}
		return resp.StatusCode, fmt.Errorf("vipps capture: status %d: %s", resp.StatusCode, msg)
	}
	return resp.StatusCode, nil
}
