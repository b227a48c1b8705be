package vipps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// refreshMargin is how long before expiry a cached token is refreshed.
const refreshMargin = 60 * time.Second

// TokenProvider obtains bearer tokens from the provider's
// client-credentials endpoint and caches them in-process until shortly
// before expiry. It never writes tokens anywhere but its own memory.
type TokenProvider struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewTokenProvider returns a TokenProvider using httpClient for the
// exchange call.
func NewTokenProvider(cfg Config, httpClient *http.Client) *TokenProvider {
	return &TokenProvider{cfg: cfg, httpClient: httpClient, now: time.Now}
}

// Token returns a valid bearer token, reusing the cached one while it has
// more than refreshMargin of lifetime left.
func (p *TokenProvider) Token(ctx context.Context) (string, error) {
	if p.cfg.ClientID == "" || p.cfg.ClientSecret == "" {
		return "", ErrNotConfigured
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token != "" && p.now().Before(p.expiresAt.Add(-refreshMargin)) {
		return p.token, nil
	}

	token, ttl, err := p.fetch(ctx)
	if err != nil {
		return "", err
	}
	p.token = token
	p.expiresAt = p.now().Add(ttl)
	return token, nil
}

// Invalidate drops the cached token so the next Token call fetches a
// fresh one.
func (p *TokenProvider) Invalidate() {
	p.mu.Lock()
	p.token = ""
	p.expiresAt = time.Time{}
	p.mu.Unlock()
}

func (p *TokenProvider) fetch(ctx context.Context) (string, time.Duration, error) {
	endpoint := p.cfg.baseURL() + "/accesstoken/get"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("client_id", p.cfg.ClientID)
	req.Header.Set("client_secret", p.cfg.ClientSecret)
	req.Header.Set("Ocp-Apim-Subscription-Key", p.cfg.SubscriptionKey)
	req.Header.Set("Merchant-Serial-Number", p.cfg.MerchantSerial)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("vipps token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", 0, ErrUpstreamAuth
	}
	if resp.StatusCode >= 400 {
		return "", 0, fmt.Errorf("vipps token: status %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string      `json:"access_token"`
		ExpiresIn   json.Number `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", 0, fmt.Errorf("vipps token: decode: %w", err)
	}
	if body.AccessToken == "" {
		return "", 0, fmt.Errorf("vipps token: empty access_token in response")
	}

	ttl := 15 * time.Minute
	if secs, err := body.ExpiresIn.Int64(); err == nil && secs > 0 {
		ttl = time.Duration(secs) * time.Second
	}
	return body.AccessToken, ttl, nil
}
