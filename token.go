package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	tokenKey = "access_token"

	// Baidu tokens last 30 days.  We give up on them an hour early, and refresh a minute before that.
	defaultTokenLifetime = 30 * 24 * time.Hour
	tokenSafetyMargin    = time.Hour
	tokenRefreshEarly    = time.Minute
)

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// TokenManager fetches OAuth client credentials tokens and caches them until shortly before they expire.
type TokenManager struct {
	client     *http.Client
	url        string
	apiKey     string
	secretKey  string
	maxRetries int
	retryDelay time.Duration

	mu    sync.Mutex
	cache *cache.Cache
}

func NewTokenManager(client *http.Client, cfg APIConfig) *TokenManager {
	return &TokenManager{
		client:     client,
		url:        cfg.TokenURL,
		apiKey:     cfg.APIKey,
		secretKey:  cfg.SecretKey,
		maxRetries: cfg.MaxRetries,
		retryDelay: time.Duration(cfg.RetryDelay) * time.Second,
		cache:      cache.New(cache.NoExpiration, 10*time.Minute),
	}
}

func (m *TokenManager) Get(ctx context.Context) (string, error) {
	if token, found := m.cache.Get(tokenKey); found {
		return token.(string), nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Another worker may have refreshed while we waited.
	if token, found := m.cache.Get(tokenKey); found {
		return token.(string), nil
	}

	return m.refresh(ctx)
}

// Invalidate drops the cached token, e.g. after the API rejects it.
func (m *TokenManager) Invalidate() {
	m.cache.Delete(tokenKey)
}

func (m *TokenManager) refresh(ctx context.Context) (string, error) {
	if m.apiKey == "" || m.secretKey == "" {
		return "", ErrMissingCredentials
	}

	var lastErr error

	for attempt := 0; attempt < m.maxRetries; attempt++ {
		token, ttl, err := m.fetch(ctx)

		if err == nil {
			m.cache.Set(tokenKey, token, ttl)
			sugar.Infof("Got access token, valid for %v", ttl)
			return token, nil
		}

		lastErr = err
		sugar.Warnf("Failed to get access token (attempt %d/%d): %v", attempt+1, m.maxRetries, err)

		if attempt < m.maxRetries-1 {
			if err := sleepContext(ctx, m.retryDelay*time.Duration(attempt+1)); err != nil {
				return "", err
			}
		}
	}

	return "", fmt.Errorf("%w: %v", ErrTokenUnavailable, lastErr)
}

func (m *TokenManager) fetch(ctx context.Context) (string, time.Duration, error) {
	params := url.Values{}
	params.Set("grant_type", "client_credentials")
	params.Set("client_id", m.apiKey)
	params.Set("client_secret", m.secretKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url+"?"+params.Encode(), nil)
	if err != nil {
		return "", 0, err
	}

	res, err := m.client.Do(req)
	if err != nil {
		return "", 0, err
	}

	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", 0, err
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", 0, fmt.Errorf("status %d: %s", res.StatusCode, body)
	}

	if res.StatusCode != http.StatusOK || tr.AccessToken == "" {
		return "", 0, fmt.Errorf("status %d: %s %s", res.StatusCode, tr.Error, tr.ErrorDescription)
	}

	lifetime := defaultTokenLifetime
	if tr.ExpiresIn > 0 {
		lifetime = time.Duration(tr.ExpiresIn) * time.Second
	}

	ttl := lifetime - tokenSafetyMargin - tokenRefreshEarly
	if ttl <= 0 {
		// Odd, but use it for this run anyway.
		ttl = lifetime / 2
	}

	return tr.AccessToken, ttl, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
