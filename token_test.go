package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenServer(t *testing.T, response string, status int) (*httptest.Server, *int32) {
	t.Helper()

	var calls int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)

		assert.Equal(t, "client_credentials", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "key", r.URL.Query().Get("client_id"))
		assert.Equal(t, "secret", r.URL.Query().Get("client_secret"))

		w.WriteHeader(status)
		_, _ = w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)

	return srv, &calls
}

func testAPIConfig(url string) APIConfig {
	return APIConfig{
		APIKey:     "key",
		SecretKey:  "secret",
		Timeout:    5,
		MaxRetries: 3,
		TokenURL:   url,
	}
}

func TestTokenCached(t *testing.T) {
	srv, calls := tokenServer(t, `{"access_token": "tok", "expires_in": 2592000}`, http.StatusOK)
	m := NewTokenManager(srv.Client(), testAPIConfig(srv.URL))

	token, err := m.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	token, err = m.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", token)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))

	m.Invalidate()

	_, err = m.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestTokenExpiry(t *testing.T) {
	srv, _ := tokenServer(t, `{"access_token": "tok", "expires_in": 2592000}`, http.StatusOK)
	m := NewTokenManager(srv.Client(), testAPIConfig(srv.URL))

	_, err := m.Get(context.Background())
	require.NoError(t, err)

	_, expires, found := m.cache.GetWithExpiration(tokenKey)
	require.True(t, found)

	want := time.Now().Add(30*24*time.Hour - time.Hour - time.Minute)
	assert.WithinDuration(t, want, expires, time.Minute)
}

func TestTokenFailure(t *testing.T) {
	srv, calls := tokenServer(t, `{"error": "invalid_client", "error_description": "unknown client id"}`,
		http.StatusUnauthorized)
	m := NewTokenManager(srv.Client(), testAPIConfig(srv.URL))

	_, err := m.Get(context.Background())
	assert.ErrorIs(t, err, ErrTokenUnavailable)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestTokenMissingCredentials(t *testing.T) {
	srv, calls := tokenServer(t, `{}`, http.StatusOK)

	cfg := testAPIConfig(srv.URL)
	cfg.SecretKey = ""
	m := NewTokenManager(srv.Client(), cfg)

	_, err := m.Get(context.Background())
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}
