package avatar

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestAcquireTokenMissingSecret(t *testing.T) {
	p := NewHeyGenTokenProvider(HeyGenTokenConfig{APIKey: ""}, nil)
	_, err := p.AcquireToken(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.Kind != AuthMissingSecret {
		t.Fatalf("error = %v, want missing-secret AuthError", err)
	}
}

func TestAcquireTokenSuccess(t *testing.T) {
	var sawKey atomic.Value
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/session_token.create" {
			t.Errorf("path = %q", r.URL.Path)
		}
		sawKey.Store(r.Header.Get("X-Api-Key"))
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["expires_in"] != float64(3600) {
			t.Errorf("expires_in = %v, want 3600", body["expires_in"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"session_token": "tok-123"},
		})
	}))
	defer ts.Close()

	p := NewHeyGenTokenProvider(HeyGenTokenConfig{APIKey: "secret", BaseURL: ts.URL}, nil)
	token, err := p.AcquireToken(context.Background())
	if err != nil {
		t.Fatalf("AcquireToken() error = %v", err)
	}
	if token != "tok-123" {
		t.Fatalf("token = %q, want tok-123", token)
	}
	if sawKey.Load() != "secret" {
		t.Fatalf("X-Api-Key = %v, want secret", sawKey.Load())
	}
}

func TestAcquireTokenNonRetryableRejection(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer ts.Close()

	p := NewHeyGenTokenProvider(HeyGenTokenConfig{APIKey: "bad", BaseURL: ts.URL}, nil)
	_, err := p.AcquireToken(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.Kind != AuthRemoteRejected {
		t.Fatalf("error = %v, want remote-rejected AuthError", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1 (401 must not be retried)", calls.Load())
	}
}

func TestAcquireTokenRetriesRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"session_token": "tok-after-retry"},
		})
	}))
	defer ts.Close()

	p := NewHeyGenTokenProvider(HeyGenTokenConfig{APIKey: "secret", BaseURL: ts.URL}, nil)
	token, err := p.AcquireToken(context.Background())
	if err != nil {
		t.Fatalf("AcquireToken() error = %v", err)
	}
	if token != "tok-after-retry" {
		t.Fatalf("token = %q", token)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3", calls.Load())
	}
}

func TestAcquireTokenMalformedResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{}})
	}))
	defer ts.Close()

	p := NewHeyGenTokenProvider(HeyGenTokenConfig{APIKey: "secret", BaseURL: ts.URL}, nil)
	_, err := p.AcquireToken(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) || authErr.Kind != AuthMalformedResponse {
		t.Fatalf("error = %v, want malformed-response AuthError", err)
	}
}

func TestAcquireTokenCapsErrorDetail(t *testing.T) {
	huge := strings.Repeat("x", 10_000)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, huge, http.StatusBadRequest)
	}))
	defer ts.Close()

	p := NewHeyGenTokenProvider(HeyGenTokenConfig{APIKey: "secret", BaseURL: ts.URL}, nil)
	_, err := p.AcquireToken(context.Background())
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("error = %v, want AuthError", err)
	}
	if len(authErr.Detail) > maxErrorDetailBytes+len("status 400: ") {
		t.Fatalf("detail length = %d, want capped near %d", len(authErr.Detail), maxErrorDetailBytes)
	}
}
