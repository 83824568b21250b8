// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// =====================================================
// ChiMiddleware Configuration Tests
// =====================================================

func TestNewChiMiddleware_DefaultConfig(t *testing.T) {
	m := NewChiMiddleware(nil)

	if m == nil || m.config == nil {
		t.Fatal("NewChiMiddleware returned no config")
	}
	// Default should be empty (requires explicit configuration)
	if len(m.config.CORSAllowedOrigins) != 0 {
		t.Errorf("CORSAllowedOrigins = %v, want []", m.config.CORSAllowedOrigins)
	}
	if m.config.RateLimitRequests != 30 || m.config.RateLimitWindow != time.Minute {
		t.Errorf("rate limit = %d/%s, want 30/1m", m.config.RateLimitRequests, m.config.RateLimitWindow)
	}
	exposed := false
	for _, h := range m.config.CORSExposedHeaders {
		if h == "Content-Disposition" {
			exposed = true
		}
	}
	if !exposed {
		t.Error("Content-Disposition should be exposed for CSV downloads")
	}
}

func TestNewChiMiddlewareFromSecurity(t *testing.T) {
	tests := []struct {
		name         string
		reqs         int
		window       time.Duration
		wantDisabled bool
	}{
		{"enabled", 10, time.Minute, false},
		{"zero requests", 0, time.Minute, true},
		{"negative requests", -1, time.Minute, true},
		{"zero window", 10, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewChiMiddlewareFromSecurity([]string{"https://alumni.norsu.edu.ph"}, tt.reqs, tt.window)
			if m.config.RateLimitDisabled != tt.wantDisabled {
				t.Errorf("RateLimitDisabled = %v, want %v", m.config.RateLimitDisabled, tt.wantDisabled)
			}
			if m.config.CORSAllowedOrigins[0] != "https://alumni.norsu.edu.ph" {
				t.Errorf("CORSAllowedOrigins = %v", m.config.CORSAllowedOrigins)
			}
		})
	}
}

// =====================================================
// CORS Tests
// =====================================================

func TestChiMiddleware_CORS_SpecificOrigin(t *testing.T) {
	m := NewChiMiddlewareFromSecurity([]string{"https://allowed.com"}, 0, 0)

	handlerCalled := false
	handler := m.CORS()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://allowed.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if !handlerCalled {
		t.Error("Handler should be called")
	}
	// go-chi/cors reflects the specific origin
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://allowed.com" {
		t.Errorf("Access-Control-Allow-Origin = %q, want https://allowed.com", got)
	}
	if w.Header().Get("Vary") == "" {
		t.Error("Vary header should be set for specific origins")
	}
}

func TestChiMiddleware_CORS_DisallowedOrigin(t *testing.T) {
	m := NewChiMiddlewareFromSecurity([]string{"https://allowed.com"}, 0, 0)

	handler := m.CORS()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "https://evil.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
	}
}

func TestChiMiddleware_CORS_PreflightRequest(t *testing.T) {
	m := NewChiMiddlewareFromSecurity([]string{"*"}, 0, 0)

	handlerCalled := false
	handler := m.CORS()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("OPTIONS", "/", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	// Preflight should return 200 or 204 without calling handler
	if w.Code != http.StatusOK && w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 200 or 204", w.Code)
	}
	if handlerCalled {
		t.Error("Handler should not be called for OPTIONS preflight")
	}
	if w.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("Access-Control-Allow-Methods should be set")
	}
}

// =====================================================
// Rate Limit Tests
// =====================================================

func TestChiMiddleware_RateLimit_Disabled(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{
		RateLimitDisabled: true,
		RateLimitRequests: 3,
		RateLimitWindow:   time.Second,
	})

	callCount := 0
	handler := m.RateLimit()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 10; i++ {
		req := httptest.NewRequest("POST", "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	if callCount != 10 {
		t.Errorf("callCount = %d, want 10", callCount)
	}
}

func TestChiMiddleware_RateLimit_Enabled(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{
		RateLimitRequests: 3,
		RateLimitWindow:   time.Minute, // long window for test stability
	})

	handler := m.RateLimit()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	successCount, limitedCount := 0, 0
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("POST", "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		switch w.Code {
		case http.StatusOK:
			successCount++
		case http.StatusTooManyRequests:
			limitedCount++
		}
	}
	if successCount != 3 || limitedCount != 2 {
		t.Errorf("success = %d, limited = %d, want 3 and 2", successCount, limitedCount)
	}
}

func TestChiMiddleware_RateLimit_DifferentIPs(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{
		RateLimitRequests: 2,
		RateLimitWindow:   time.Minute,
	})

	handler := m.RateLimit()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// Different IPs have separate budgets
	for _, ip := range []string{"192.168.1.1:12345", "192.168.1.2:12345", "192.168.1.3:12345"} {
		for i := 0; i < 2; i++ {
			req := httptest.NewRequest("POST", "/", nil)
			req.RemoteAddr = ip
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != http.StatusOK {
				t.Errorf("IP %s request %d: status = %d, want %d", ip, i, w.Code, http.StatusOK)
			}
		}
	}
}

func TestChiMiddleware_RateLimit_CustomLimitHandler(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{
		RateLimitRequests: 1,
		RateLimitWindow:   time.Minute,
		RateLimitOnLimit:  rateLimited,
	})

	handler := m.RateLimit()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var last *httptest.ResponseRecorder
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("POST", "/", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", last.Code)
	}
	if ct := last.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want JSON envelope", ct)
	}
}
