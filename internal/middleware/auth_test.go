// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/norsu-alumni/logkeeper/internal/config"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newJWTAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	a, err := NewAuthenticator(&config.SecurityConfig{AuthMode: AuthModeJWT, JWTSecret: testSecret})
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}
	return a
}

func TestNewAuthenticator(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     config.SecurityConfig
		wantErr bool
	}{
		{"none", config.SecurityConfig{AuthMode: AuthModeNone}, false},
		{"jwt", config.SecurityConfig{AuthMode: AuthModeJWT, JWTSecret: testSecret}, false},
		{"jwt without secret", config.SecurityConfig{AuthMode: AuthModeJWT}, true},
		{"unknown mode", config.SecurityConfig{AuthMode: "basic"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewAuthenticator(&tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAuthenticatorMiddleware(t *testing.T) {
	t.Parallel()

	a := newJWTAuthenticator(t)
	staff, err := a.IssueToken(7, "registrar", true, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	member, _ := a.IssueToken(8, "alumnus", false, time.Hour)
	expired, _ := a.IssueToken(7, "registrar", true, -time.Minute)
	forged, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{UserID: 7, Staff: true}).
		SignedString([]byte("another-secret-another-secret-xx"))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"staff token", "Bearer " + staff, http.StatusOK},
		{"lowercase scheme", "bearer " + staff, http.StatusOK},
		{"non-staff token", "Bearer " + member, http.StatusForbidden},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong secret", "Bearer " + forged, http.StatusUnauthorized},
		{"missing header", "", http.StatusUnauthorized},
		{"basic scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var actor Actor
			var gotActor bool
			handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				actor, gotActor = ActorFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodPost, "/logs/manual-cleanup", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if tt.want == http.StatusOK {
				if !gotActor || actor.ID != 7 || actor.Username != "registrar" {
					t.Errorf("actor = %+v (present %v)", actor, gotActor)
				}
				return
			}
			if !strings.Contains(rec.Body.String(), `"success":false`) {
				t.Errorf("body = %s, want JSON error envelope", rec.Body.String())
			}
		})
	}
}

func TestAuthenticatorMiddleware_NoneMode(t *testing.T) {
	t.Parallel()

	a, err := NewAuthenticator(&config.SecurityConfig{AuthMode: AuthModeNone})
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}
	var gotActor bool
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, gotActor = ActorFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/logs/settings", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if gotActor {
		t.Error("none mode should not attach an actor")
	}
	if _, err := a.IssueToken(1, "x", true, time.Hour); err == nil {
		t.Error("IssueToken should fail in none mode")
	}
}

func TestValidateToken_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	a := newJWTAuthenticator(t)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{UserID: 1, Staff: true}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := a.ValidateToken(unsigned); err == nil {
		t.Error("expected alg=none token to be rejected")
	}
}
