// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"

	"github.com/norsu-alumni/logkeeper/internal/config"
	"github.com/norsu-alumni/logkeeper/internal/logging"
)

// Authentication modes accepted in security.auth_mode.
const (
	AuthModeNone = "none"
	AuthModeJWT  = "jwt"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrNotStaff     = errors.New("staff access required")
)

// Claims are the JWT claims issued by the alumni portal for staff sessions.
type Claims struct {
	UserID   int64  `json:"uid"`
	Username string `json:"username"`
	Staff    bool   `json:"staff"`
	jwt.RegisteredClaims
}

// Actor is the authenticated caller of a request.
type Actor struct {
	ID       int64
	Username string
}

// ContextWithActor attaches the caller to ctx.
func ContextWithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// ActorFromContext returns the caller, if the request was authenticated.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey).(Actor)
	return a, ok
}

// Authenticator gates the admin surface. In jwt mode every request needs
// an HS256 bearer token with the staff claim. In none mode requests pass
// through anonymously.
type Authenticator struct {
	mode   string
	secret []byte
	now    func() time.Time
}

// NewAuthenticator builds the gate from the security config.
func NewAuthenticator(cfg *config.SecurityConfig) (*Authenticator, error) {
	switch cfg.AuthMode {
	case AuthModeNone:
		return &Authenticator{mode: AuthModeNone, now: time.Now}, nil
	case AuthModeJWT:
		if cfg.JWTSecret == "" {
			return nil, fmt.Errorf("JWT_SECRET is required but was empty")
		}
		return &Authenticator{mode: AuthModeJWT, secret: []byte(cfg.JWTSecret), now: time.Now}, nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", cfg.AuthMode)
	}
}

// Mode returns the configured authentication mode.
func (a *Authenticator) Mode() string { return a.mode }

// IssueToken signs a token for the given user. The CLI and tests use it;
// production tokens come from the portal sharing the same secret.
func (a *Authenticator) IssueToken(userID int64, username string, staff bool, ttl time.Duration) (string, error) {
	if a.mode != AuthModeJWT {
		return "", fmt.Errorf("tokens are not used in auth mode %q", a.mode)
	}
	now := a.now()
	claims := &Claims{
		UserID:   userID,
		Username: username,
		Staff:    staff,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken parses and verifies a token, rejecting non-HMAC algorithms.
func (a *Authenticator) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	}, jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// Middleware rejects unauthenticated requests with 401 and non-staff
// tokens with 403. Accepted requests carry the Actor in their context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.mode == AuthModeNone {
			next.ServeHTTP(w, r)
			return
		}

		raw, err := bearerToken(r)
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, err.Error())
			return
		}
		claims, err := a.ValidateToken(raw)
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Msg("Rejected bearer token")
			writeAuthError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		if !claims.Staff {
			writeAuthError(w, http.StatusForbidden, ErrNotStaff.Error())
			return
		}

		ctx := ContextWithActor(r.Context(), Actor{ID: claims.UserID, Username: claims.Username})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, error) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": message})
}
