// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/norsu-alumni/logkeeper/internal/interceptor"
)

// AuditContext attaches the request metadata audit records are stamped
// with. Run it after the Authenticator.
func AuditContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := interceptor.RequestInfo{
			IPAddress: ClientIP(r),
			UserAgent: r.UserAgent(),
			Path:      r.URL.Path,
		}
		if actor, ok := ActorFromContext(r.Context()); ok {
			id := actor.ID
			info.ActorKey = &id
			info.ActorName = actor.Username
		}
		next.ServeHTTP(w, r.WithContext(interceptor.WithRequestInfo(r.Context(), info)))
	})
}

// ClientIP returns the first X-Forwarded-For hop when present, otherwise
// the host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
