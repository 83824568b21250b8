// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package interceptor

import "context"

type contextKey int

const (
	requestInfoKey contextKey = iota
	suppressKey
)

// RequestInfo is the ambient request metadata stamped onto audit records.
type RequestInfo struct {
	ActorKey  *int64
	ActorName string
	IPAddress string
	UserAgent string
	Path      string
}

// WithRequestInfo attaches request metadata to ctx.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey, info)
}

// RequestInfoFromContext returns the request metadata attached to ctx, if any.
func RequestInfoFromContext(ctx context.Context) (RequestInfo, bool) {
	if ctx == nil {
		return RequestInfo{}, false
	}
	info, ok := ctx.Value(requestInfoKey).(RequestInfo)
	return info, ok
}

// WithoutAuditing returns a context under which registry events are dropped.
// Bulk imports use it to avoid one audit row per imported entity.
func WithoutAuditing(ctx context.Context) context.Context {
	return context.WithValue(ctx, suppressKey, true)
}

func auditingSuppressed(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(suppressKey).(bool)
	return v
}
