// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

/*
Package middleware provides the HTTP middleware of the admin log surface.

Key Components:

  - RequestID: UUID request IDs, propagated into the logging context
  - PrometheusMetrics: request count and latency per chi route pattern
  - Authenticator: shared-secret JWT gate that admits staff only
  - AuditContext: stamps actor, client IP, user agent and path onto the
    context so audit records written during the request carry them

Middleware Stack:

The router applies them in this order:

	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics)
	r.Use(auth.Middleware)
	r.Use(middleware.AuditContext)

AuditContext must run after the Authenticator so the actor is known.

See Also:

  - internal/api: handlers wrapped by this middleware
  - internal/interceptor: consumer of the request metadata
  - internal/metrics: Prometheus metric definitions
*/
package middleware
