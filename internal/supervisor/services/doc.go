// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

// Package services adapts logkeeper's long-running components to
// suture.Service:
//
//   - HTTPServerService runs the admin API and shuts it down gracefully.
//   - SchedulerService drives the cleanup scheduler's Start/Stop loop.
//
// Each wrapper returns ctx.Err() on a clean stop and a wrapped error on
// failure, which suture treats as a restart signal.
package services
