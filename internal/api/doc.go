// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

/*
Package api serves the staff-only admin surface of the log subsystem over
chi.

Routes, relative to the configured base path (default /logs):

	GET  /audit/                  audit listing with facets and pagination
	GET  /audit/{id}              one audit record
	GET  /audit/export            audit CSV download
	GET  /file/                   parsed entries of one log file
	GET  /export                  log entries CSV download
	GET  /settings                policies, schedule, storage, next run
	GET  /cleanup-plan            dry run of the next cleanup
	GET  /operations/             cleanup history
	GET  /operations/{id}         one cleanup run
	GET  /operations/export       cleanup history CSV download
	POST /manual-cleanup          run a cleanup now (409 while one runs)
	POST /save-retention-policy   update one retention policy
	POST /save-cleanup-schedule   update the cleanup schedule
	POST /save-storage-config     update the archive storage limits
	POST /recalculate-storage     re-measure the archive directory
	POST /clear                   rotate a log file aside

JSON responses share the APIResponse envelope; failures always carry
success false and a message. /health and /metrics are served at the root
without authentication.
*/
package api
