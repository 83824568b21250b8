// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

/*
Command server runs the Logkeeper admin API and the background cleanup
scheduler for the NORSU alumni system.

# Process Layout

	RootSupervisor ("logkeeper")
	├── DataSupervisor ("data-layer")
	│   └── SchedulerService (when SCHEDULER_ENABLED=true)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Startup order:

 1. Configuration: Koanf v2 (defaults, config.yaml, environment)
 2. Logging: zerolog, JSON or console
 3. Stores: DuckDB for audit records and operation history, BadgerDB for
    admin settings
 4. Audit interceptor, exporter, notifier, storage governor
 5. Retention engine and cleanup scheduler
 6. Chi router with JWT staff authentication

# Configuration

	HTTP_PORT=8089               # Admin API port
	HTTP_BASE_PATH=/logs         # Mount point of the admin routes
	DUCKDB_PATH=data/logkeeper.duckdb
	SETTINGS_DIR=data/settings
	LOG_DIR=logs                 # Directory of alumni_system.log and errors.log
	ARCHIVE_ROOT=media/logs/archives
	AUTH_MODE=jwt                # jwt or none
	JWT_SECRET=<32+ chars>
	SCHEDULER_INTERVAL=1h
	SCHEDULER_TIMEZONE=Asia/Manila
	EMAIL_ENABLED=false
	ADMIN_EMAILS=registrar@norsu.edu.ph

# Signal Handling

SIGINT and SIGTERM cancel the supervisor tree. The HTTP server drains
in-flight requests for HTTP_SHUTDOWN_TIMEOUT, the scheduler finishes its
current check, and DuckDB is checkpointed before exit.
*/
package main
