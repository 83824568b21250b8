// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

/*
Package supervisor runs logkeeper's long-lived services under a suture v4
tree.

	RootSupervisor ("logkeeper")
	├── DataSupervisor ("data-layer")
	│   └── SchedulerService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Crashed services are restarted with suture's backoff. Supervisor events
are logged through sutureslog into the zerolog-backed slog bridge from
internal/logging.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfigFrom(&cfg.Supervisor))
	if err != nil {
		return err
	}
	tree.AddDataService(services.NewSchedulerService(scheduler))
	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	return tree.Serve(ctx)

The wrappers live in the services subpackage.
*/
package supervisor
