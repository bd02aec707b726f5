// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

/*
Package supervisor provides process supervision for Custodia using suture v4.

Long-running services are organized into three layers for failure
isolation:

	RootSupervisor ("custodia")
	├── StorageSupervisor ("storage-layer")
	│   ├── backup.Scheduler
	│   └── tasks.Scheduler (maintenance ticker)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── tasks.Pipeline (broker, queues, workers)
	│   └── websocket.Hub
	└── APISupervisor ("api-layer")
	    └── services.HTTPServerService

A crash in the task pipeline restarts that pipeline without dropping
WebSocket connections or HTTP availability; a wedged backup run cannot
take the API down with it. Each layer carries independent failure
counting with exponential backoff, and context cancellation walks the
tree for graceful shutdown.

Supervisor events (start, stop, failure, backoff) are logged through
the sutureslog adapter bridged onto the application's zerolog logger
via logging.NewSlogLogger.
*/
package supervisor
