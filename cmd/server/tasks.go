// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package main

import (
	"fmt"

	"github.com/tomtom215/custodia/internal/audit"
	"github.com/tomtom215/custodia/internal/auth"
	"github.com/tomtom215/custodia/internal/config"
	"github.com/tomtom215/custodia/internal/database"
	"github.com/tomtom215/custodia/internal/forensics"
	"github.com/tomtom215/custodia/internal/ratelimit"
	"github.com/tomtom215/custodia/internal/tasks"
)

// initTasks builds the task pipeline and binds a handler to every
// queue:
//
//	critical      ticket escalations (mux, room for more types)
//	high_priority urgent email bypassing the email queue backlog
//	email         rendered mail via the configured sender
//	reports       CSV materialization for report jobs
//	external_api  webhook deliveries behind the limiter and breaker
//	maintenance   the housekeeping sweeper
func initTasks(
	cfg *config.Config,
	db *database.DB,
	sessions *auth.SessionManager,
	blocks *ratelimit.BlockStore,
	auditor *audit.Logger,
	recorder *forensics.Recorder,
) (*tasks.Pipeline, error) {
	pipeline, err := tasks.NewPipeline(cfg.Tasks)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (*tasks.Pipeline, error) {
		pipeline.Close() //nolint:errcheck
		return nil, err
	}

	emailHandler := tasks.NewEmailHandler(tasks.LogSender{})

	criticalMux := tasks.NewMux()
	if err := criticalMux.Register(tasks.TaskTicketEscalation,
		tasks.NewTicketEscalationHandler(pipeline.Publisher(), cfg.Tasks.EscalationRecipients)); err != nil {
		return fail(err)
	}

	highMux := tasks.NewMux()
	if err := highMux.Register(tasks.TaskEmailGeneric, emailHandler); err != nil {
		return fail(err)
	}

	externalMux := tasks.NewMux()
	if err := externalMux.Register(tasks.TaskWebhookDeliver, tasks.NewWebhookHandler(nil)); err != nil {
		return fail(err)
	}

	sweeper := tasks.NewSweeper(tasks.DefaultSweeperConfig(),
		sessions, blocks, auditor, recorder, db, pipeline.PoisonLog())

	worker := tasks.NewReportWorker(db, cfg.Reports.Dir)

	registrations := map[string]tasks.TaskHandler{
		tasks.QueueCritical:     criticalMux.Handle,
		tasks.QueueHighPriority: highMux.Handle,
		tasks.QueueEmail:        emailHandler,
		tasks.QueueReports:      tasks.NewReportHandler(worker),
		tasks.QueueExternalAPI:  tasks.WrapExternal(pipeline.ExternalCaller(), externalMux.Handle),
		tasks.QueueMaintenance:  sweeper.Handler(),
	}
	for queue, handler := range registrations {
		if err := pipeline.Handle(queue, handler); err != nil {
			return fail(fmt.Errorf("bind %s queue: %w", queue, err))
		}
	}

	return pipeline, nil
}
