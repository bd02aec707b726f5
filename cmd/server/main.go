// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Package main is the entry point for the Custodia server.
//
// Custodia is a self-hosted multi-tenant facility management platform:
// workforce records, attendance, helpdesk tickets, shift journals, and
// async CSV reporting behind a JSON API at /api/v2.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: layered env/file/defaults via Koanf v2
//  2. Field encryption: versioned keyring (optional)
//  3. DuckDB: relational store for all tenant data
//  4. Badger: sessions, CSRF tokens, lockouts, IP blocks
//  5. Audit + session forensics: persistent security trails
//  6. Auth: bcrypt login, JWT pairs, lockouts, CSRF, monitoring keys
//  7. Task pipeline: six work queues over embedded NATS JetStream
//  8. Backup manager: scheduled tar.gz archives with retention
//  9. HTTP server: Chi router under a suture supervision tree
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: the supervisor tree
// stops accepting connections, drains in-flight requests within the
// shutdown timeout, then the task pipeline and stores close in reverse
// initialization order.
//
// # Key Rotation
//
// Run with -rotate-keys to re-encrypt stored field ciphertexts under
// the active key and exit. The server does not start in this mode.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/custodia/internal/api"
	"github.com/tomtom215/custodia/internal/audit"
	"github.com/tomtom215/custodia/internal/auth"
	"github.com/tomtom215/custodia/internal/authz"
	"github.com/tomtom215/custodia/internal/backup"
	"github.com/tomtom215/custodia/internal/config"
	"github.com/tomtom215/custodia/internal/database"
	"github.com/tomtom215/custodia/internal/encryption"
	"github.com/tomtom215/custodia/internal/forensics"
	"github.com/tomtom215/custodia/internal/kv"
	"github.com/tomtom215/custodia/internal/logging"
	"github.com/tomtom215/custodia/internal/ratelimit"
	"github.com/tomtom215/custodia/internal/supervisor"
	"github.com/tomtom215/custodia/internal/supervisor/services"
	"github.com/tomtom215/custodia/internal/tasks"
	ws "github.com/tomtom215/custodia/internal/websocket"
)

//nolint:gocyclo // Main initialization function with sequential setup steps
func main() {
	rotateKeys := flag.Bool("rotate-keys", false, "re-encrypt stored fields under the active key and exit")
	flag.Parse()

	cfg, err := config.LoadWithKoanf()
	if err != nil {
		// Config is not available yet; the default logger reports this.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("db_path", cfg.Database.Path).
		Str("default_tenant", cfg.Tenancy.DefaultTenant).
		Msg("Starting Custodia")

	// Field encryption is optional; without a keyring the database
	// stores fields in the clear and rotation refuses to run.
	var crypto *encryption.Service
	if len(cfg.Encryption.Keys) > 0 {
		crypto, err = encryption.NewService(encryption.Config{
			Keys:             cfg.Encryption.Keys,
			ActiveKey:        cfg.Encryption.ActiveKey,
			PBKDF2Iterations: cfg.Encryption.PBKDF2Iterations,
			FIPSMode:         cfg.Encryption.FIPSMode,
		})
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to build encryption keyring")
		}
		logging.Info().Str("active_key", cfg.Encryption.ActiveKey).Msg("Field encryption enabled")
	}

	db, err := database.New(&cfg.Database, crypto)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing database")
		}
	}()
	logging.Info().Msg("Database initialized")

	if *rotateKeys {
		os.Exit(runKeyRotation(db))
	}

	kvDB, err := kv.Open(&cfg.KV)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open key-value store")
	}
	defer func() {
		if err := kvDB.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing key-value store")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Persistent audit trail in DuckDB.
	auditStore := audit.NewDuckDBStore(db.Conn())
	if err := auditStore.CreateTable(ctx); err != nil {
		logging.Fatal().Err(err).Msg("Failed to create audit events table")
	}
	auditor := audit.NewLogger(auditStore, audit.DefaultConfig())
	defer func() {
		if err := auditor.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing audit logger")
		}
	}()
	auditor.StartCleanupRoutine(ctx)

	recorder := forensics.NewRecorder(db, forensics.DefaultConfig())
	defer recorder.Close()

	if err := bootstrapTenant(ctx, cfg, db); err != nil {
		logging.Fatal().Err(err).Msg("Failed to bootstrap tenant and admin user")
	}

	// Authentication stack: sessions, tokens, lockouts, CSRF, and the
	// cust_mon_* monitoring keys, all over Badger and DuckDB.
	sessions := auth.NewSessionManager(auth.NewBadgerSessionStore(kvDB),
		cfg.Security.SessionIdleTimeout, cfg.Security.SessionTimeout)
	tokens, err := auth.NewTokenManager(cfg.Security.JWTSecret,
		cfg.Security.AccessTokenTTL, cfg.Security.RefreshTokenTTL)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize token manager")
	}
	lockouts := auth.NewLockoutManager(auth.NewBadgerLockoutStore(kvDB), auditor, auth.LockoutConfig{
		MaxAttempts:        cfg.Security.LockoutMaxAttempts,
		LockoutDuration:    cfg.Security.LockoutDuration,
		MaxLockoutDuration: cfg.Security.LockoutMaxDuration,
	})
	csrfStore := auth.NewCSRFStore(kvDB, cfg.Security.CSRFTokenTTL)
	authService := auth.NewService(db, sessions, tokens, lockouts, csrfStore, auditor, recorder)
	keyManager := auth.NewKeyManager(db)
	csrfMw := auth.NewCSRFMiddleware(csrfStore, nil)

	blockStore := ratelimit.NewBlockStore(kvDB)
	blocker := ratelimit.NewBlocker(blockStore, auditor, recorder, ratelimit.BlockerConfig{
		Threshold:    cfg.Security.BlockThreshold,
		Window:       cfg.Security.RateLimitWindow,
		BaseDuration: cfg.Security.BlockBaseDuration,
		MaxDuration:  cfg.Security.BlockMaxDuration,
		Disabled:     cfg.Security.RateLimitDisabled,
	})

	enforcer, err := authz.NewEnforcer(nil)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authorization enforcer")
	}
	authzMw := authz.NewMiddleware(enforcer, auditor)

	hub := ws.NewHub()

	slogLogger := logging.NewSlogLogger()
	tree, err := supervisor.NewTree(slogLogger, supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	deps := api.Deps{
		Config:    cfg,
		DB:        db,
		Auth:      authService,
		Keys:      keyManager,
		CSRF:      csrfMw,
		Blocker:   blocker,
		Auditor:   auditor,
		Forensics: recorder,
		Hub:       hub,
	}

	var pipeline *tasks.Pipeline
	if cfg.Tasks.Enabled {
		pipeline, err = initTasks(cfg, db, sessions, blockStore, auditor, recorder)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize task pipeline")
		}
		defer func() {
			if err := pipeline.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing task pipeline")
			}
		}()

		deps.Publisher = pipeline.Publisher()
		deps.Poison = pipeline.PoisonLog()
		deps.Pipeline = pipeline

		tree.AddMessagingService(pipeline)
		tree.AddStorageService(tasks.NewScheduler(pipeline.Publisher(), cfg.Tasks.MaintenanceInterval))
		logging.Info().Msg("Task pipeline added to supervisor tree")
	} else {
		logging.Info().Msg("Task pipeline disabled (TASKS_ENABLED=false)")
	}

	if cfg.Backup.Enabled {
		backups, err := backup.NewManager(&cfg.Backup, db, kvDB, auditor, cfg.Reports.Dir)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize backup manager")
		}
		deps.Backups = backups
		tree.AddStorageService(backup.NewScheduler(backups))
		logging.Info().
			Dur("interval", cfg.Backup.Interval).
			Str("dir", cfg.Backup.Dir).
			Msg("Backup scheduler added to supervisor tree")
	} else {
		logging.Info().Msg("Backup functionality disabled (BACKUP_ENABLED=false)")
	}

	tree.AddMessagingService(hub)

	router := api.NewRouter(deps, authzMw)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}

// runKeyRotation re-encrypts every stored ciphertext under the active
// key and reports the outcome. Exit code 0 only on a clean pass.
func runKeyRotation(db *database.DB) int {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	result, err := db.RotateEncryptedFields(ctx, 500)
	if err != nil {
		logging.Error().Err(err).Msg("Key rotation failed")
		return 1
	}
	logging.Info().
		Int64("scanned", result.Scanned).
		Int64("rotated", result.Rotated).
		Str("active_key", result.ActiveKey).
		Str("duration", result.Duration).
		Msg("Key rotation completed")
	return 0
}
