// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidateServerPort(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Server.Port = 0

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "HTTP_PORT") {
		t.Errorf("expected HTTP_PORT error, got: %v", err)
	}
}

func TestValidateProductionRequiresJWTSecret(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Server.Environment = "production"

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "JWT_SECRET") {
		t.Errorf("expected JWT_SECRET error in production, got: %v", err)
	}

	cfg.Security.JWTSecret = "short"
	err = cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "32 characters") {
		t.Errorf("expected JWT_SECRET length error, got: %v", err)
	}

	cfg.Security.JWTSecret = strings.Repeat("x", 32)
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid production config, got: %v", err)
	}
}

func TestValidateIdleTimeoutBounds(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Security.SessionIdleTimeout = cfg.Security.SessionTimeout + time.Hour

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "SESSION_IDLE_TIMEOUT") {
		t.Errorf("expected idle timeout error, got: %v", err)
	}
}

func TestValidateEncryptionKeyring(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		keys      []string
		activeKey string
		wantErr   string
	}{
		{
			name:      "valid keyring",
			keys:      []string{"k1:material-one", "k2:material-two"},
			activeKey: "k1",
			wantErr:   "",
		},
		{
			name:    "malformed entry",
			keys:    []string{"nomaterial"},
			wantErr: "id:material",
		},
		{
			name:      "duplicate id",
			keys:      []string{"k1:a", "k1:b"},
			activeKey: "k1",
			wantErr:   "duplicate",
		},
		{
			name:    "missing active key",
			keys:    []string{"k1:a"},
			wantErr: "ENCRYPTION_ACTIVE_KEY is required",
		},
		{
			name:      "active key not in ring",
			keys:      []string{"k1:a"},
			activeKey: "k9",
			wantErr:   "not present",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := defaultConfig()
			cfg.Encryption.Keys = tt.keys
			cfg.Encryption.ActiveKey = tt.activeKey

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected valid config, got: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateTasksWorkers(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Tasks.EmailWorkers = 0

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "TASKS_EMAIL_WORKERS") {
		t.Errorf("expected worker count error, got: %v", err)
	}

	cfg.Tasks.EmailWorkers = 0
	cfg.Tasks.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected disabled tasks to skip validation, got: %v", err)
	}
}

func TestValidateBackup(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Backup.Enabled = true
	cfg.Backup.Dir = ""

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "BACKUP_DIR") {
		t.Errorf("expected BACKUP_DIR error, got: %v", err)
	}
}

func TestValidateLogging(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	cfg.Logging.Level = "verbose"

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "LOG_LEVEL") {
		t.Errorf("expected LOG_LEVEL error, got: %v", err)
	}
}
