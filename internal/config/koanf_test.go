// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValues(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()

	if cfg.Server.Port != 8443 {
		t.Errorf("expected default port 8443, got %d", cfg.Server.Port)
	}
	if cfg.Security.RateLimitReqs != 100 {
		t.Errorf("expected default rate limit 100, got %d", cfg.Security.RateLimitReqs)
	}
	if cfg.Security.RateLimitWindow != time.Minute {
		t.Errorf("expected default rate limit window 1m, got %s", cfg.Security.RateLimitWindow)
	}
	if cfg.Security.LockoutMaxAttempts != 5 {
		t.Errorf("expected default lockout attempts 5, got %d", cfg.Security.LockoutMaxAttempts)
	}
	if cfg.Security.SessionIdleTimeout != 30*time.Minute {
		t.Errorf("expected default idle timeout 30m, got %s", cfg.Security.SessionIdleTimeout)
	}
	if cfg.Tenancy.Header != "X-Custodia-Tenant" {
		t.Errorf("expected default tenant header, got %q", cfg.Tenancy.Header)
	}
	if cfg.Tasks.PoisonQueueTopic != "tasks.poison" {
		t.Errorf("expected default poison topic, got %q", cfg.Tasks.PoisonQueueTopic)
	}
	if cfg.Encryption.PBKDF2Iterations != 600000 {
		t.Errorf("expected default PBKDF2 iterations 600000, got %d", cfg.Encryption.PBKDF2Iterations)
	}
}

func TestDefaultConfigValidates(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to validate, got: %v", err)
	}
}

func TestLoadWithKoanfEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("RATE_LIMIT_REQUESTS", "42")
	t.Setenv("RATE_LIMIT_WINDOW", "2m")
	t.Setenv("SESSION_TIMEOUT", "12h")
	t.Setenv("SESSION_IDLE_TIMEOUT", "20m")
	t.Setenv("CSRF_TOKEN_TTL", "1h")
	t.Setenv("FIPS_MODE", "true")
	t.Setenv("ENCRYPTION_KEYS", "k1:0123456789abcdef0123456789abcdef,k2:fedcba9876543210fedcba9876543210")
	t.Setenv("ENCRYPTION_ACTIVE_KEY", "k2")
	t.Setenv("CONFIG_PATH", "/nonexistent/config.yaml")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf failed: %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Security.RateLimitReqs != 42 {
		t.Errorf("expected rate limit 42, got %d", cfg.Security.RateLimitReqs)
	}
	if cfg.Security.RateLimitWindow != 2*time.Minute {
		t.Errorf("expected window 2m, got %s", cfg.Security.RateLimitWindow)
	}
	if cfg.Security.SessionTimeout != 12*time.Hour {
		t.Errorf("expected session timeout 12h, got %s", cfg.Security.SessionTimeout)
	}
	if cfg.Security.SessionIdleTimeout != 20*time.Minute {
		t.Errorf("expected idle timeout 20m, got %s", cfg.Security.SessionIdleTimeout)
	}
	if cfg.Security.CSRFTokenTTL != time.Hour {
		t.Errorf("expected CSRF TTL 1h, got %s", cfg.Security.CSRFTokenTTL)
	}
	if !cfg.Encryption.FIPSMode {
		t.Error("expected FIPS mode enabled")
	}
	if len(cfg.Encryption.Keys) != 2 {
		t.Fatalf("expected 2 encryption keys, got %d", len(cfg.Encryption.Keys))
	}
	if cfg.Encryption.ActiveKey != "k2" {
		t.Errorf("expected active key k2, got %q", cfg.Encryption.ActiveKey)
	}
}

func TestLoadWithKoanfConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte(`
server:
  port: 8081
security:
  rate_limit_reqs: 7
tenancy:
  default_tenant: acme
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("CONFIG_PATH", path)

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf failed: %v", err)
	}

	if cfg.Server.Port != 8081 {
		t.Errorf("expected port 8081 from file, got %d", cfg.Server.Port)
	}
	if cfg.Security.RateLimitReqs != 7 {
		t.Errorf("expected rate limit 7 from file, got %d", cfg.Security.RateLimitReqs)
	}
	if cfg.Tenancy.DefaultTenant != "acme" {
		t.Errorf("expected default tenant acme, got %q", cfg.Tenancy.DefaultTenant)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env      string
		expected string
	}{
		{"HTTP_PORT", "server.port"},
		{"RATE_LIMIT_REQUESTS", "security.rate_limit_reqs"},
		{"SESSION_IDLE_TIMEOUT", "security.session_idle_timeout"},
		{"ENCRYPTION_ACTIVE_KEY", "encryption.active_key"},
		{"FIPS_MODE", "encryption.fips_mode"},
		{"NATS_URL", "tasks.url"},
		{"BACKUP_RETENTION_COUNT", "backup.retention_count"},
		{"RANDOM_UNRELATED_VAR", ""},
		{"PATH", ""},
	}

	for _, tt := range tests {
		result := envTransformFunc(tt.env)
		if result != tt.expected {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, result, tt.expected)
		}
	}
}
