// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package config

import (
	"fmt"
	"strings"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateSecurity(); err != nil {
		return err
	}

	if err := c.validateEncryption(); err != nil {
		return err
	}

	if err := c.validateTasks(); err != nil {
		return err
	}

	if err := c.validateBackup(); err != nil {
		return err
	}

	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive, got %s", c.Server.Timeout)
	}
	if c.Server.Environment != "development" && c.Server.Environment != "production" {
		return fmt.Errorf("ENVIRONMENT must be 'development' or 'production', got %q", c.Server.Environment)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	s := &c.Security

	if c.IsProduction() {
		if s.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if len(s.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}
		if s.AdminPassword != "" && len(s.AdminPassword) < 12 {
			return fmt.Errorf("ADMIN_PASSWORD must be at least 12 characters in production")
		}
	}

	if s.RateLimitReqs <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be positive, got %d", s.RateLimitReqs)
	}
	if s.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive, got %s", s.RateLimitWindow)
	}
	if s.BlockThreshold <= 0 {
		return fmt.Errorf("BLOCK_THRESHOLD must be positive, got %d", s.BlockThreshold)
	}
	if s.BlockBaseDuration <= 0 || s.BlockMaxDuration < s.BlockBaseDuration {
		return fmt.Errorf("block durations invalid: base %s, max %s", s.BlockBaseDuration, s.BlockMaxDuration)
	}
	if s.LockoutMaxAttempts <= 0 {
		return fmt.Errorf("LOCKOUT_MAX_ATTEMPTS must be positive, got %d", s.LockoutMaxAttempts)
	}
	if s.LockoutDuration <= 0 || s.LockoutMaxDuration < s.LockoutDuration {
		return fmt.Errorf("lockout durations invalid: base %s, max %s", s.LockoutDuration, s.LockoutMaxDuration)
	}
	if s.SessionTimeout <= 0 {
		return fmt.Errorf("SESSION_TIMEOUT must be positive, got %s", s.SessionTimeout)
	}
	if s.SessionIdleTimeout <= 0 || s.SessionIdleTimeout > s.SessionTimeout {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be positive and not exceed SESSION_TIMEOUT, got %s", s.SessionIdleTimeout)
	}
	if s.CSRFTokenTTL <= 0 {
		return fmt.Errorf("CSRF_TOKEN_TTL must be positive, got %s", s.CSRFTokenTTL)
	}

	return nil
}

func (c *Config) validateEncryption() error {
	e := &c.Encryption

	seen := make(map[string]bool, len(e.Keys))
	for _, entry := range e.Keys {
		id, _, ok := strings.Cut(entry, ":")
		if !ok || id == "" {
			return fmt.Errorf("ENCRYPTION_KEYS entries must be 'id:material', got %q", entry)
		}
		if seen[id] {
			return fmt.Errorf("ENCRYPTION_KEYS contains duplicate key id %q", id)
		}
		seen[id] = true
	}

	if len(e.Keys) > 0 {
		if e.ActiveKey == "" {
			return fmt.Errorf("ENCRYPTION_ACTIVE_KEY is required when ENCRYPTION_KEYS is set")
		}
		if !seen[e.ActiveKey] {
			return fmt.Errorf("ENCRYPTION_ACTIVE_KEY %q not present in ENCRYPTION_KEYS", e.ActiveKey)
		}
	}

	if e.PBKDF2Iterations < 100000 {
		return fmt.Errorf("ENCRYPTION_PBKDF2_ITERATIONS must be at least 100000, got %d", e.PBKDF2Iterations)
	}

	return nil
}

func (c *Config) validateTasks() error {
	t := &c.Tasks
	if !t.Enabled {
		return nil
	}

	if t.URL == "" {
		return fmt.Errorf("NATS_URL is required when TASKS_ENABLED=true")
	}
	if t.EmbeddedServer && t.StoreDir == "" {
		return fmt.Errorf("NATS_STORE_DIR is required when NATS_EMBEDDED=true")
	}
	if t.RetryCount < 0 {
		return fmt.Errorf("TASKS_RETRY_COUNT must not be negative, got %d", t.RetryCount)
	}
	for name, workers := range map[string]int{
		"TASKS_CRITICAL_WORKERS":      t.CriticalWorkers,
		"TASKS_HIGH_PRIORITY_WORKERS": t.HighPriorityWorkers,
		"TASKS_EMAIL_WORKERS":         t.EmailWorkers,
		"TASKS_REPORTS_WORKERS":       t.ReportsWorkers,
		"TASKS_EXTERNAL_API_WORKERS":  t.ExternalAPIWorkers,
		"TASKS_MAINTENANCE_WORKERS":   t.MaintenanceWorkers,
	} {
		if workers <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, workers)
		}
	}
	if t.ExternalAPIRate <= 0 {
		return fmt.Errorf("TASKS_EXTERNAL_API_RATE must be positive, got %f", t.ExternalAPIRate)
	}

	return nil
}

func (c *Config) validateBackup() error {
	b := &c.Backup
	if !b.Enabled {
		return nil
	}

	if b.Dir == "" {
		return fmt.Errorf("BACKUP_DIR is required when BACKUP_ENABLED=true")
	}
	if b.Interval <= 0 {
		return fmt.Errorf("BACKUP_INTERVAL must be positive, got %s", b.Interval)
	}
	if b.RetentionCount <= 0 {
		return fmt.Errorf("BACKUP_RETENTION_COUNT must be positive, got %d", b.RetentionCount)
	}

	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace/debug/info/warn/error, got %q", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be 'json' or 'console', got %q", c.Logging.Format)
	}

	return nil
}
