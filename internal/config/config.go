// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Package config provides layered configuration for Custodia.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml) for persistent settings
//  3. Environment Variables: Override any setting via environment variables
//
// Config is immutable after Load() and safe for concurrent read access.
package config

import "time"

// Config holds all application configuration loaded from defaults, an
// optional YAML file, and environment variables.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	KV         KVConfig         `koanf:"kv"`
	API        APIConfig        `koanf:"api"`
	Security   SecurityConfig   `koanf:"security"`
	Encryption EncryptionConfig `koanf:"encryption"`
	Tasks      TasksConfig      `koanf:"tasks"`
	Backup     BackupConfig     `koanf:"backup"`
	Reports    ReportsConfig    `koanf:"reports"`
	Tenancy    TenancyConfig    `koanf:"tenancy"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
//
// Environment Variables:
//   - HTTP_HOST: Listen address (default: 0.0.0.0)
//   - HTTP_PORT: Listen port (default: 8443)
//   - HTTP_TIMEOUT: Read/write timeout (default: 30s)
//   - ENVIRONMENT: development or production; production tightens validation
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	Environment string        `koanf:"environment"`
}

// DatabaseConfig holds DuckDB settings for the relational store.
type DatabaseConfig struct {
	Path                   string `koanf:"path"`       // DuckDB database file path
	MaxMemory              string `koanf:"max_memory"` // e.g. "2GB"
	Threads                int    `koanf:"threads"`    // 0 = runtime.NumCPU()
	PreserveInsertionOrder bool   `koanf:"preserve_insertion_order"`
}

// KVConfig holds the Badger key-value store settings. Sessions, CSRF
// tokens, rate-limit blocks, and lockout state live here.
type KVConfig struct {
	Path     string `koanf:"path"`      // Badger directory root
	InMemory bool   `koanf:"in_memory"` // volatile store, used in tests
}

// APIConfig holds pagination limits for list endpoints.
type APIConfig struct {
	DefaultPageSize int `koanf:"default_page_size"`
	MaxPageSize     int `koanf:"max_page_size"`
}

// SecurityConfig holds authentication, session, rate-limit, lockout, and
// CSRF policy settings.
//
// Environment Variables (operational surface):
//   - RATE_LIMIT_REQUESTS / RATE_LIMIT_WINDOW: default-class limit
//   - SESSION_TIMEOUT / SESSION_IDLE_TIMEOUT: absolute and idle session caps
//   - CSRF_TOKEN_TTL: CSRF token lifetime
//   - JWT_SECRET, ADMIN_USERNAME, ADMIN_PASSWORD: bootstrap credentials
type SecurityConfig struct {
	JWTSecret       string        `koanf:"jwt_secret"`
	AccessTokenTTL  time.Duration `koanf:"access_token_ttl"`
	RefreshTokenTTL time.Duration `koanf:"refresh_token_ttl"`

	SessionTimeout     time.Duration `koanf:"session_timeout"`      // absolute session lifetime
	SessionIdleTimeout time.Duration `koanf:"session_idle_timeout"` // sliding inactivity window

	AdminUsername string `koanf:"admin_username"`
	AdminPassword string `koanf:"admin_password"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	// Violation escalation: BlockThreshold rate-limit violations within
	// RateLimitWindow impose an IP block of BlockBaseDuration, doubling
	// per prior block up to BlockMaxDuration.
	BlockThreshold    int           `koanf:"block_threshold"`
	BlockBaseDuration time.Duration `koanf:"block_base_duration"`
	BlockMaxDuration  time.Duration `koanf:"block_max_duration"`

	LockoutMaxAttempts int           `koanf:"lockout_max_attempts"`
	LockoutDuration    time.Duration `koanf:"lockout_duration"`
	LockoutMaxDuration time.Duration `koanf:"lockout_max_duration"`

	CSRFTokenTTL time.Duration `koanf:"csrf_token_ttl"`

	CORSOrigins    []string `koanf:"cors_origins"`
	TrustedProxies []string `koanf:"trusted_proxies"`
}

// EncryptionConfig holds the field-encryption keyring.
//
// Keys are supplied as "id:material" entries; material is either a base64
// 32-byte key or a passphrase run through PBKDF2-SHA256. ActiveKey selects
// the key new ciphertexts are written under; older keys remain for decrypt.
//
// Environment Variables:
//   - ENCRYPTION_KEYS: comma-separated "id:material" entries
//   - ENCRYPTION_ACTIVE_KEY: id of the active key
//   - FIPS_MODE: forbid passphrase-derived keys, enforce 32-byte material
type EncryptionConfig struct {
	Keys             []string `koanf:"keys"`
	ActiveKey        string   `koanf:"active_key"`
	PBKDF2Iterations int      `koanf:"pbkdf2_iterations"`
	FIPSMode         bool     `koanf:"fips_mode"`
}

// TasksConfig holds the Watermill/NATS task pipeline settings.
type TasksConfig struct {
	Enabled        bool   `koanf:"enabled"`
	URL            string `koanf:"url"`
	EmbeddedServer bool   `koanf:"embedded_server"`
	StoreDir       string `koanf:"store_dir"`
	MaxMemory      int64  `koanf:"max_memory"`
	MaxStore       int64  `koanf:"max_store"`

	// Router middleware settings
	RetryCount           int           `koanf:"retry_count"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval"`
	PoisonQueueEnabled   bool          `koanf:"poison_queue_enabled"`
	PoisonQueueTopic     string        `koanf:"poison_queue_topic"`
	CloseTimeout         time.Duration `koanf:"close_timeout"`

	// Per-queue handler concurrency
	CriticalWorkers     int `koanf:"critical_workers"`
	HighPriorityWorkers int `koanf:"high_priority_workers"`
	EmailWorkers        int `koanf:"email_workers"`
	ReportsWorkers      int `koanf:"reports_workers"`
	ExternalAPIWorkers  int `koanf:"external_api_workers"`
	MaintenanceWorkers  int `koanf:"maintenance_workers"`

	// Maintenance schedule and outbound throttling
	MaintenanceInterval time.Duration `koanf:"maintenance_interval"`
	ExternalAPIRate     float64       `koanf:"external_api_rate"`  // requests per second
	ExternalAPIBurst    int           `koanf:"external_api_burst"` // burst size

	// EscalationRecipients receive the notification email when a
	// CRITICAL ticket lands on the critical queue.
	EscalationRecipients []string `koanf:"escalation_recipients"`
}

// BackupConfig holds backup scheduling and retention settings.
type BackupConfig struct {
	Enabled        bool          `koanf:"enabled"`
	Dir            string        `koanf:"dir"`
	Interval       time.Duration `koanf:"interval"`
	RetentionCount int           `koanf:"retention_count"` // keep at most N backups
	RetentionAge   time.Duration `koanf:"retention_age"`   // and none older than this
}

// ReportsConfig holds the report materialization settings.
type ReportsConfig struct {
	Dir string `koanf:"dir"` // generated CSV output directory
}

// TenancyConfig holds multi-tenant resolution settings. The tenant is
// resolved per request from the Header value, falling back to DefaultTenant.
type TenancyConfig struct {
	DefaultTenant string `koanf:"default_tenant"`
	Header        string `koanf:"header"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}
