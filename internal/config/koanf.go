// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/custodia/config.yaml",
	"/etc/custodia/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8443,
			Timeout:     30 * time.Second,
			Environment: "development",
		},
		Database: DatabaseConfig{
			Path:                   "/data/custodia.duckdb",
			MaxMemory:              "2GB",
			Threads:                0, // 0 = use runtime.NumCPU()
			PreserveInsertionOrder: true,
		},
		KV: KVConfig{
			Path:     "/data/kv",
			InMemory: false,
		},
		API: APIConfig{
			DefaultPageSize: 20,
			MaxPageSize:     100,
		},
		Security: SecurityConfig{
			JWTSecret:       "",
			AccessTokenTTL:  15 * time.Minute,
			RefreshTokenTTL: 7 * 24 * time.Hour,

			SessionTimeout:     24 * time.Hour,
			SessionIdleTimeout: 30 * time.Minute,

			AdminUsername: "",
			AdminPassword: "",

			RateLimitReqs:     100,
			RateLimitWindow:   1 * time.Minute,
			RateLimitDisabled: false,

			BlockThreshold:    10,
			BlockBaseDuration: 1 * time.Minute,
			BlockMaxDuration:  24 * time.Hour,

			LockoutMaxAttempts: 5,
			LockoutDuration:    15 * time.Minute,
			LockoutMaxDuration: 24 * time.Hour,

			CSRFTokenTTL: 4 * time.Hour,

			CORSOrigins:    []string{"*"},
			TrustedProxies: []string{},
		},
		Encryption: EncryptionConfig{
			Keys:             []string{},
			ActiveKey:        "",
			PBKDF2Iterations: 600000,
			FIPSMode:         false,
		},
		Tasks: TasksConfig{
			Enabled:        true,
			URL:            "nats://127.0.0.1:4222",
			EmbeddedServer: true,
			StoreDir:       "/data/nats/jetstream",
			MaxMemory:      1 << 30,  // 1GB
			MaxStore:       10 << 30, // 10GB

			RetryCount:           3,
			RetryInitialInterval: 100 * time.Millisecond,
			PoisonQueueEnabled:   true,
			PoisonQueueTopic:     "tasks.poison",
			CloseTimeout:         30 * time.Second,

			CriticalWorkers:     4,
			HighPriorityWorkers: 4,
			EmailWorkers:        2,
			ReportsWorkers:      2,
			ExternalAPIWorkers:  2,
			MaintenanceWorkers:  1,

			MaintenanceInterval: 15 * time.Minute,
			ExternalAPIRate:     5.0,
			ExternalAPIBurst:    10,
		},
		Backup: BackupConfig{
			Enabled:        false,
			Dir:            "/data/backups",
			Interval:       24 * time.Hour,
			RetentionCount: 7,
			RetentionAge:   30 * 24 * time.Hour,
		},
		Reports: ReportsConfig{
			Dir: "/data/reports",
		},
		Tenancy: TenancyConfig{
			DefaultTenant: "default",
			Header:        "X-Custodia-Tenant",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// Precedence is ENV > File > Defaults.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"security.cors_origins",
	"security.trusted_proxies",
	"encryption.keys",
}

// processSliceFields converts comma-separated string values to slices for known
// slice fields. Env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML file)
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - RATE_LIMIT_REQUESTS -> security.rate_limit_reqs
//   - ENCRYPTION_KEYS -> encryption.keys
//   - FIPS_MODE -> encryption.fips_mode
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",
		"environment":  "server.environment",

		// Database mappings
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		// KV store mappings
		"kv_path": "kv.path",

		// API mappings
		"api_default_page_size": "api.default_page_size",
		"api_max_page_size":     "api.max_page_size",

		// Security mappings
		"jwt_secret":           "security.jwt_secret",
		"access_token_ttl":     "security.access_token_ttl",
		"refresh_token_ttl":    "security.refresh_token_ttl",
		"session_timeout":      "security.session_timeout",
		"session_idle_timeout": "security.session_idle_timeout",
		"admin_username":       "security.admin_username",
		"admin_password":       "security.admin_password",
		"rate_limit_requests":  "security.rate_limit_reqs",
		"rate_limit_window":    "security.rate_limit_window",
		"disable_rate_limit":   "security.rate_limit_disabled",
		"block_threshold":      "security.block_threshold",
		"block_base_duration":  "security.block_base_duration",
		"block_max_duration":   "security.block_max_duration",
		"lockout_max_attempts": "security.lockout_max_attempts",
		"lockout_duration":     "security.lockout_duration",
		"lockout_max_duration": "security.lockout_max_duration",
		"csrf_token_ttl":       "security.csrf_token_ttl",
		"cors_origins":         "security.cors_origins",
		"trusted_proxies":      "security.trusted_proxies",

		// Encryption mappings
		"encryption_keys":              "encryption.keys",
		"encryption_active_key":        "encryption.active_key",
		"encryption_pbkdf2_iterations": "encryption.pbkdf2_iterations",
		"fips_mode":                    "encryption.fips_mode",

		// Task pipeline mappings
		"tasks_enabled":                "tasks.enabled",
		"nats_url":                     "tasks.url",
		"nats_embedded":                "tasks.embedded_server",
		"nats_store_dir":               "tasks.store_dir",
		"nats_max_memory":              "tasks.max_memory",
		"nats_max_store":               "tasks.max_store",
		"tasks_retry_count":            "tasks.retry_count",
		"tasks_retry_interval":         "tasks.retry_initial_interval",
		"tasks_poison_enabled":         "tasks.poison_queue_enabled",
		"tasks_poison_topic":           "tasks.poison_queue_topic",
		"tasks_close_timeout":          "tasks.close_timeout",
		"tasks_critical_workers":       "tasks.critical_workers",
		"tasks_high_priority_workers":  "tasks.high_priority_workers",
		"tasks_email_workers":          "tasks.email_workers",
		"tasks_reports_workers":        "tasks.reports_workers",
		"tasks_external_api_workers":   "tasks.external_api_workers",
		"tasks_maintenance_workers":    "tasks.maintenance_workers",
		"tasks_maintenance_interval":   "tasks.maintenance_interval",
		"tasks_external_api_rate":      "tasks.external_api_rate",
		"tasks_external_api_burst":     "tasks.external_api_burst",

		// Backup mappings
		"backup_enabled":         "backup.enabled",
		"backup_dir":             "backup.dir",
		"backup_interval":        "backup.interval",
		"backup_retention_count": "backup.retention_count",
		"backup_retention_age":   "backup.retention_age",

		// Reports mappings
		"reports_dir": "reports.dir",

		// Tenancy mappings
		"tenant_default": "tenancy.default_tenant",
		"tenant_header":  "tenancy.header",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them.
	// This prevents random environment variables from polluting config.
	return ""
}
