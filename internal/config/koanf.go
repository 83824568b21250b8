// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

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

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/logkeeper/config.yaml",
	"/etc/logkeeper/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all defaults applied.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8089,
			BasePath:        "/logs",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    5 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Path:      "data/logkeeper.duckdb",
			MaxMemory: "1GB",
			Threads:   0,
		},
		Settings: SettingsConfig{
			Dir:      "data/settings",
			InMemory: false,
		},
		Logs: LogsConfig{
			Dir:      "logs",
			Files:    []string{"alumni_system.log", "errors.log"},
			Timezone: "Local",
		},
		Archive: ArchiveConfig{
			Root:   "media/logs/archives",
			Banner: "NORSU Alumni System",
		},
		Retention: RetentionConfig{
			BatchSize:   1000,
			KeepBackups: false,
		},
		Interceptor: InterceptorConfig{
			Enabled:     true,
			CacheSize:   10000,
			FallbackLog: "logs/audit_errors.log",
		},
		Schedule: ScheduleConfig{
			Enabled:  true,
			Interval: time.Hour,
			Timezone: "Local",
		},
		Notify: NotifyConfig{
			EmailEnabled: false,
			SMTPPort:     587,
			From:         "logkeeper@localhost",
			SubjectTag:   "[NORSU Alumni]",
			Timeout:      30 * time.Second,
		},
		Security: SecurityConfig{
			AuthMode:        "jwt",
			CORSOrigins:     []string{},
			RateLimitReqs:   30,
			RateLimitWindow: time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in values from defaultConfig
//  2. Config file: optional YAML file found via CONFIG_PATH or DefaultConfigPaths
//  3. Environment variables: explicit mappings in envTransformFunc
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

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

// findConfigFile returns the first config file found, or "" when none exists.
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

// sliceConfigPaths defines which config paths are parsed as comma-separated slices
var sliceConfigPaths = []string{
	"logs.files",
	"interceptor.skip_apps",
	"interceptor.sensitive_fields",
	"notify.admins",
	"security.cors_origins",
}

// processSliceFields converts comma-separated env values into slices for known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
// Unmapped variables are ignored so the environment cannot pollute config.
var envMappings = map[string]string{
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_base_path":        "server.base_path",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",

	"duckdb_path":       "database.path",
	"duckdb_max_memory": "database.max_memory",
	"duckdb_threads":    "database.threads",

	"settings_dir":       "settings.dir",
	"settings_in_memory": "settings.in_memory",

	"log_dir":       "logs.dir",
	"log_files":     "logs.files",
	"log_timezone":  "logs.timezone",
	"archive_root":  "archive.root",
	"archive_logo":  "archive.logo_path",
	"archive_title": "archive.banner",

	"retention_batch_size":   "retention.batch_size",
	"retention_keep_backups": "retention.keep_backups",
	"retention_lock_file":    "retention.lock_file",

	"audit_enabled":          "interceptor.enabled",
	"audit_skip_apps":        "interceptor.skip_apps",
	"audit_sensitive_fields": "interceptor.sensitive_fields",
	"audit_cache_size":       "interceptor.cache_size",
	"audit_fallback_log":     "interceptor.fallback_log",

	"scheduler_enabled":  "schedule.enabled",
	"scheduler_interval": "schedule.interval",
	"scheduler_timezone": "schedule.timezone",

	"email_enabled":     "notify.email_enabled",
	"admin_emails":      "notify.admins",
	"smtp_host":         "notify.smtp_host",
	"smtp_port":         "notify.smtp_port",
	"smtp_username":     "notify.smtp_username",
	"smtp_password":     "notify.smtp_password",
	"email_from":        "notify.from",
	"email_subject_tag": "notify.subject_tag",
	"smtp_timeout":      "notify.timeout",

	"auth_mode":           "security.auth_mode",
	"jwt_secret":          "security.jwt_secret",
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
//   - DUCKDB_PATH -> database.path
//   - ARCHIVE_ROOT -> archive.root
//   - ADMIN_EMAILS -> notify.admins
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
