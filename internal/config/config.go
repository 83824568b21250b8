// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

// Package config loads Logkeeper configuration from defaults, an optional
// YAML file and environment variables, in that order of precedence.
//
// Configuration here is process-level: where the stores live, where the log
// files and archives are, how the scheduler polls and how admins are mailed.
// The retention policies, cleanup schedule and storage quota are admin-edited
// documents kept in the settings store, not in this file.
package config

import (
	"time"
)

// Config holds all process configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Database    DatabaseConfig    `koanf:"database"`
	Settings    SettingsConfig    `koanf:"settings"`
	Logs        LogsConfig        `koanf:"logs"`
	Archive     ArchiveConfig     `koanf:"archive"`
	Retention   RetentionConfig   `koanf:"retention"`
	Interceptor InterceptorConfig `koanf:"interceptor"`
	Schedule    ScheduleConfig    `koanf:"schedule"`
	Notify      NotifyConfig      `koanf:"notify"`
	Security    SecurityConfig    `koanf:"security"`
	Logging     LoggingConfig     `koanf:"logging"`
	Supervisor  SupervisorConfig  `koanf:"supervisor"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	BasePath        string        `koanf:"base_path"` // Mount point of the admin log routes
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"` // Exports stream whole tables; keep generous
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// DatabaseConfig holds DuckDB settings for the audit and history tables
type DatabaseConfig struct {
	Path      string `koanf:"path"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads"` // 0 = DuckDB default
}

// SettingsConfig holds the BadgerDB location for admin-edited settings
type SettingsConfig struct {
	Dir      string `koanf:"dir"`
	InMemory bool   `koanf:"in_memory"`
}

// LogsConfig describes the application log files that can be viewed and pruned
type LogsConfig struct {
	Dir      string   `koanf:"dir"`
	Files    []string `koanf:"files"`
	Timezone string   `koanf:"timezone"` // Location of the naive timestamps written by the host logger
}

// ArchiveConfig holds archive output settings
type ArchiveConfig struct {
	Root     string `koanf:"root"`
	LogoPath string `koanf:"logo_path"` // Optional PNG/JPEG drawn on every PDF page
	Banner   string `koanf:"banner"`
}

// RetentionConfig tunes the retention engine
type RetentionConfig struct {
	BatchSize   int    `koanf:"batch_size"`
	KeepBackups bool   `koanf:"keep_backups"` // Keep <log>.backup after a successful rewrite
	LockFile    string `koanf:"lock_file"`    // Defaults to <archive.root>/.cleanup.lock
}

// InterceptorConfig configures mutation auditing
type InterceptorConfig struct {
	Enabled         bool     `koanf:"enabled"`
	SkipApps        []string `koanf:"skip_apps"`        // Added to the built-in skip list
	SensitiveFields []string `koanf:"sensitive_fields"` // Added to the built-in deny-list
	CacheSize       int      `koanf:"cache_size"`
	FallbackLog     string   `koanf:"fallback_log"`
}

// ScheduleConfig configures the background cleanup poller
type ScheduleConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
	Timezone string        `koanf:"timezone"`
}

// NotifyConfig configures admin notifications
type NotifyConfig struct {
	EmailEnabled bool          `koanf:"email_enabled"`
	Admins       []string      `koanf:"admins"`
	SMTPHost     string        `koanf:"smtp_host"`
	SMTPPort     int           `koanf:"smtp_port"`
	SMTPUsername string        `koanf:"smtp_username"`
	SMTPPassword string        `koanf:"smtp_password"`
	From         string        `koanf:"from"`
	SubjectTag   string        `koanf:"subject_tag"` // Prefix added to every subject, e.g. "[NORSU Alumni]"
	Timeout      time.Duration `koanf:"timeout"`
}

// SecurityConfig holds authentication and HTTP hardening settings
type SecurityConfig struct {
	AuthMode        string        `koanf:"auth_mode"` // none or jwt
	JWTSecret       string        `koanf:"jwt_secret"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig holds process logger settings
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// SupervisorConfig tunes the suture restart policy
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"` // Seconds
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}

// Location resolves a configured timezone name, falling back to time.Local
// for an empty name or "Local".
func Location(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}

// LockFilePath returns the cleanup lock path, derived from the archive root when unset.
func (c *Config) LockFilePath() string {
	if c.Retention.LockFile != "" {
		return c.Retention.LockFile
	}
	return c.Archive.Root + "/.cleanup.lock"
}
