// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package config

import (
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// minJWTSecretLength is the shortest accepted HMAC secret.
const minJWTSecretLength = 32

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRetention(); err != nil {
		return err
	}
	if err := c.validateSchedule(); err != nil {
		return err
	}
	if err := c.validateNotify(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.BasePath != "" && !strings.HasPrefix(c.Server.BasePath, "/") {
		return fmt.Errorf("HTTP_BASE_PATH must start with '/', got %q", c.Server.BasePath)
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Database.Path == "" {
		return fmt.Errorf("DUCKDB_PATH is required")
	}
	if c.Settings.Dir == "" && !c.Settings.InMemory {
		return fmt.Errorf("SETTINGS_DIR is required unless SETTINGS_IN_MEMORY=true")
	}
	if c.Logs.Dir == "" {
		return fmt.Errorf("LOG_DIR is required")
	}
	if len(c.Logs.Files) == 0 {
		return fmt.Errorf("LOG_FILES must name at least one log file")
	}
	for _, name := range c.Logs.Files {
		if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
			return fmt.Errorf("LOG_FILES entries must be bare file names, got %q", name)
		}
	}
	if _, err := Location(c.Logs.Timezone); err != nil {
		return fmt.Errorf("LOG_TIMEZONE is invalid: %w", err)
	}
	if c.Archive.Root == "" {
		return fmt.Errorf("ARCHIVE_ROOT is required")
	}
	return nil
}

func (c *Config) validateRetention() error {
	if c.Retention.BatchSize < 1 || c.Retention.BatchSize > 100000 {
		return fmt.Errorf("RETENTION_BATCH_SIZE must be between 1 and 100000, got %d", c.Retention.BatchSize)
	}
	if c.Interceptor.CacheSize < 1 {
		return fmt.Errorf("AUDIT_CACHE_SIZE must be positive, got %d", c.Interceptor.CacheSize)
	}
	return nil
}

func (c *Config) validateSchedule() error {
	if !c.Schedule.Enabled {
		return nil
	}
	if c.Schedule.Interval < time.Second {
		return fmt.Errorf("SCHEDULER_INTERVAL must be at least 1s, got %v", c.Schedule.Interval)
	}
	if _, err := Location(c.Schedule.Timezone); err != nil {
		return fmt.Errorf("SCHEDULER_TIMEZONE is invalid: %w", err)
	}
	return nil
}

func (c *Config) validateNotify() error {
	for _, addr := range c.Notify.Admins {
		if _, err := mail.ParseAddress(addr); err != nil {
			return fmt.Errorf("ADMIN_EMAILS contains an invalid address %q: %w", addr, err)
		}
	}
	if !c.Notify.EmailEnabled {
		return nil
	}
	if c.Notify.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST is required when EMAIL_ENABLED=true")
	}
	if c.Notify.SMTPPort < 1 || c.Notify.SMTPPort > 65535 {
		return fmt.Errorf("SMTP_PORT must be between 1 and 65535, got %d", c.Notify.SMTPPort)
	}
	if _, err := mail.ParseAddress(c.Notify.From); err != nil {
		return fmt.Errorf("EMAIL_FROM is invalid: %w", err)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	switch c.Security.AuthMode {
	case "none":
	case "jwt":
		if len(c.Security.JWTSecret) < minJWTSecretLength {
			return fmt.Errorf("JWT_SECRET must be at least %d characters when AUTH_MODE=jwt", minJWTSecretLength)
		}
	default:
		return fmt.Errorf("AUTH_MODE must be one of: none, jwt (got %q)", c.Security.AuthMode)
	}
	if c.Security.RateLimitReqs < 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must not be negative")
	}
	if c.Security.RateLimitReqs > 0 && c.Security.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive when rate limiting is enabled")
	}
	for _, origin := range c.Security.CORSOrigins {
		if origin == "*" {
			return fmt.Errorf("CORS_ORIGINS must list explicit origins; '*' is not allowed for the admin surface")
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of: trace, debug, info, warn, error (got %q)", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console (got %q)", c.Logging.Format)
	}
	return nil
}
