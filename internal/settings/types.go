// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package settings

import (
	"errors"
	"fmt"
	"time"

	"github.com/norsu-alumni/logkeeper/internal/interceptor"
	"github.com/norsu-alumni/logkeeper/internal/validation"
)

// App label under which settings changes are audited.
const auditApp = "log_viewer"

// Entity types of the settings documents.
var (
	PolicyType   = interceptor.EntityType{AppLabel: auditApp, ModelName: "logretentionpolicy"}
	ScheduleType = interceptor.EntityType{AppLabel: auditApp, ModelName: "cleanupschedule"}
	StorageType  = interceptor.EntityType{AppLabel: auditApp, ModelName: "archivestorageconfig"}
)

// LogType names a retention stream.
type LogType string

const (
	LogTypeAudit LogType = "audit"
	LogTypeFile  LogType = "file"
)

// LogTypes lists the streams in execution order.
var LogTypes = []LogType{LogTypeAudit, LogTypeFile}

// Valid reports whether t is a known stream.
func (t LogType) Valid() bool {
	return t == LogTypeAudit || t == LogTypeFile
}

// DisplayName returns the label shown to admins.
func (t LogType) DisplayName() string {
	switch t {
	case LogTypeAudit:
		return "Audit Logs"
	case LogTypeFile:
		return "File Logs"
	default:
		return string(t)
	}
}

// key is the stable audit key of the policy for t.
func (t LogType) key() int64 {
	if t == LogTypeFile {
		return 2
	}
	return 1
}

// ExportFormat selects the archive formats written before deletion.
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatPDF  ExportFormat = "pdf"
	FormatBoth ExportFormat = "both"
)

// CSV reports whether a CSV archive is written.
func (f ExportFormat) CSV() bool { return f == FormatCSV || f == FormatBoth }

// PDF reports whether a PDF archive is written.
func (f ExportFormat) PDF() bool { return f == FormatPDF || f == FormatBoth }

// RetentionPolicy governs how long one log stream is kept.
type RetentionPolicy struct {
	LogType            LogType      `json:"log_type" validate:"required,oneof=audit file"`
	Enabled            bool         `json:"enabled"`
	RetentionDays      int          `json:"retention_days" validate:"gte=1,lte=3650"`
	ExportBeforeDelete bool         `json:"export_before_delete"`
	ExportFormat       ExportFormat `json:"export_format" validate:"required,oneof=csv pdf both"`
	ArchivePath        string       `json:"archive_path" validate:"required,archivepath"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// DefaultPolicy returns the policy used until an admin saves one.
func DefaultPolicy(t LogType) *RetentionPolicy {
	p := &RetentionPolicy{
		LogType:            t,
		RetentionDays:      90,
		ExportBeforeDelete: true,
		ExportFormat:       FormatCSV,
		ArchivePath:        "audit",
	}
	if t == LogTypeFile {
		p.RetentionDays = 30
		p.ArchivePath = "file"
	}
	return p
}

// Cutoff returns the instant before which entries are expired.
func (p *RetentionPolicy) Cutoff(now time.Time) time.Time {
	return now.Add(-time.Duration(p.RetentionDays) * 24 * time.Hour)
}

// Validate checks the policy fields.
func (p *RetentionPolicy) Validate() error {
	if verr := validation.ValidateStruct(p); verr != nil {
		return verr
	}
	return nil
}

func (p *RetentionPolicy) AuditType() interceptor.EntityType { return PolicyType }
func (p *RetentionPolicy) AuditKey() (int64, bool)           { return p.LogType.key(), true }
func (p *RetentionPolicy) VerboseName() string               { return "log retention policy" }

func (p *RetentionPolicy) String() string {
	return fmt.Sprintf("%s - %d days", p.LogType.DisplayName(), p.RetentionDays)
}

// Frequency is how often scheduled cleanup runs.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
)

// CleanupSchedule is the singleton schedule for automatic cleanup.
type CleanupSchedule struct {
	Enabled   bool      `json:"enabled"`
	Frequency Frequency `json:"frequency" validate:"required,oneof=daily weekly monthly"`
	// ExecutionTime is "HH:MM" in the scheduler's location.
	ExecutionTime string `json:"execution_time" validate:"required,hhmm"`
	// DayOfWeek is 0 for Monday through 6 for Sunday.
	DayOfWeek  *int       `json:"day_of_week" validate:"omitempty,gte=0,lte=6"`
	DayOfMonth *int       `json:"day_of_month" validate:"omitempty,gte=1,lte=28"`
	LastRun    *time.Time `json:"last_run"`
	NextRun    *time.Time `json:"next_run"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// DefaultSchedule returns the disabled daily 02:00 schedule.
func DefaultSchedule() *CleanupSchedule {
	return &CleanupSchedule{Frequency: Daily, ExecutionTime: "02:00"}
}

// Validate checks the schedule fields and the frequency-specific day.
func (s *CleanupSchedule) Validate() error {
	if verr := validation.ValidateStruct(s); verr != nil {
		return verr
	}
	switch s.Frequency {
	case Weekly:
		if s.DayOfWeek == nil {
			return errors.New("day_of_week is required for weekly schedules")
		}
	case Monthly:
		if s.DayOfMonth == nil {
			return errors.New("day_of_month is required for monthly schedules")
		}
	}
	return nil
}

// Clock returns the hour and minute of ExecutionTime.
func (s *CleanupSchedule) Clock() (hour, minute int, err error) {
	t, err := time.Parse("15:04", s.ExecutionTime)
	if err != nil {
		return 0, 0, fmt.Errorf("execution_time %q: %w", s.ExecutionTime, err)
	}
	return t.Hour(), t.Minute(), nil
}

func (s *CleanupSchedule) AuditType() interceptor.EntityType { return ScheduleType }
func (s *CleanupSchedule) AuditKey() (int64, bool)           { return 1, true }
func (s *CleanupSchedule) VerboseName() string               { return "cleanup schedule" }

func (s *CleanupSchedule) String() string {
	return fmt.Sprintf("%s cleanup at %s", s.Frequency, s.ExecutionTime)
}

// StorageStatus classifies archive usage.
type StorageStatus string

const (
	StorageNormal   StorageStatus = "normal"
	StorageWarning  StorageStatus = "warning"
	StorageCritical StorageStatus = "critical"
)

// StorageConfig bounds the archive directory.
type StorageConfig struct {
	MaxStorageGB             float64    `json:"max_storage_gb" validate:"gt=0"`
	WarningThresholdPercent  int        `json:"warning_threshold_percent" validate:"gte=1,lte=100,ltfield=CriticalThresholdPercent"`
	CriticalThresholdPercent int        `json:"critical_threshold_percent" validate:"gte=1,lte=100"`
	CurrentSizeGB            float64    `json:"current_size_gb"`
	LastSizeCheck            *time.Time `json:"last_size_check"`
	UpdatedAt                time.Time  `json:"updated_at"`
}

// DefaultStorage returns 10 GB with 80% warning and 95% critical thresholds.
func DefaultStorage() *StorageConfig {
	return &StorageConfig{MaxStorageGB: 10, WarningThresholdPercent: 80, CriticalThresholdPercent: 95}
}

// Validate checks the limits and threshold ordering.
func (c *StorageConfig) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}
	return nil
}

// UsagePercent returns current usage as a percentage of the maximum.
func (c *StorageConfig) UsagePercent() float64 {
	if c.MaxStorageGB <= 0 {
		return 0
	}
	return c.CurrentSizeGB / c.MaxStorageGB * 100
}

// Status classifies usage against the thresholds.
func (c *StorageConfig) Status() StorageStatus {
	usage := c.UsagePercent()
	switch {
	case usage >= float64(c.CriticalThresholdPercent):
		return StorageCritical
	case usage >= float64(c.WarningThresholdPercent):
		return StorageWarning
	default:
		return StorageNormal
	}
}

func (c *StorageConfig) IsWarning() bool  { return c.Status() == StorageWarning }
func (c *StorageConfig) IsCritical() bool { return c.Status() == StorageCritical }

func (c *StorageConfig) AuditType() interceptor.EntityType { return StorageType }
func (c *StorageConfig) AuditKey() (int64, bool)           { return 1, true }
func (c *StorageConfig) VerboseName() string               { return "archive storage config" }

func (c *StorageConfig) String() string {
	return fmt.Sprintf("Archive Storage: %.2fGB / %.0fGB", c.CurrentSizeGB, c.MaxStorageGB)
}
