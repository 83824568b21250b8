// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package api

import (
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/norsu-alumni/logkeeper/internal/schedule"
	"github.com/norsu-alumni/logkeeper/internal/settings"
)

// maxBodyBytes bounds settings request bodies.
const maxBodyBytes = 64 * 1024

// storageView adds the derived usage figures to the stored config.
type storageView struct {
	*settings.StorageConfig
	UsagePercent float64                `json:"usage_percent"`
	Status       settings.StorageStatus `json:"status"`
}

func newStorageView(c *settings.StorageConfig) storageView {
	return storageView{StorageConfig: c, UsagePercent: c.UsagePercent(), Status: c.Status()}
}

// SettingsResponse is the payload of GET /settings.
type SettingsResponse struct {
	Policies []*settings.RetentionPolicy `json:"policies"`
	Schedule *settings.CleanupSchedule   `json:"schedule"`
	Storage  storageView                 `json:"storage"`
	NextRun  *schedule.Info              `json:"next_run_info"`
}

// Settings handles GET /settings. Unsaved documents are reported with
// their defaults.
func (h *Handler) Settings(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ctx := r.Context()

	policies, err := h.deps.Settings.Policies(ctx)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	sched, err := h.deps.Settings.Schedule(ctx)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	storage, err := h.deps.Settings.Storage(ctx)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	info, err := h.deps.Schedule.NextRunInfo(ctx)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(SettingsResponse{
		Policies: policies,
		Schedule: sched,
		Storage:  newStorageView(storage),
		NextRun:  info,
	})
}

// readBody reads a bounded JSON body.
func readBody(r *http.Request) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
}

// SaveRetentionPolicy handles POST /save-retention-policy. Fields absent
// from the body keep their stored values.
func (h *Handler) SaveRetentionPolicy(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ctx := r.Context()

	body, err := readBody(r)
	if err != nil {
		rw.BadRequest("Invalid request body")
		return
	}
	var probe struct {
		LogType settings.LogType `json:"log_type"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		rw.BadRequest("Invalid request body")
		return
	}
	if !probe.LogType.Valid() {
		rw.ValidationError("log_type must be one of: audit, file", nil)
		return
	}

	policy, err := h.deps.Settings.Policy(ctx, probe.LogType)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if err := json.Unmarshal(body, policy); err != nil {
		rw.BadRequest("Invalid request body")
		return
	}
	policy.LogType = probe.LogType
	if err := policy.Validate(); err != nil {
		writeValidationError(rw, err)
		return
	}
	if err := h.deps.Settings.SavePolicy(ctx, policy); err != nil {
		rw.DatabaseError(err)
		return
	}
	h.logger.Info().Str("log_type", string(policy.LogType)).Int("retention_days", policy.RetentionDays).
		Bool("enabled", policy.Enabled).Msg("Retention policy saved")
	rw.SuccessMessage(policy.LogType.DisplayName()+" retention policy saved", policy)
}

// SaveCleanupSchedule handles POST /save-cleanup-schedule. last_run and
// next_run are server-owned; next_run is recomputed when the schedule is
// enabled and cleared when it is not.
func (h *Handler) SaveCleanupSchedule(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ctx := r.Context()

	sched, err := h.deps.Settings.Schedule(ctx)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	lastRun := sched.LastRun
	body, err := readBody(r)
	if err != nil {
		rw.BadRequest("Invalid request body")
		return
	}
	if err := json.Unmarshal(body, sched); err != nil {
		rw.BadRequest("Invalid request body")
		return
	}
	sched.LastRun = lastRun
	sched.NextRun = nil
	if err := sched.Validate(); err != nil {
		writeValidationError(rw, err)
		return
	}
	if sched.Enabled {
		next := schedule.NextRun(sched, h.now().In(h.loc))
		sched.NextRun = &next
	}
	if err := h.deps.Settings.SaveSchedule(ctx, sched); err != nil {
		rw.DatabaseError(err)
		return
	}
	h.logger.Info().Bool("enabled", sched.Enabled).Str("frequency", string(sched.Frequency)).
		Str("execution_time", sched.ExecutionTime).Msg("Cleanup schedule saved")
	rw.SuccessMessage("Cleanup schedule saved", schedule.Describe(sched))
}

// SaveStorageConfig handles POST /save-storage-config. The measured size
// is server-owned.
func (h *Handler) SaveStorageConfig(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ctx := r.Context()

	cfg, err := h.deps.Settings.Storage(ctx)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	size, checked := cfg.CurrentSizeGB, cfg.LastSizeCheck
	body, err := readBody(r)
	if err != nil {
		rw.BadRequest("Invalid request body")
		return
	}
	if err := json.Unmarshal(body, cfg); err != nil {
		rw.BadRequest("Invalid request body")
		return
	}
	cfg.CurrentSizeGB, cfg.LastSizeCheck = size, checked
	if err := cfg.Validate(); err != nil {
		writeValidationError(rw, err)
		return
	}
	if err := h.deps.Settings.SaveStorage(ctx, cfg); err != nil {
		rw.DatabaseError(err)
		return
	}
	h.logger.Info().Float64("max_storage_gb", cfg.MaxStorageGB).Msg("Storage config saved")
	rw.SuccessMessage("Storage configuration saved", newStorageView(cfg))
}

// RecalculateStorage handles POST /recalculate-storage.
func (h *Handler) RecalculateStorage(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	cfg, err := h.deps.Storage.Measure(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Storage recalculation failed")
		rw.InternalError("Failed to measure archive storage: " + err.Error())
		return
	}
	h.logger.Info().Float64("current_size_gb", cfg.CurrentSizeGB).Msg("Storage recalculated")
	rw.SuccessMessage("Storage recalculated", newStorageView(cfg))
}
