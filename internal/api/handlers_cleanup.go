// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package api

import (
	"errors"
	"net/http"

	"github.com/norsu-alumni/logkeeper/internal/history"
	"github.com/norsu-alumni/logkeeper/internal/middleware"
	"github.com/norsu-alumni/logkeeper/internal/retention"
	"github.com/norsu-alumni/logkeeper/internal/schedule"
)

// CleanupResponse is the fixed-shape reply of POST /manual-cleanup.
type CleanupResponse struct {
	Success     bool                 `json:"success"`
	Message     string               `json:"message"`
	OperationID int64                `json:"operation_id"`
	Status      history.Status       `json:"status"`
	Metrics     *schedule.RunMetrics `json:"metrics"`
}

// ManualCleanup handles POST /manual-cleanup. The run is synchronous. A
// failed run still answers 200 with success false, since its outcome is
// recorded in the operation history.
func (h *Handler) ManualCleanup(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	trigger := retention.Trigger{Type: history.TypeManual}
	if actor, ok := middleware.ActorFromContext(r.Context()); ok {
		id := actor.ID
		trigger.ActorKey = &id
		trigger.Actor = actor.Username
	}

	op, err := h.deps.Cleaner.ExecuteCleanup(r.Context(), trigger)
	if errors.Is(err, retention.ErrCleanupInProgress) {
		rw.Conflict("A cleanup operation is already in progress")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("Manual cleanup failed")
		rw.InternalError("Cleanup failed: " + err.Error())
		return
	}

	resp := CleanupResponse{
		Success:     op.Status != history.StatusFailed,
		OperationID: op.ID,
		Status:      op.Status,
		Metrics:     schedule.MetricsOf(op),
	}
	switch op.Status {
	case history.StatusSuccess:
		resp.Message = "Cleanup completed successfully"
	case history.StatusPartial:
		resp.Message = "Cleanup completed with errors: " + op.ErrorMessage
	default:
		resp.Message = "Cleanup failed: " + op.ErrorMessage
	}
	rw.JSON(http.StatusOK, resp)
}

// CleanupPlan handles GET /cleanup-plan, a dry run of the next cleanup.
func (h *Handler) CleanupPlan(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	plan, err := h.deps.Cleaner.Plan(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Cleanup plan failed")
		rw.InternalError("Failed to build cleanup plan: " + err.Error())
		return
	}
	rw.Success(plan)
}
