// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/norsu-alumni/logkeeper/internal/export"
	"github.com/norsu-alumni/logkeeper/internal/history"
)

// operationView adds the derived figures of a cleanup run.
type operationView struct {
	history.Operation
	DurationSeconds    float64 `json:"duration_seconds"`
	TotalProcessed     int64   `json:"total_processed"`
	TotalDeleted       int64   `json:"total_deleted"`
	TriggeredByDisplay string  `json:"triggered_by_display"`
}

func newOperationView(op *history.Operation) operationView {
	return operationView{
		Operation:          *op,
		DurationSeconds:    op.Duration().Seconds(),
		TotalProcessed:     op.TotalProcessed(),
		TotalDeleted:       op.TotalDeleted(),
		TriggeredByDisplay: op.TriggeredByDisplay(),
	}
}

func (h *Handler) operationFilter(r *http.Request) history.Filter {
	q := r.URL.Query()
	return history.Filter{
		Status:   history.Status(q.Get("status")),
		Type:     history.Type(q.Get("type")),
		DateFrom: h.parseDate(r, "date_from"),
		DateTo:   h.parseDate(r, "date_to"),
	}
}

// OperationList handles GET /operations/
func (h *Handler) OperationList(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ctx := r.Context()
	filter := h.operationFilter(r)

	total, err := h.deps.History.Count(ctx, filter)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	page := paginate(pageParam(r), history.PageSize, total)
	ops, err := h.deps.History.List(ctx, filter.Page(page.Page))
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	views := make([]operationView, 0, len(ops))
	for i := range ops {
		views = append(views, newOperationView(&ops[i]))
	}
	rw.SuccessWithPagination(views, page)
}

// OperationDetail handles GET /operations/{id}
func (h *Handler) OperationDetail(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id, err := idParam(r, chi.URLParam(r, "id"))
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	op, err := h.deps.History.Get(r.Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		rw.NotFound("Operation not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(newOperationView(op))
}

// OperationExport handles GET /operations/export
func (h *Handler) OperationExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter := h.operationFilter(r)

	var ops []history.Operation
	for filter.Limit = exportBatchSize; ; filter.Offset += exportBatchSize {
		batch, err := h.deps.History.List(ctx, filter)
		if err != nil {
			NewResponseWriter(w, r).DatabaseError(err)
			return
		}
		ops = append(ops, batch...)
		if len(batch) < exportBatchSize {
			break
		}
	}

	h.attachment(w, "operations_export")
	if err := export.WriteOperationsCSV(w, ops); err != nil {
		h.logger.Error().Err(err).Msg("Failed to write operations export")
	}
}
