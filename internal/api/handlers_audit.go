// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/norsu-alumni/logkeeper/internal/audit"
	"github.com/norsu-alumni/logkeeper/internal/export"
)

// auditRecordView adds the display fields list views show.
type auditRecordView struct {
	audit.Record
	EntityLabel    string `json:"entity_label"`
	ActorDisplay   string `json:"actor_display"`
	ChangesSummary string `json:"changes_summary"`
}

func newAuditRecordView(r *audit.Record) auditRecordView {
	return auditRecordView{
		Record:         *r,
		EntityLabel:    r.EntityLabel(),
		ActorDisplay:   r.ActorDisplay(),
		ChangesSummary: r.ChangesSummary(),
	}
}

// AuditFilters echoes the filters applied to a listing.
type AuditFilters struct {
	Action   string `json:"action"`
	App      string `json:"app"`
	Model    string `json:"model"`
	User     string `json:"user"`
	Search   string `json:"search"`
	DateFrom string `json:"date_from"`
	DateTo   string `json:"date_to"`
}

// AuditListResponse is the payload of GET /audit/.
type AuditListResponse struct {
	Records []auditRecordView `json:"records"`
	Facets  *audit.Facets     `json:"facets"`
	Filters AuditFilters      `json:"filters"`
}

// auditFilter reads the listing filters from the query string.
func (h *Handler) auditFilter(r *http.Request) (audit.Filter, AuditFilters) {
	q := r.URL.Query()
	echo := AuditFilters{
		Action:   q.Get("action"),
		App:      q.Get("app"),
		Model:    q.Get("model"),
		User:     q.Get("user"),
		Search:   strings.TrimSpace(q.Get("search")),
		DateFrom: q.Get("date_from"),
		DateTo:   q.Get("date_to"),
	}
	return audit.Filter{
		Action:    audit.Action(echo.Action),
		AppLabel:  echo.App,
		ModelName: echo.Model,
		Actor:     echo.User,
		Search:    echo.Search,
		DateFrom:  h.parseDate(r, "date_from"),
		DateTo:    h.parseDate(r, "date_to"),
	}, echo
}

// AuditList handles GET /audit/
func (h *Handler) AuditList(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	ctx := r.Context()
	filter, echo := h.auditFilter(r)

	facets, err := h.deps.Audit.Facets(ctx, filter)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	page := paginate(pageParam(r), audit.PageSize, facets.Total)
	records, err := h.deps.Audit.Query(ctx, filter.Page(page.Page))
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	views := make([]auditRecordView, 0, len(records))
	for i := range records {
		views = append(views, newAuditRecordView(&records[i]))
	}
	rw.SuccessWithPagination(AuditListResponse{Records: views, Facets: facets, Filters: echo}, page)
}

// AuditDetail handles GET /audit/{id}
func (h *Handler) AuditDetail(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	id, err := idParam(r, chi.URLParam(r, "id"))
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	rec, err := h.deps.Audit.Get(r.Context(), id)
	if errors.Is(err, audit.ErrNotFound) {
		rw.NotFound("Audit record not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(newAuditRecordView(rec))
}

// AuditExport handles GET /audit/export, streaming every matching record
// as CSV in batches.
func (h *Handler) AuditExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	filter, _ := h.auditFilter(r)

	// Fetch the first batch before committing to a CSV response so a store
	// failure can still be reported as JSON.
	filter.Limit = exportBatchSize
	batch, err := h.deps.Audit.Query(ctx, filter)
	if err != nil {
		NewResponseWriter(w, r).DatabaseError(err)
		return
	}

	h.attachment(w, "audit_logs_export")
	out, err := export.NewAuditCSV(w)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to write audit export header")
		return
	}
	for {
		if err := out.Write(batch); err != nil {
			h.logger.Error().Err(err).Msg("Failed to write audit export rows")
			return
		}
		if len(batch) < exportBatchSize {
			break
		}
		filter.Offset += exportBatchSize
		if batch, err = h.deps.Audit.Query(ctx, filter); err != nil {
			h.logger.Error().Err(err).Int("offset", filter.Offset).Msg("Audit export aborted")
			break
		}
	}
	if err := out.Flush(); err != nil {
		h.logger.Error().Err(err).Msg("Failed to flush audit export")
	}
}
