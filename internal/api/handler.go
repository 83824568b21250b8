// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/norsu-alumni/logkeeper/internal/audit"
	"github.com/norsu-alumni/logkeeper/internal/filelog"
	"github.com/norsu-alumni/logkeeper/internal/history"
	"github.com/norsu-alumni/logkeeper/internal/logging"
	"github.com/norsu-alumni/logkeeper/internal/retention"
	"github.com/norsu-alumni/logkeeper/internal/schedule"
	"github.com/norsu-alumni/logkeeper/internal/settings"
	"github.com/norsu-alumni/logkeeper/internal/validation"
)

// exportBatchSize is the page size used when streaming CSV exports.
const exportBatchSize = 1000

// Cleaner runs and previews cleanups.
//
// The interface is satisfied by *retention.Engine.
type Cleaner interface {
	ExecuteCleanup(ctx context.Context, t retention.Trigger) (*history.Operation, error)
	Plan(ctx context.Context) (*retention.Plan, error)
}

// StorageMeasurer re-measures the archive directory.
//
// The interface is satisfied by *storage.Governor.
type StorageMeasurer interface {
	Measure(ctx context.Context) (*settings.StorageConfig, error)
}

// ScheduleReader reports the next scheduled run.
//
// The interface is satisfied by *schedule.Scheduler.
type ScheduleReader interface {
	NextRunInfo(ctx context.Context) (*schedule.Info, error)
}

// Deps are the collaborators behind the admin endpoints.
type Deps struct {
	Audit    audit.Store
	History  history.Store
	Settings *settings.Service
	Files    *filelog.Source
	Cleaner  Cleaner
	Storage  StorageMeasurer
	Schedule ScheduleReader
	// Location interprets date filters and the cleanup schedule.
	Location *time.Location
}

// Handler serves the admin log surface.
type Handler struct {
	deps   Deps
	loc    *time.Location
	now    func() time.Time
	logger zerolog.Logger
}

// NewHandler creates a Handler. Every dependency is required.
func NewHandler(deps Deps) (*Handler, error) {
	switch {
	case deps.Audit == nil:
		return nil, errors.New("api: audit store is required")
	case deps.History == nil:
		return nil, errors.New("api: history store is required")
	case deps.Settings == nil:
		return nil, errors.New("api: settings service is required")
	case deps.Files == nil:
		return nil, errors.New("api: log source is required")
	case deps.Cleaner == nil:
		return nil, errors.New("api: cleaner is required")
	case deps.Storage == nil:
		return nil, errors.New("api: storage measurer is required")
	case deps.Schedule == nil:
		return nil, errors.New("api: schedule reader is required")
	}
	loc := deps.Location
	if loc == nil {
		loc = time.Local
	}
	return &Handler{
		deps:   deps,
		loc:    loc,
		now:    time.Now,
		logger: logging.WithComponent("api"),
	}, nil
}

// SetClock overrides the clock used for export file names and next_run.
func (h *Handler) SetClock(now func() time.Time) {
	h.now = now
}

// parseDate parses a YYYY-MM-DD query value. Invalid values are ignored.
func (h *Handler) parseDate(r *http.Request, key string) *time.Time {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, h.loc)
	if err != nil {
		return nil
	}
	return &t
}

// pageParam returns the 1-based page number; anything unparsable is page 1.
func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// idParam parses the {id} route parameter.
func idParam(r *http.Request, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

// attachment sets the headers of a CSV download named <prefix>_<ts>.csv.
func (h *Handler) attachment(w http.ResponseWriter, prefix string) {
	name := fmt.Sprintf("%s_%s.csv", prefix, h.now().In(h.loc).Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
}

// writeValidationError reports a failed validation as 400. Field errors
// from the validator carry their details; domain rule errors carry only
// the message.
func writeValidationError(rw *ResponseWriter, err error) {
	var verr *validation.RequestValidationError
	if errors.As(err, &verr) {
		apiErr := verr.ToAPIError()
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}
	rw.ValidationError(err.Error(), nil)
}
