// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package api

import (
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/goccy/go-json"

	"github.com/norsu-alumni/logkeeper/internal/export"
	"github.com/norsu-alumni/logkeeper/internal/filelog"
	"github.com/norsu-alumni/logkeeper/internal/validation"
)

// entriesPageSize is the number of parsed log lines per page.
const entriesPageSize = 50

// FileFilters echoes the filters applied to a file listing.
type FileFilters struct {
	LogFile  string `json:"log_file"`
	Level    string `json:"level"`
	App      string `json:"app"`
	Search   string `json:"search"`
	DateFrom string `json:"date_from"`
	DateTo   string `json:"date_to"`
}

// FileListResponse is the payload of GET /file/.
type FileListResponse struct {
	Entries       []filelog.Entry    `json:"entries"`
	TotalEntries  int                `json:"total_entries"`
	LevelCounts   map[string]int     `json:"level_counts"`
	AppCounts     map[string]int     `json:"app_counts"`
	AvailableApps []string           `json:"available_apps"`
	LogLevels     []string           `json:"log_levels"`
	LogFiles      []filelog.FileInfo `json:"log_files"`
	Filters       FileFilters        `json:"filters"`
}

// entryFilter reads the file filters from the query string. An absent
// log_file selects the main log.
func (h *Handler) entryFilter(r *http.Request) (string, filelog.EntryFilter, FileFilters) {
	q := r.URL.Query()
	echo := FileFilters{
		LogFile:  q.Get("log_file"),
		Level:    q.Get("level"),
		App:      q.Get("app"),
		Search:   strings.TrimSpace(q.Get("search")),
		DateFrom: q.Get("date_from"),
		DateTo:   q.Get("date_to"),
	}
	if echo.LogFile == "" {
		echo.LogFile = h.deps.Files.Default()
	}
	return echo.LogFile, filelog.EntryFilter{
		Level:    echo.Level,
		App:      echo.App,
		Search:   echo.Search,
		DateFrom: h.parseDate(r, "date_from"),
		DateTo:   h.parseDate(r, "date_to"),
	}, echo
}

// FileList handles GET /file/
func (h *Handler) FileList(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	name, filter, echo := h.entryFilter(r)

	res, err := h.deps.Files.Entries(name, filter)
	if errors.Is(err, filelog.ErrUnknownFile) {
		rw.BadRequest(err.Error())
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("log_file", name).Msg("Failed to read log file")
		rw.InternalError("Failed to read log file")
		return
	}

	page := paginate(pageParam(r), entriesPageSize, int64(len(res.Entries)))
	start := (page.Page - 1) * entriesPageSize
	end := min(start+entriesPageSize, len(res.Entries))

	rw.SuccessWithPagination(FileListResponse{
		Entries:       res.Entries[start:end],
		TotalEntries:  len(res.Entries),
		LevelCounts:   res.LevelCounts,
		AppCounts:     res.AppCounts,
		AvailableApps: res.AvailableApps,
		LogLevels:     filelog.Levels,
		LogFiles:      h.deps.Files.List(),
		Filters:       echo,
	}, page)
}

// FileExport handles GET /export
func (h *Handler) FileExport(w http.ResponseWriter, r *http.Request) {
	name, filter, _ := h.entryFilter(r)

	res, err := h.deps.Files.Entries(name, filter)
	if errors.Is(err, filelog.ErrUnknownFile) {
		NewResponseWriter(w, r).BadRequest(err.Error())
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("log_file", name).Msg("Error exporting logs")
		NewResponseWriter(w, r).InternalError("Failed to read log file")
		return
	}

	// Exports list entries oldest first, the order they appear in the file.
	entries := make([]filelog.Entry, len(res.Entries))
	for i, e := range res.Entries {
		entries[len(entries)-1-i] = e
	}

	h.attachment(w, "logs_export")
	if err := export.WriteEntriesCSV(w, entries); err != nil {
		h.logger.Error().Err(err).Msg("Failed to write log export")
	}
}

type clearRequest struct {
	LogFile string `json:"log_file" validate:"required"`
}

// ClearLog handles POST /clear, rotating the named log file aside.
func (h *Handler) ClearLog(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	var req clearRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rw.BadRequest("Invalid request body")
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		writeValidationError(rw, verr)
		return
	}

	rotated, err := h.deps.Files.Clear(req.LogFile, h.now().In(h.loc))
	switch {
	case errors.Is(err, filelog.ErrUnknownFile):
		rw.BadRequest(err.Error())
		return
	case errors.Is(err, os.ErrNotExist):
		rw.NotFound("Log file not found")
		return
	case err != nil:
		h.logger.Error().Err(err).Str("log_file", req.LogFile).Msg("Failed to clear log file")
		rw.InternalError(err.Error())
		return
	}
	h.logger.Info().Str("log_file", req.LogFile).Str("rotated", rotated).Msg("Log file cleared")
	rw.SuccessMessage("Log file cleared successfully", map[string]string{"rotated_to": rotated})
}
