// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"

	"github.com/norsu-alumni/logkeeper/internal/logging"
)

func TestResponseWriter_Success(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	r = r.WithContext(logging.ContextWithRequestID(r.Context(), "req-42"))

	NewResponseWriter(w, r).SuccessMessage("saved", map[string]string{"status": "ok"})

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}

	var response APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if !response.Success || response.Message != "saved" {
		t.Errorf("response = %+v", response)
	}
	if response.Error != nil {
		t.Error("Expected Error to be nil")
	}
	if response.Meta == nil || response.Meta.Timestamp.IsZero() {
		t.Fatal("Expected Meta with a timestamp")
	}
	if response.Meta.RequestID != "req-42" {
		t.Errorf("RequestID = %q, want req-42", response.Meta.RequestID)
	}
}

func TestResponseWriter_SuccessWithPagination(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)

	NewResponseWriter(w, r).SuccessWithPagination([]string{"a", "b"}, paginate(2, 2, 5))

	var response APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response.Meta == nil || response.Meta.Pagination == nil {
		t.Fatal("Expected pagination metadata")
	}
	p := response.Meta.Pagination
	if p.Total != 5 || p.TotalPages != 3 || !p.HasNext || !p.HasPrevious {
		t.Errorf("pagination = %+v", p)
	}
}

func TestPaginate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		page     int
		size     int
		total    int64
		wantPage int
		wantAll  int
		wantNext bool
		wantPrev bool
	}{
		{"first page", 1, 50, 120, 1, 3, true, false},
		{"middle page", 2, 50, 120, 2, 3, true, true},
		{"last page", 3, 50, 120, 3, 3, false, true},
		{"past the end", 9, 50, 120, 3, 3, false, true},
		{"zero page", 0, 50, 120, 1, 3, true, false},
		{"negative page", -4, 50, 120, 1, 3, true, false},
		{"empty", 1, 50, 0, 1, 1, false, false},
		{"exact fit", 2, 50, 100, 2, 2, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := paginate(tt.page, tt.size, tt.total)
			if p.Page != tt.wantPage || p.TotalPages != tt.wantAll || p.HasNext != tt.wantNext || p.HasPrevious != tt.wantPrev {
				t.Errorf("paginate(%d, %d, %d) = %+v", tt.page, tt.size, tt.total, p)
			}
		})
	}
}

func TestResponseWriter_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		write      func(rw *ResponseWriter)
		wantStatus int
		wantCode   string
	}{
		{"bad request", func(rw *ResponseWriter) { rw.BadRequest("bad") }, http.StatusBadRequest, ErrCodeBadRequest},
		{"not found", func(rw *ResponseWriter) { rw.NotFound("missing") }, http.StatusNotFound, ErrCodeNotFound},
		{"conflict", func(rw *ResponseWriter) { rw.Conflict("busy") }, http.StatusConflict, ErrCodeConflict},
		{"internal", func(rw *ResponseWriter) { rw.InternalError("boom") }, http.StatusInternalServerError, ErrCodeInternalError},
		{"validation", func(rw *ResponseWriter) { rw.ValidationError("invalid", []string{"retention_days"}) }, http.StatusBadRequest, ErrCodeValidationFailed},
		{"database", func(rw *ResponseWriter) { rw.DatabaseError(errors.New("db closed")) }, http.StatusInternalServerError, ErrCodeDatabaseError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/test", nil)
			tt.write(NewResponseWriter(w, r))

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var response APIResponse
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				t.Fatalf("Failed to unmarshal response: %v", err)
			}
			if response.Success || response.Message == "" {
				t.Errorf("response = %+v", response)
			}
			if response.Error == nil || response.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %s", response.Error, tt.wantCode)
			}
		})
	}
}

func TestResponseWriter_DatabaseErrorHidesCause(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/test", nil)
	NewResponseWriter(w, r).DatabaseError(errors.New("password=hunter2"))

	var response APIResponse
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if response.Message != "A database error occurred" {
		t.Errorf("Message = %q", response.Message)
	}
}

func TestResponseWriter_JSON(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/test", nil)
	NewResponseWriter(w, r).JSON(http.StatusAccepted, CleanupResponse{Success: true, Message: "ok", OperationID: 3})

	if w.Code != http.StatusAccepted {
		t.Errorf("status = %d", w.Code)
	}
	var got map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("Failed to unmarshal response: %v", err)
	}
	if _, wrapped := got["data"]; wrapped {
		t.Error("JSON should not wrap the payload in the envelope")
	}
	if got["operation_id"] != float64(3) {
		t.Errorf("operation_id = %v", got["operation_id"])
	}
}
