// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

// Package export writes audit records and file-log entries to CSV and PDF.
//
// Archives land under <root>/<archive_path>/<YYYY>/<MM>/ with names of the
// form logs_archive_<type>_<YYYYMMDD>_<HHMMSS><suffix>.<ext>.
package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/norsu-alumni/logkeeper/internal/audit"
	"github.com/norsu-alumni/logkeeper/internal/filelog"
	"github.com/norsu-alumni/logkeeper/internal/logging"
	"github.com/norsu-alumni/logkeeper/internal/metrics"
	"github.com/norsu-alumni/logkeeper/internal/settings"
)

// Exporter writes archive artifacts under a root directory.
type Exporter struct {
	root   string
	header PageHeader
	banner string
	now    func() time.Time

	uncompressed bool
}

// New creates an Exporter. header may be nil for a text-only banner.
func New(root string, header PageHeader, banner string) *Exporter {
	return &Exporter{root: root, header: header, banner: banner, now: time.Now}
}

// SetClock overrides the clock used for file names and export dates.
func (e *Exporter) SetClock(now func() time.Time) {
	e.now = now
}

// Root returns the archive root directory.
func (e *Exporter) Root() string {
	return e.root
}

// ArchivePath builds the artifact path for one export and creates its
// directory.
func (e *Exporter) ArchivePath(sub string, logType settings.LogType, now time.Time, suffix, ext string) (string, error) {
	if !filepath.IsLocal(sub) {
		return "", fmt.Errorf("archive path %q must be relative to the archive root", sub)
	}
	dir := filepath.Join(e.root, sub, now.Format("2006"), now.Format("01"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive directory: %w", err)
	}
	name := fmt.Sprintf("logs_archive_%s_%s%s.%s", logType, now.Format("20060102_150405"), suffix, ext)
	return filepath.Join(dir, name), nil
}

// FileSuffix is the archive name suffix for a log file, e.g. "_errors".
func FileSuffix(name string) string {
	return "_" + strings.TrimSuffix(filepath.Base(name), ".log")
}

func (e *Exporter) pdfOptions(now time.Time) PDFOptions {
	return PDFOptions{Header: e.header, Banner: e.banner, Now: now, uncompressed: e.uncompressed}
}

// ExportAudit archives records in the formats selected by p. It returns
// every path written, including those written before a failure.
func (e *Exporter) ExportAudit(records []audit.Record, p *settings.RetentionPolicy) ([]string, error) {
	now := e.now()
	var written []string
	if p.ExportFormat.CSV() {
		path, err := e.writeArtifact(p, now, "", "csv", func(w io.Writer) error {
			return WriteAuditCSV(w, records)
		})
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if p.ExportFormat.PDF() {
		path, err := e.writeArtifact(p, now, "", "pdf", func(w io.Writer) error {
			return WriteAuditPDF(w, records, e.pdfOptions(now))
		})
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// ExportFileLog archives expired blocks of one log file.
func (e *Exporter) ExportFileLog(source string, blocks []filelog.Block, p *settings.RetentionPolicy) ([]string, error) {
	now := e.now()
	suffix := FileSuffix(source)
	var written []string
	if p.ExportFormat.CSV() {
		path, err := e.writeArtifact(p, now, suffix, "csv", func(w io.Writer) error {
			return WriteFileLogCSV(w, source, blocks)
		})
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	if p.ExportFormat.PDF() {
		entries := make([]string, len(blocks))
		for i, b := range blocks {
			entries[i] = b.Text()
		}
		path, err := e.writeArtifact(p, now, suffix, "pdf", func(w io.Writer) error {
			return WriteFileLogPDF(w, source, entries, e.pdfOptions(now))
		})
		if err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

// writeArtifact creates the file, fills it, and removes it again on error.
func (e *Exporter) writeArtifact(p *settings.RetentionPolicy, now time.Time, suffix, ext string, fill func(io.Writer) error) (string, error) {
	path, err := e.ArchivePath(p.ArchivePath, p.LogType, now, suffix, ext)
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	if err := fill(f); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write %s archive: %w", ext, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close %s: %w", path, err)
	}

	metrics.RecordArchive(ext)
	logging.Info().
		Str("path", path).
		Str("log_type", string(p.LogType)).
		Msg("Archive written")
	return path, nil
}
