// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

// Package filelog reads and rewrites the alumni system's text log files.
//
// The files are append-only for the host logger. The query surface only
// reads them; the retention engine splits them into timestamped blocks,
// archives the expired blocks and rewrites the file with the rest.
package filelog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Known log files written by the host application.
const (
	MainLog  = "alumni_system.log"
	ErrorLog = "errors.log"
)

// DefaultFiles lists the files managed when none are configured.
var DefaultFiles = []string{MainLog, ErrorLog}

// ErrUnknownFile is returned for a log name outside the configured set.
var ErrUnknownFile = errors.New("unknown log file")

// Source is the set of log files under one directory.
type Source struct {
	Dir   string
	Files []string
	// Location interprets the naive timestamps the host logger writes.
	Location *time.Location
}

// NewSource creates a source, falling back to DefaultFiles and time.Local.
func NewSource(dir string, files []string, loc *time.Location) *Source {
	if len(files) == 0 {
		files = DefaultFiles
	}
	if loc == nil {
		loc = time.Local
	}
	return &Source{Dir: dir, Files: files, Location: loc}
}

// FileInfo describes one managed log file.
type FileInfo struct {
	Name     string    `json:"name"`
	Path     string    `json:"path"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Exists   bool      `json:"exists"`
}

// Default returns the first configured file, used when a request names none.
func (s *Source) Default() string {
	return s.Files[0]
}

// Resolve maps a configured log name to its path. Only names in Files are
// accepted, so a request cannot reach outside the log directory.
func (s *Source) Resolve(name string) (string, error) {
	for _, f := range s.Files {
		if f == name {
			return filepath.Join(s.Dir, f), nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFile, name)
}

// Stat describes a configured log file. A missing file is not an error.
func (s *Source) Stat(name string) (FileInfo, error) {
	path, err := s.Resolve(name)
	if err != nil {
		return FileInfo{}, err
	}
	info := FileInfo{Name: name, Path: path}
	st, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return info, nil
	}
	if err != nil {
		return info, fmt.Errorf("stat %s: %w", path, err)
	}
	info.Size = st.Size()
	info.Modified = st.ModTime()
	info.Exists = true
	return info, nil
}

// List describes every configured log file in order.
func (s *Source) List() []FileInfo {
	out := make([]FileInfo, 0, len(s.Files))
	for _, name := range s.Files {
		info, err := s.Stat(name)
		if err != nil {
			info = FileInfo{Name: name, Path: filepath.Join(s.Dir, name)}
		}
		out = append(out, info)
	}
	return out
}

// Clear rotates a log file aside as <stem>.<YYYYMMDD_HHMMSS>.bak and leaves
// an empty file in its place. It returns the rotated path.
func (s *Source) Clear(name string, now time.Time) (string, error) {
	path, err := s.Resolve(name)
	if err != nil {
		return "", err
	}
	st, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("log file %s: %w", name, err)
	}
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	rotated := fmt.Sprintf("%s.%s.bak", stem, now.Format("20060102_150405"))
	if err := os.Rename(path, rotated); err != nil {
		return "", fmt.Errorf("rotate %s: %w", name, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, st.Mode().Perm())
	if err != nil {
		return rotated, fmt.Errorf("recreate %s: %w", name, err)
	}
	return rotated, f.Close()
}
