// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package filelog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Levels are the log levels the host logger emits, in severity order.
var Levels = []string{"DEBUG", "INFO", "WARNING", "ERROR", "CRITICAL"}

var (
	// LEVEL YYYY-MM-DD HH:MM:SS[,mmm] MODULE MESSAGE
	entryPattern = regexp.MustCompile(`^(\w+)\s+(\d{4}-\d{2}-\d{2})\s+(\d{2}:\d{2}:\d{2}(?:,\d+)?)\s+(\S+)\s+(.+)$`)
	levelPattern = regexp.MustCompile(`^(DEBUG|INFO|WARNING|ERROR|CRITICAL)`)
)

// Entry is one parsed log line as shown in the viewer.
type Entry struct {
	Level   string     `json:"level"`
	Date    *time.Time `json:"date"`
	Module  string     `json:"module"`
	Message string     `json:"message"`
	Raw     string     `json:"raw"`
}

// App returns the first dotted segment of the module.
func (e *Entry) App() string {
	app, _, _ := strings.Cut(e.Module, ".")
	return app
}

// ParseEntry parses one trimmed log line. Lines that match neither the full
// format nor a leading level are rejected.
func ParseEntry(line string, loc *time.Location) (Entry, bool) {
	if m := entryPattern.FindStringSubmatch(line); m != nil {
		e := Entry{Level: m[1], Module: m[4], Message: m[5], Raw: line}
		clock, _, _ := strings.Cut(m[3], ",")
		if ts, err := time.ParseInLocation("2006-01-02 15:04:05", m[2]+" "+clock, loc); err == nil {
			e.Date = &ts
		}
		return e, true
	}
	if m := levelPattern.FindString(line); m != "" {
		return Entry{
			Level:   m,
			Module:  "unknown",
			Message: strings.TrimSpace(line[len(m):]),
			Raw:     line,
		}, true
	}
	return Entry{}, false
}

// EntryFilter narrows the viewer listing. Zero values mean "no constraint".
// Date bounds are inclusive calendar days and skip entries without a date.
type EntryFilter struct {
	Level    string
	App      string
	Search   string
	DateFrom *time.Time
	DateTo   *time.Time
}

// Matches reports whether e passes the filter.
func (f *EntryFilter) Matches(e *Entry) bool {
	if f.Level != "" && e.Level != f.Level {
		return false
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(e.Message), strings.ToLower(f.Search)) {
		return false
	}
	if e.Date != nil {
		day := civilDay(*e.Date)
		if f.DateFrom != nil && day.Before(civilDay(*f.DateFrom)) {
			return false
		}
		if f.DateTo != nil && day.After(civilDay(*f.DateTo)) {
			return false
		}
	}
	if f.App != "" && !strings.HasPrefix(e.Module, f.App) {
		return false
	}
	return true
}

func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EntryResult is a filtered listing of one log file.
type EntryResult struct {
	// Entries are the matching entries, newest first.
	Entries     []Entry        `json:"entries"`
	LevelCounts map[string]int `json:"level_counts"`
	AppCounts   map[string]int `json:"app_counts"`
	// AvailableApps spans every parseable entry, not just the matches.
	AvailableApps []string `json:"available_apps"`
}

// Entries reads and filters a configured log file. A missing file yields an
// empty result.
func (s *Source) Entries(name string, f EntryFilter) (*EntryResult, error) {
	path, err := s.Resolve(name)
	if err != nil {
		return nil, err
	}
	res := &EntryResult{
		Entries:       []Entry{},
		LevelCounts:   make(map[string]int),
		AppCounts:     make(map[string]int),
		AvailableApps: []string{},
	}

	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	apps := make(map[string]struct{})
	br := bufio.NewReader(file)
	for {
		raw, readErr := br.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, fmt.Errorf("read %s: %w", path, readErr)
		}
		if line := strings.TrimSpace(raw); line != "" {
			if e, ok := ParseEntry(line, s.Location); ok {
				apps[e.App()] = struct{}{}
				if f.Matches(&e) {
					res.Entries = append(res.Entries, e)
					res.LevelCounts[e.Level]++
					res.AppCounts[e.App()]++
				}
			}
		}
		if readErr != nil {
			break
		}
	}

	for i, j := 0, len(res.Entries)-1; i < j; i, j = i+1, j-1 {
		res.Entries[i], res.Entries[j] = res.Entries[j], res.Entries[i]
	}
	for app := range apps {
		res.AvailableApps = append(res.AvailableApps, app)
	}
	sort.Strings(res.AvailableApps)
	return res, nil
}
