// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package schedule

import (
	"time"

	"github.com/norsu-alumni/logkeeper/internal/settings"
)

// NextRun computes the next execution of s strictly after now. The
// execution time is interpreted in now's location. A schedule whose
// execution time cannot be parsed, or whose frequency is unknown, runs
// 24 hours from now.
func NextRun(s *settings.CleanupSchedule, now time.Time) time.Time {
	hour, minute, err := s.Clock()
	if err != nil {
		return now.Add(24 * time.Hour)
	}
	at := func(year int, month time.Month, day int) time.Time {
		return time.Date(year, month, day, hour, minute, 0, 0, now.Location())
	}

	switch s.Frequency {
	case settings.Daily:
		next := at(now.Year(), now.Month(), now.Day())
		if !next.After(now) {
			next = at(now.Year(), now.Month(), now.Day()+1)
		}
		return next

	case settings.Weekly:
		if s.DayOfWeek == nil {
			return now.Add(24 * time.Hour)
		}
		daysAhead := *s.DayOfWeek - mondayIndex(now.Weekday())
		if daysAhead < 0 {
			daysAhead += 7
		}
		next := at(now.Year(), now.Month(), now.Day()+daysAhead)
		if !next.After(now) {
			next = at(now.Year(), now.Month(), now.Day()+daysAhead+7)
		}
		return next

	case settings.Monthly:
		if s.DayOfMonth == nil {
			return now.Add(24 * time.Hour)
		}
		day := *s.DayOfMonth
		next := at(now.Year(), now.Month(), day)
		if next.Day() != day || !next.After(now) {
			// time.Date normalizes the month overflow
			next = at(now.Year(), now.Month()+1, day)
		}
		return next

	default:
		return now.Add(24 * time.Hour)
	}
}

// mondayIndex maps time.Weekday (Sunday=0) to 0=Monday through 6=Sunday.
func mondayIndex(wd time.Weekday) int {
	return (int(wd) + 6) % 7
}
