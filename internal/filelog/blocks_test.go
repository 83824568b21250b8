// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package filelog

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

const sampleLog = "preamble without a timestamp\n" +
	"INFO 2025-01-01 08:00:00,123 alumni.views Profile viewed\n" +
	"ERROR 2025-01-02 09:30:00,000 events.tasks Reminder failed\n" +
	"Traceback (most recent call last):\n" +
	"  File \"tasks.py\", line 42\n" +
	"[2025-03-01 10:00:00] WARNING cms.pages Slow render\n" +
	"INFO 2025-03-05 11:00:00 jobs.api Listing created" // no trailing newline

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("PHT", 8*3600)
	tests := []struct {
		name string
		line string
		want time.Time
		ok   bool
	}{
		{"level prefix", "INFO 2025-01-01 08:00:00 x y", time.Date(2025, 1, 1, 8, 0, 0, 0, loc), true},
		{"milliseconds", "INFO 2025-01-01 08:00:00,250 x y", time.Date(2025, 1, 1, 8, 0, 0, 250_000_000, loc), true},
		{"bracketed", "[2025-02-03 04:05:06] msg", time.Date(2025, 2, 3, 4, 5, 6, 0, loc), true},
		{"mid line", "worker-3 | 2025-02-03 04:05:06 started", time.Date(2025, 2, 3, 4, 5, 6, 0, loc), true},
		{"invalid date", "2025-13-40 25:00:00 nope", time.Time{}, false},
		{"no timestamp", "  at line 42", time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseTimestamp([]byte(tt.line), loc)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSplitBlocks_RoundTrip(t *testing.T) {
	t.Parallel()

	blocks, err := SplitBlocks(strings.NewReader(sampleLog), time.UTC)
	if err != nil {
		t.Fatalf("SplitBlocks: %v", err)
	}
	if len(blocks) != 5 {
		t.Fatalf("got %d blocks, want 5", len(blocks))
	}
	if blocks[0].HasTimestamp() {
		t.Error("preamble block should have no timestamp")
	}
	if !strings.HasSuffix(blocks[2].Text(), "line 42") {
		t.Errorf("traceback not attached to its entry: %q", blocks[2].Text())
	}
	if got := Join(blocks); !bytes.Equal(got, []byte(sampleLog)) {
		t.Errorf("Join(SplitBlocks(x)) != x\n got: %q\nwant: %q", got, sampleLog)
	}
}

func TestSplitBlocks_Empty(t *testing.T) {
	t.Parallel()

	blocks, err := SplitBlocks(strings.NewReader(""), time.UTC)
	if err != nil {
		t.Fatalf("SplitBlocks: %v", err)
	}
	if len(blocks) != 0 {
		t.Errorf("got %d blocks, want 0", len(blocks))
	}
}

func TestPartition(t *testing.T) {
	t.Parallel()

	blocks, err := SplitBlocks(strings.NewReader(sampleLog), time.UTC)
	if err != nil {
		t.Fatalf("SplitBlocks: %v", err)
	}

	// An entry stamped exactly at the cutoff is kept.
	cutoff := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	old, kept := Partition(blocks, cutoff)
	if len(old) != 2 {
		t.Fatalf("old = %d blocks, want 2", len(old))
	}
	if len(kept) != 3 {
		t.Fatalf("kept = %d blocks, want 3", len(kept))
	}
	if kept[0].HasTimestamp() {
		t.Error("untimestamped preamble should be kept first")
	}
	if !kept[1].Timestamp.Equal(cutoff) {
		t.Errorf("kept[1] = %v, want the cutoff entry", kept[1].Timestamp)
	}
	if got := len(Join(old)) + len(Join(kept)); got != len(sampleLog) {
		t.Errorf("partition lost bytes: %d of %d", got, len(sampleLog))
	}
}
