// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package filelog

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"regexp"
	"strings"
	"time"
)

// timestampPattern finds the first "YYYY-MM-DD HH:MM:SS[,mmm]" on a line,
// bracketed or not.
var timestampPattern = regexp.MustCompile(`\[?(\d{4}-\d{2}-\d{2})\s+(\d{2}:\d{2}:\d{2})(?:,(\d{1,6}))?\]?`)

// Block is one logical log entry: a timestamped line and its continuation
// lines (tracebacks, wrapped messages), with the original bytes intact.
type Block struct {
	// Timestamp is zero for lines that precede the first timestamped line.
	Timestamp time.Time
	Data      []byte
}

// HasTimestamp reports whether the block started with a timestamped line.
func (b Block) HasTimestamp() bool {
	return !b.Timestamp.IsZero()
}

// Text returns the block content with trailing whitespace removed.
func (b Block) Text() string {
	return strings.TrimRight(string(b.Data), " \t\r\n")
}

// ParseTimestamp extracts the first valid timestamp from line, interpreting
// it in loc.
func ParseTimestamp(line []byte, loc *time.Location) (time.Time, bool) {
	m := timestampPattern.FindSubmatch(line)
	if m == nil {
		return time.Time{}, false
	}
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", string(m[1])+" "+string(m[2]), loc)
	if err != nil {
		return time.Time{}, false
	}
	if frac := m[3]; len(frac) > 0 {
		ns := 0
		for _, d := range frac {
			ns = ns*10 + int(d-'0')
		}
		for i := len(frac); i < 9; i++ {
			ns *= 10
		}
		ts = ts.Add(time.Duration(ns))
	}
	return ts, true
}

// SplitBlocks splits r into blocks. Concatenating Data of the result
// reproduces the input byte for byte.
func SplitBlocks(r io.Reader, loc *time.Location) ([]Block, error) {
	br := bufio.NewReader(r)
	var blocks []Block
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			if ts, ok := ParseTimestamp(line, loc); ok {
				blocks = append(blocks, Block{Timestamp: ts})
			} else if len(blocks) == 0 {
				blocks = append(blocks, Block{})
			}
			last := &blocks[len(blocks)-1]
			last.Data = append(last.Data, line...)
		}
		if errors.Is(err, io.EOF) {
			return blocks, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// Partition splits blocks into those strictly older than cutoff and the
// rest, preserving order. Blocks without a timestamp are always kept.
func Partition(blocks []Block, cutoff time.Time) (old, kept []Block) {
	for _, b := range blocks {
		if b.HasTimestamp() && b.Timestamp.Before(cutoff) {
			old = append(old, b)
		} else {
			kept = append(kept, b)
		}
	}
	return old, kept
}

// Join concatenates block data.
func Join(blocks []Block) []byte {
	var buf bytes.Buffer
	for _, b := range blocks {
		buf.Write(b.Data)
	}
	return buf.Bytes()
}
