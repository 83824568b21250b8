// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// NewFileLogger returns a JSON logger appending to path, creating parent
// directories as needed. The returned closer releases the file handle.
//
// Components whose failures must never reach the caller (the mutation
// interceptor) write to a dedicated file so the errors survive even when
// the process log is discarded.
func NewFileLogger(path, component string) (zerolog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	logger := zerolog.New(f).With().Timestamp().Str("component", component).Logger()
	return logger, f, nil
}
