// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

/*
Package storage measures the archive directory and gates archival on it.

The Governor walks the archive root, stores the measured size in the
archive storage config and classifies usage against the configured
warning and critical thresholds. Crossing detection is stateless: every
Check that observes a warning or critical level fires the corresponding
notifier signal.

The retention engine checks the Governor before exporting. At the critical
level exports are skipped while deletion continues.
*/
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/norsu-alumni/logkeeper/internal/logging"
	"github.com/norsu-alumni/logkeeper/internal/metrics"
	"github.com/norsu-alumni/logkeeper/internal/settings"
)

// bytesPerGB converts measured bytes to the GB unit stored in settings.
const bytesPerGB = 1024 * 1024 * 1024

// Signaler receives threshold crossings.
type Signaler interface {
	StorageWarning(ctx context.Context, c *settings.StorageConfig)
	StorageCritical(ctx context.Context, c *settings.StorageConfig)
}

// Governor measures archive usage and evaluates the storage thresholds.
type Governor struct {
	root     string
	settings *settings.Service
	signals  Signaler
	now      func() time.Time
}

// New creates a Governor for the archive root. signals may be nil.
func New(root string, svc *settings.Service, signals Signaler) *Governor {
	return &Governor{root: root, settings: svc, signals: signals, now: time.Now}
}

// SetClock overrides the clock used for last_size_check.
func (g *Governor) SetClock(now func() time.Time) {
	g.now = now
}

// Measure walks the archive root, persists the size and returns the
// updated config.
func (g *Governor) Measure(ctx context.Context) (*settings.StorageConfig, error) {
	cfg, err := g.settings.Storage(ctx)
	if err != nil {
		return nil, err
	}
	size, err := DirSize(ctx, g.root)
	if err != nil {
		return nil, err
	}

	now := g.now()
	cfg.CurrentSizeGB = float64(size) / bytesPerGB
	cfg.LastSizeCheck = &now
	if err := g.settings.SaveStorage(ctx, cfg); err != nil {
		return nil, fmt.Errorf("save storage size: %w", err)
	}
	metrics.UpdateStorageGauges(size, cfg.UsagePercent())

	logging.Debug().
		Str("root", g.root).
		Int64("bytes", size).
		Float64("usage_percent", cfg.UsagePercent()).
		Msg("Archive storage measured")
	return cfg, nil
}

// Check measures the archive and classifies usage. On error it returns
// StorageNormal with the error so callers can proceed with archival.
func (g *Governor) Check(ctx context.Context) (settings.StorageStatus, error) {
	cfg, err := g.Measure(ctx)
	if err != nil {
		return settings.StorageNormal, fmt.Errorf("check archive storage: %w", err)
	}

	status := cfg.Status()
	if g.signals != nil {
		switch status {
		case settings.StorageCritical:
			g.signals.StorageCritical(ctx, cfg)
		case settings.StorageWarning:
			g.signals.StorageWarning(ctx, cfg)
		}
	}
	return status, nil
}

// DirSize sums the sizes of the regular files under root. Entries that
// cannot be read are skipped, and a missing root measures zero.
func DirSize(ctx context.Context, root string) (int64, error) {
	if _, err := os.Stat(root); errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}

	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Skipping unreadable archive entry")
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("walk %s: %w", root, err)
	}
	return total, nil
}
