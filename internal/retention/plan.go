// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package retention

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/norsu-alumni/logkeeper/internal/filelog"
	"github.com/norsu-alumni/logkeeper/internal/settings"
)

// Plan is a dry run of the next cleanup.
type Plan struct {
	GeneratedAt   time.Time              `json:"generated_at"`
	StorageStatus settings.StorageStatus `json:"storage_status"`
	ExportEnabled bool                   `json:"export_enabled"`
	Policies      []PolicyPlan           `json:"policies"`
}

// PolicyPlan describes what one policy would process.
type PolicyPlan struct {
	LogType            settings.LogType      `json:"log_type"`
	Enabled            bool                  `json:"enabled"`
	RetentionDays      int                   `json:"retention_days"`
	Cutoff             time.Time             `json:"cutoff"`
	Eligible           int64                 `json:"eligible"`
	ExportBeforeDelete bool                  `json:"export_before_delete"`
	ExportFormat       settings.ExportFormat `json:"export_format"`
	Files              []FilePlan            `json:"files,omitempty"`
}

// FilePlan describes the expired entries of one log file.
type FilePlan struct {
	Name     string `json:"name"`
	Exists   bool   `json:"exists"`
	Eligible int    `json:"eligible"`
}

// Plan reports, per policy, how many records or entries a cleanup run now
// would process. Disabled policies are listed with zero counts. Storage is
// classified from the last measurement. Nothing is written or deleted.
func (e *Engine) Plan(ctx context.Context) (*Plan, error) {
	now := e.now()
	plan := &Plan{GeneratedAt: now, StorageStatus: settings.StorageNormal, ExportEnabled: true}

	storage, err := e.deps.Settings.Storage(ctx)
	if err != nil {
		return nil, err
	}
	plan.StorageStatus = storage.Status()
	plan.ExportEnabled = plan.StorageStatus != settings.StorageCritical

	policies, err := e.deps.Settings.Policies(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range policies {
		pp := PolicyPlan{
			LogType:            p.LogType,
			Enabled:            p.Enabled,
			RetentionDays:      p.RetentionDays,
			Cutoff:             p.Cutoff(now),
			ExportBeforeDelete: p.ExportBeforeDelete,
			ExportFormat:       p.ExportFormat,
		}
		if p.Enabled {
			switch p.LogType {
			case settings.LogTypeAudit:
				n, err := e.deps.Audit.CountBefore(ctx, pp.Cutoff)
				if err != nil {
					return nil, fmt.Errorf("count expired audit records: %w", err)
				}
				pp.Eligible = n
			case settings.LogTypeFile:
				files, err := e.planFiles(pp.Cutoff)
				if err != nil {
					return nil, err
				}
				pp.Files = files
				for _, f := range files {
					pp.Eligible += int64(f.Eligible)
				}
			}
		}
		plan.Policies = append(plan.Policies, pp)
	}
	return plan, nil
}

func (e *Engine) planFiles(cutoff time.Time) ([]FilePlan, error) {
	out := make([]FilePlan, 0, len(e.deps.Files.Files))
	for _, name := range e.deps.Files.Files {
		path, err := e.deps.Files.Resolve(name)
		if err != nil {
			return nil, err
		}
		fp := FilePlan{Name: name}
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			out = append(out, fp)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", name, err)
		}
		blocks, err := filelog.SplitBlocks(f, e.deps.Files.Location)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		old, _ := filelog.Partition(blocks, cutoff)
		fp.Exists = true
		fp.Eligible = len(old)
		out = append(out, fp)
	}
	return out, nil
}
