// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

// Package app assembles logkeeper's components from configuration. Both
// the server and the logctl CLI build the same App.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/norsu-alumni/logkeeper/internal/api"
	"github.com/norsu-alumni/logkeeper/internal/audit"
	"github.com/norsu-alumni/logkeeper/internal/config"
	"github.com/norsu-alumni/logkeeper/internal/database"
	"github.com/norsu-alumni/logkeeper/internal/export"
	"github.com/norsu-alumni/logkeeper/internal/filelog"
	"github.com/norsu-alumni/logkeeper/internal/history"
	"github.com/norsu-alumni/logkeeper/internal/interceptor"
	"github.com/norsu-alumni/logkeeper/internal/logging"
	"github.com/norsu-alumni/logkeeper/internal/middleware"
	"github.com/norsu-alumni/logkeeper/internal/notify"
	"github.com/norsu-alumni/logkeeper/internal/retention"
	"github.com/norsu-alumni/logkeeper/internal/schedule"
	"github.com/norsu-alumni/logkeeper/internal/settings"
	"github.com/norsu-alumni/logkeeper/internal/storage"
)

// App holds the wired components. Close releases the stores.
type App struct {
	Config      *config.Config
	Location    *time.Location
	DB          *database.DB
	Audit       *audit.DuckDBStore
	History     *history.DuckDBStore
	Registry    *interceptor.Registry
	Interceptor *interceptor.Interceptor
	Settings    *settings.Service
	Files       *filelog.Source
	Exporter    *export.Exporter
	Notifier    *notify.Notifier
	Governor    *storage.Governor
	Engine      *retention.Engine
	Scheduler   *schedule.Scheduler

	badger  *badger.DB
	closers []io.Closer
}

// InitLogging applies the logging section to the global logger.
func InitLogging(cfg *config.LoggingConfig) {
	logging.Init(logging.Config{
		Level:     cfg.Level,
		Format:    cfg.Format,
		Caller:    cfg.Caller,
		Timestamp: true,
	})
}

// New opens the stores and builds every component. On error everything
// opened so far is closed.
func New(ctx context.Context, cfg *config.Config) (_ *App, err error) {
	a := &App{Config: cfg}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if a.Location, err = config.Location(cfg.Schedule.Timezone); err != nil {
		return nil, fmt.Errorf("schedule timezone: %w", err)
	}
	logLoc, err := config.Location(cfg.Logs.Timezone)
	if err != nil {
		return nil, fmt.Errorf("log timezone: %w", err)
	}

	if a.DB, err = database.Open(&cfg.Database); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.DB)
	a.Audit = audit.NewDuckDBStore(a.DB.Conn())
	a.History = history.NewDuckDBStore(a.DB.Conn())
	if err = a.DB.Migrate(ctx, a.Audit, a.History); err != nil {
		return nil, err
	}

	if a.badger, err = settings.OpenBadger(&cfg.Settings); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.badger)

	a.Registry = interceptor.NewRegistry()
	if err = a.buildInterceptor(); err != nil {
		return nil, err
	}
	a.Settings = settings.NewService(settings.NewBadgerStore(a.badger), a.Registry)

	a.Files = filelog.NewSource(cfg.Logs.Dir, cfg.Logs.Files, logLoc)

	var header export.PageHeader
	if cfg.Archive.LogoPath != "" {
		header = &export.LogoHeader{LogoPath: cfg.Archive.LogoPath}
	}
	a.Exporter = export.New(cfg.Archive.Root, header, cfg.Archive.Banner)

	var mailer notify.Mailer
	if cfg.Notify.EmailEnabled {
		mailer = notify.NewSMTPMailer(&cfg.Notify)
	}
	a.Notifier = notify.New(mailer, cfg.Notify.Admins, cfg.Notify.SubjectTag)
	a.Governor = storage.New(cfg.Archive.Root, a.Settings, a.Notifier)

	a.Engine, err = retention.New(retention.Config{
		BatchSize:   cfg.Retention.BatchSize,
		KeepBackups: cfg.Retention.KeepBackups,
		LockFile:    cfg.LockFilePath(),
		Location:    a.Location,
	}, retention.Deps{
		Audit:    a.Audit,
		History:  a.History,
		Settings: a.Settings,
		Files:    a.Files,
		Exporter: a.Exporter,
		Governor: a.Governor,
		Notifier: a.Notifier,
	})
	if err != nil {
		return nil, err
	}
	a.Scheduler = schedule.New(a.Settings, a.Engine, cfg.Schedule.Interval, a.Location)

	logging.Info().
		Str("database", cfg.Database.Path).
		Str("archive_root", cfg.Archive.Root).
		Str("log_dir", cfg.Logs.Dir).
		Bool("auditing", a.Interceptor.Enabled()).
		Msg("Logkeeper components initialized")
	return a, nil
}

func (a *App) buildInterceptor() error {
	cfg := a.Config.Interceptor
	var opts []interceptor.Option
	if cfg.FallbackLog != "" {
		fallback, closer, err := logging.NewFileLogger(cfg.FallbackLog, "audit_interceptor")
		if err != nil {
			return fmt.Errorf("open audit fallback log: %w", err)
		}
		a.closers = append(a.closers, closer)
		opts = append(opts, interceptor.WithFallbackLogger(fallback))
	}

	i, err := interceptor.New(a.Audit, a.Registry, interceptor.Config{
		SkipApps:        cfg.SkipApps,
		SensitiveFields: cfg.SensitiveFields,
		CacheSize:       cfg.CacheSize,
	}, opts...)
	if err != nil {
		return err
	}
	if !cfg.Enabled {
		i.Disable()
	}
	a.Interceptor = i
	return nil
}

// Handler builds the admin API handler and router.
func (a *App) Handler() (http.Handler, error) {
	auth, err := middleware.NewAuthenticator(&a.Config.Security)
	if err != nil {
		return nil, err
	}
	if auth.Mode() == middleware.AuthModeNone {
		logging.Warn().Msg("Authentication is DISABLED (AUTH_MODE=none); the log admin routes are open to anyone who can reach them")
	}

	h, err := api.NewHandler(api.Deps{
		Audit:    a.Audit,
		History:  a.History,
		Settings: a.Settings,
		Files:    a.Files,
		Cleaner:  a.Engine,
		Storage:  a.Governor,
		Schedule: a.Scheduler,
		Location: a.Location,
	})
	if err != nil {
		return nil, err
	}
	sec := a.Config.Security
	return api.NewRouter(h, api.RouterConfig{
		BasePath: a.Config.Server.BasePath,
		Auth:     auth,
		Chi:      api.NewChiMiddlewareFromSecurity(sec.CORSOrigins, sec.RateLimitReqs, sec.RateLimitWindow),
	}), nil
}

// HTTPServer builds the admin API server.
func (a *App) HTTPServer() (*http.Server, error) {
	handler, err := a.Handler()
	if err != nil {
		return nil, err
	}
	srv := a.Config.Server
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", srv.Host, srv.Port),
		Handler:           handler,
		ReadTimeout:       srv.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      srv.WriteTimeout,
	}, nil
}

// Close releases the stores in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
