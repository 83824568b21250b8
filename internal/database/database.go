// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

// Package database owns the DuckDB connection shared by the audit and
// operation-history stores.
//
// The stores create their own tables; this package opens the file, tunes
// the pool, runs each store's CreateTable in order and checkpoints on close.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/norsu-alumni/logkeeper/internal/config"
	"github.com/norsu-alumni/logkeeper/internal/logging"
)

// TableCreator is implemented by stores that own a DuckDB table.
type TableCreator interface {
	CreateTable(ctx context.Context) error
}

// DB wraps the DuckDB connection
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// Open opens (creating if needed) the DuckDB database described by cfg.
// Path ":memory:" opens a private in-memory database.
func Open(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	connStr := buildConnString(cfg.Path, numThreads, cfg.MaxMemory)
	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, cfg: cfg}
	db.configureConnectionPool()

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Int("threads", numThreads).
		Str("max_memory", cfg.MaxMemory).
		Msg("DuckDB opened")
	return db, nil
}

// buildConnString appends DuckDB tuning options to the database path.
// Extension auto-install stays off; only the built-in JSON type is used.
func buildConnString(path string, threads int, maxMemory string) string {
	connStr := fmt.Sprintf("%s?threads=%d&autoinstall_known_extensions=false", path, threads)
	if path != ":memory:" {
		connStr += "&access_mode=read_write"
	}
	if maxMemory != "" {
		connStr += "&max_memory=" + maxMemory
	}
	return connStr
}

// configureConnectionPool sizes the pool for short store queries
func (db *DB) configureConnectionPool() {
	db.conn.SetMaxOpenConns(runtime.NumCPU())
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// Migrate runs CreateTable for each store in order.
func (db *DB) Migrate(ctx context.Context, creators ...TableCreator) error {
	for _, c := range creators {
		if err := c.CreateTable(ctx); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Conn returns the underlying SQL connection for the stores.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping checks if the database connection is alive
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// Checkpoint flushes the WAL into the database file.
func (db *DB) Checkpoint(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		return fmt.Errorf("checkpoint failed: %w", err)
	}
	return nil
}

// Close checkpoints and closes the connection.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := db.Checkpoint(ctx); err != nil {
		logging.Warn().Err(err).Msg("Failed to checkpoint database before close")
	}
	cancel()
	return db.conn.Close()
}

func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close()
	}
}
