// Package audit persists a record of completed tool calls. It is strictly
// optional observability, not a correctness dependency (SPEC_FULL.md §3
// AuditRecord) — the hub runs fine with a nil store.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go driver, CGO-free

	"mcphub/internal/hub"
)

// Record is one persisted entry, grounded on the CallRecord data model plus
// the rollback outcome.
type Record struct {
	ID                string
	ServerName        string
	ToolName          string
	OperationType     hub.OperationType
	OK                bool
	StartedAt         time.Time
	DurationMs        int64
	RollbackTriggered bool
	RollbackOK        bool
}

// Store persists and retrieves call audit records. Grounded on the
// teacher's storage.Repository interface shape (internal/storage/storage.go),
// narrowed to the Hub's single record kind.
type Store interface {
	Record(ctx context.Context, r Record) error
	Recent(ctx context.Context, limit int) ([]Record, error)
	Close() error
}

// SQLiteStore is a pure-Go SQLite-backed Store, grounded on the teacher's
// SQLiteRepository (internal/storage/sqlite.go): same open/migrate/WAL
// shape, adapted from review records to call audit records.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable wal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS call_audit (
		id                 TEXT PRIMARY KEY,
		server_name        TEXT NOT NULL,
		tool_name          TEXT NOT NULL,
		operation_type     TEXT NOT NULL,
		ok                 INTEGER NOT NULL,
		started_at         DATETIME NOT NULL,
		duration_ms        INTEGER NOT NULL,
		rollback_triggered INTEGER NOT NULL,
		rollback_ok        INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_call_audit_server ON call_audit(server_name, tool_name);
	CREATE INDEX IF NOT EXISTS idx_call_audit_started ON call_audit(started_at);
	`
	_, err := db.Exec(schema)
	return err
}

func (s *SQLiteStore) Record(ctx context.Context, r Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO call_audit (id, server_name, tool_name, operation_type, ok, started_at, duration_ms, rollback_triggered, rollback_ok)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.ServerName, r.ToolName, string(r.OperationType), r.OK, r.StartedAt, r.DurationMs, r.RollbackTriggered, r.RollbackOK)
	return err
}

func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, server_name, tool_name, operation_type, ok, started_at, duration_ms, rollback_triggered, rollback_ok
		FROM call_audit ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var opType string
		if err := rows.Scan(&r.ID, &r.ServerName, &r.ToolName, &opType, &r.OK, &r.StartedAt, &r.DurationMs, &r.RollbackTriggered, &r.RollbackOK); err != nil {
			return nil, err
		}
		r.OperationType = hub.OperationType(opType)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// Sink adapts a Store into hub.AuditSink, the narrow interface the hub
// package calls through so internal/hub never imports internal/audit.
type Sink struct {
	Store Store
	newID func() string
}

func NewSink(store Store, newID func() string) *Sink {
	return &Sink{Store: store, newID: newID}
}

func (s *Sink) RecordCall(ctx context.Context, serverName, toolName string, opType hub.OperationType, ok bool, startedAt time.Time, duration time.Duration, rollbackTriggered, rollbackOK bool) {
	id := ""
	if s.newID != nil {
		id = s.newID()
	}
	_ = s.Store.Record(ctx, Record{
		ID:                id,
		ServerName:        serverName,
		ToolName:          toolName,
		OperationType:     opType,
		OK:                ok,
		StartedAt:         startedAt,
		DurationMs:        duration.Milliseconds(),
		RollbackTriggered: rollbackTriggered,
		RollbackOK:        rollbackOK,
	})
}
