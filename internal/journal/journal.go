// Package journal persists an audit trail of application events in a
// local SQLite database: transactions appended, settings changed, backups
// made, sessions started and stopped. Keeping them in SQLite makes them
// queryable for the events endpoint without scraping log files.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Event kinds recorded in the audit trail.
const (
	KindTransactionAdded = "transaction_added"
	KindSettingChanged   = "setting_changed"
	KindBackupCreated    = "backup_created"
	KindSessionStarted   = "session_started"
	KindSessionStopped   = "session_stopped"
)

type (
	Event struct {
		ID         int64     `json:"id"`
		OccurredAt time.Time `json:"occurred_at"`
		Kind       string    `json:"kind"`
		Actor      string    `json:"actor"`
		RemoteAddr string    `json:"remote_addr"`
		Detail     string    `json:"detail"`
	}

	Journal struct {
		db *sql.DB
	}
)

func Open(dbPath string) (*Journal, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping journal database: %w", err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate journal schema: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Record inserts an event. Callers treat journal failures as non-fatal;
// Record logs and returns the error so tests can assert on it.
func (j *Journal) Record(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (occurred_at, kind, actor, remote_addr, detail) VALUES (?, ?, ?, ?, ?)`,
		e.OccurredAt.Format(time.RFC3339), e.Kind, e.Actor, e.RemoteAddr, e.Detail)
	if err != nil {
		slog.ErrorContext(ctx, "Journal write failed", "kind", e.Kind, "error", err)
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// Recent returns up to limit events, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, occurred_at, kind, actor, remote_addr, detail
		 FROM events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var ts string
		if err := rows.Scan(&e.ID, &ts, &e.Kind, &e.Actor, &e.RemoteAddr, &e.Detail); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if t, perr := time.Parse(time.RFC3339, ts); perr == nil {
			e.OccurredAt = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
