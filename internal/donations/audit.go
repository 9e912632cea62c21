package donations

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Audit operations.
const (
	OperationAppend = "append"
	OperationDelete = "delete"
)

// AuditEvent is one completed append or delete.
type AuditEvent struct {
	ID        int64
	SessionID string
	Operation string
	FilePath  string
	RecordID  int
	Removed   int
	CreatedAt time.Time
}

// AuditLog persists AuditEvents in SQLite.
type AuditLog struct {
	db *sql.DB
}

// NewAuditLog wraps an already opened database. The schema must exist.
func NewAuditLog(db *sql.DB) *AuditLog {
	return &AuditLog{db: db}
}

// OpenAudit opens or creates a SQLite database at the provided path and
// ensures the schema is available.
func OpenAudit(ctx context.Context, path string) (*AuditLog, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping audit database: %w", err)
	}

	if err := EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return NewAuditLog(db), nil
}

// EnsureSchema creates the required tables if they do not already exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    operation TEXT NOT NULL,
    file_path TEXT NOT NULL,
    record_id INTEGER NOT NULL,
    removed INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_audit_events_file_path ON audit_events(file_path);
`

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Close releases the underlying database.
func (a *AuditLog) Close() error {
	return a.db.Close()
}

// RecordEvent stores ev. ID and CreatedAt are assigned by the database.
func (a *AuditLog) RecordEvent(ctx context.Context, ev AuditEvent) error {
	_, err := a.db.ExecContext(ctx, `
INSERT INTO audit_events (session_id, operation, file_path, record_id, removed)
VALUES (?, ?, ?, ?, ?)
`, ev.SessionID, ev.Operation, ev.FilePath, ev.RecordID, ev.Removed)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Events returns every stored event in insertion order.
func (a *AuditLog) Events(ctx context.Context) ([]AuditEvent, error) {
	rows, err := a.db.QueryContext(ctx, `
SELECT id, session_id, operation, file_path, record_id, removed, created_at
FROM audit_events
ORDER BY id
`)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var ev AuditEvent
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.Operation, &ev.FilePath, &ev.RecordID, &ev.Removed, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}

	return events, nil
}

// String formats the event as a single history line.
func (ev AuditEvent) String() string {
	line := fmt.Sprintf("%s %s %s %s id=%d", ev.CreatedAt.Format(time.DateTime), ev.SessionID, ev.Operation, ev.FilePath, ev.RecordID)
	if ev.Operation == OperationDelete {
		line += fmt.Sprintf(" removed=%d", ev.Removed)
	}
	return line
}
