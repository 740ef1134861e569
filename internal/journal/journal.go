// Package journal keeps a local SQLite record of settled swap operations.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/claude/runweek/internal/models"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// Entry is one journaled operation.
type Entry struct {
	OpID      uuid.UUID
	Kind      models.Kind
	SourceID  string
	TargetID  string
	State     models.OperationState
	Error     string
	CreatedAt time.Time
	SettledAt time.Time
}

// Journal stores swap outcomes in dir/journal.db.
type Journal struct {
	db *sql.DB
}

// Open opens (or creates) the journal database in dir.
func Open(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating journal dir %s: %w", dir, err)
	}

	dbPath := filepath.Join(dir, "journal.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening journal db: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS swap_operations (
		op_id      TEXT PRIMARY KEY,
		kind       TEXT NOT NULL,
		source_id  TEXT NOT NULL,
		target_id  TEXT NOT NULL,
		state      TEXT NOT NULL,
		error      TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		settled_at TEXT NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal table: %w", err)
	}

	return &Journal{db: db}, nil
}

// Record stores op, replacing any earlier entry with the same id.
func (j *Journal) Record(ctx context.Context, op models.SwapOperation) error {
	_, err := j.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO swap_operations
			(op_id, kind, source_id, target_id, state, error, created_at, settled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		op.ID.String(), string(op.Kind), op.SourceID, op.TargetID, string(op.State), op.Error,
		formatTime(op.CreatedAt), formatTime(op.SettledAt),
	)
	if err != nil {
		return fmt.Errorf("recording swap %s: %w", op.ID, err)
	}
	return nil
}

// Recent returns up to limit entries, most recently settled first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT op_id, kind, source_id, target_id, state, error, created_at, settled_at
		FROM swap_operations
		ORDER BY settled_at DESC, op_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                    Entry
			opID, kind, state    string
			createdAt, settledAt string
		)
		if err := rows.Scan(&opID, &kind, &e.SourceID, &e.TargetID, &state, &e.Error, &createdAt, &settledAt); err != nil {
			return nil, fmt.Errorf("scanning journal row: %w", err)
		}
		if e.OpID, err = uuid.Parse(opID); err != nil {
			return nil, fmt.Errorf("parsing op id %q: %w", opID, err)
		}
		e.Kind = models.Kind(kind)
		e.State = models.OperationState(state)
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if e.SettledAt, err = parseTime(settledAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Times are stored as fixed-width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing journal time %q: %w", s, err)
	}
	return t, nil
}
