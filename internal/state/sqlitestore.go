package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/dohr-michael/nudge/internal/tasks"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS reports (
	key  TEXT PRIMARY KEY,
	body TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS done_logs (
	key  TEXT NOT NULL,
	day  TEXT NOT NULL,
	seq  INTEGER NOT NULL,
	text TEXT NOT NULL,
	PRIMARY KEY (key, day, seq)
);
`

const busyTimeout = 5000 // milliseconds

// SQLiteStore keeps the document in a SQLite database. Each save rewrites
// both tables inside one transaction.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)", path, busyTimeout)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open state db: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init state schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*Document, error) {
	doc := NewDocument()

	rows, err := s.db.QueryContext(ctx, `SELECT key, body FROM reports`)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	for rows.Next() {
		var rawKey, body string
		if err := rows.Scan(&rawKey, &body); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan report: %w", err)
		}
		key, err := tasks.ParseKey(rawKey)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("report key: %w", err)
		}
		var t tasks.Task
		if err := json.Unmarshal([]byte(body), &t); err != nil {
			rows.Close()
			return nil, fmt.Errorf("decode report %s: %w", rawKey, err)
		}
		doc.Reports[key] = &t
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("close reports: %w", err)
	}

	rows, err = s.db.QueryContext(ctx, `SELECT key, day, text FROM done_logs ORDER BY key, day, seq`)
	if err != nil {
		return nil, fmt.Errorf("query done logs: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rawKey, day, text string
		if err := rows.Scan(&rawKey, &day, &text); err != nil {
			return nil, fmt.Errorf("scan done log: %w", err)
		}
		key, err := tasks.ParseKey(rawKey)
		if err != nil {
			return nil, fmt.Errorf("done log key: %w", err)
		}
		doc.AppendDeed(key, day, text)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate done logs: %w", err)
	}
	return doc, nil
}

func (s *SQLiteStore) SaveAtomic(ctx context.Context, doc *Document) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := writeDocument(ctx, tx, doc); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func writeDocument(ctx context.Context, tx *sql.Tx, doc *Document) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM reports`); err != nil {
		return fmt.Errorf("clear reports: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM done_logs`); err != nil {
		return fmt.Errorf("clear done logs: %w", err)
	}

	for key, t := range doc.Reports {
		body, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("encode report %s: %w", key, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO reports (key, body) VALUES (?, ?)`, key.String(), string(body)); err != nil {
			return fmt.Errorf("insert report %s: %w", key, err)
		}
	}

	for key, log := range doc.DoneLogs {
		for day, items := range log {
			for seq, text := range items {
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO done_logs (key, day, seq, text) VALUES (?, ?, ?, ?)`,
					key.String(), day, seq, text,
				); err != nil {
					return fmt.Errorf("insert done log %s/%s: %w", key, day, err)
				}
			}
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
