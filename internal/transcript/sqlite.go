package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps transcript rows in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// Single writer; the interview appends sequentially anyway.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS transcript_turns (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		spoken_at INTEGER NOT NULL,
		speaker TEXT NOT NULL,
		text TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transcript_turns_session ON transcript_turns(session_id, seq);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Append(ctx context.Context, sessionID string, turn Turn) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transcript_turns (id, session_id, seq, spoken_at, speaker, text)
		VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM transcript_turns WHERE session_id = ?), ?, ?, ?)`,
		uuid.NewString(), sessionID, sessionID, turn.Time.UnixNano(), turn.Speaker, turn.Text,
	)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Relabel(ctx context.Context, sessionID, from, to string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE transcript_turns SET speaker = ? WHERE session_id = ? AND speaker = ?`,
		to, sessionID, from,
	)
	if err != nil {
		return fmt.Errorf("relabel turns: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Reset(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM transcript_turns WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("delete turns: %w", err)
	}
	return nil
}

// Turns returns the rows of one session in arrival order.
func (s *SQLiteStore) Turns(ctx context.Context, sessionID string) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT spoken_at, speaker, text FROM transcript_turns WHERE session_id = ? ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var (
			spokenAt int64
			t        Turn
		)
		if err := rows.Scan(&spokenAt, &t.Speaker, &t.Text); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		t.Time = time.Unix(0, spokenAt)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn rows: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
