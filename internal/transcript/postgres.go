package transcript

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists transcript rows in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initPostgresSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initPostgresSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS transcript_turns (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			seq BIGSERIAL,
			speaker TEXT NOT NULL,
			text TEXT NOT NULL,
			spoken_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transcript_turns_session ON transcript_turns (session_id, seq);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, sessionID string, turn Turn) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transcript_turns (id, session_id, speaker, text, spoken_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(),
		sessionID,
		turn.Speaker,
		turn.Text,
		turn.Time.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save turn: %w", err)
	}
	return nil
}

func (s *PostgresStore) Relabel(ctx context.Context, sessionID, from, to string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE transcript_turns SET speaker = $1 WHERE session_id = $2 AND speaker = $3`,
		to, sessionID, from,
	)
	if err != nil {
		return fmt.Errorf("relabel turns: %w", err)
	}
	return nil
}

func (s *PostgresStore) Reset(ctx context.Context, sessionID string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM transcript_turns WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("delete turns: %w", err)
	}
	return nil
}

// Turns returns the rows of one session in arrival order.
func (s *PostgresStore) Turns(ctx context.Context, sessionID string) ([]Turn, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT spoken_at, speaker, text FROM transcript_turns WHERE session_id = $1 ORDER BY seq`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.Time, &t.Speaker, &t.Text); err != nil {
			return nil, fmt.Errorf("scan turn row: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn rows: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
