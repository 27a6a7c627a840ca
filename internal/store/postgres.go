package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists sessions and recordings in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL UNIQUE,
			total_images INTEGER NOT NULL,
			current_index INTEGER NOT NULL DEFAULT 0,
			is_completed BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS recordings (
			id TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			filename TEXT NOT NULL,
			filepath TEXT NOT NULL,
			duration INTEGER,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_recordings_session_created ON recordings (session_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, in SessionInput) (Session, error) {
	sess := Session{
		ID:           uuid.NewString(),
		SessionID:    in.SessionID,
		TotalImages:  in.TotalImages,
		CurrentIndex: in.CurrentIndex,
		IsCompleted:  in.IsCompleted,
		CreatedAt:    time.Now().UTC(),
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO sessions (id, session_id, total_images, current_index, is_completed, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		sess.ID, sess.SessionID, sess.TotalImages, sess.CurrentIndex, sess.IsCompleted, sess.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Session{}, ErrDuplicateSession
		}
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

func (s *PostgresStore) GetSession(ctx context.Context, sessionID string) (Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, session_id, total_images, current_index, is_completed, created_at
		 FROM sessions WHERE session_id=$1`,
		sessionID,
	)
	return scanSession(row)
}

func (s *PostgresStore) UpdateSession(ctx context.Context, sessionID string, upd SessionUpdate) (Session, error) {
	row := s.pool.QueryRow(ctx,
		`UPDATE sessions
		 SET current_index = COALESCE($2, current_index),
		     is_completed = COALESCE($3, is_completed)
		 WHERE session_id=$1
		 RETURNING id, session_id, total_images, current_index, is_completed, created_at`,
		sessionID, upd.CurrentIndex, upd.IsCompleted,
	)
	return scanSession(row)
}

func (s *PostgresStore) CreateRecording(ctx context.Context, in RecordingInput) (Recording, error) {
	rec := Recording{
		ID:        uuid.NewString(),
		SessionID: in.SessionID,
		Filename:  in.Filename,
		Filepath:  in.Filepath,
		Duration:  in.Duration,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO recordings (id, session_id, filename, filepath, duration, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.SessionID, rec.Filename, rec.Filepath, rec.Duration, rec.CreatedAt,
	)
	if err != nil {
		return Recording{}, fmt.Errorf("create recording: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) GetRecording(ctx context.Context, sessionID string) (Recording, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, session_id, filename, filepath, duration, created_at
		 FROM recordings WHERE session_id=$1
		 ORDER BY created_at DESC LIMIT 1`,
		sessionID,
	)
	var r Recording
	if err := row.Scan(&r.ID, &r.SessionID, &r.Filename, &r.Filepath, &r.Duration, &r.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Recording{}, ErrNotFound
		}
		return Recording{}, fmt.Errorf("get recording: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanSession(row pgx.Row) (Session, error) {
	var sess Session
	err := row.Scan(&sess.ID, &sess.SessionID, &sess.TotalImages, &sess.CurrentIndex, &sess.IsCompleted, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, fmt.Errorf("scan session: %w", err)
	}
	return sess, nil
}
