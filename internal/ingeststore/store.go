// Package ingeststore persists ingest-log entries, the supplemental
// durable record of everything that crossed POST /ingest or POST
// /stt_result (SPEC_FULL §12). Grounded on the teacher's internal/store
// (event_log.go), rewritten against raw pgx since the generated sqlc
// query layer it depended on isn't part of this module (see DESIGN.md).
package ingeststore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("ingeststore: not found")

// Entry is one durable ingest-log row.
type Entry struct {
	ID        int64
	Module    string
	Text      string
	Source    string
	CreatedAt time.Time
}

// Store persists and retrieves ingest-log entries.
type Store struct {
	pool *pgxpool.Pool
}

// New builds a Store against pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Insert writes one ingest-log entry, assigning it an ID and CreatedAt.
func (s *Store) Insert(ctx context.Context, module, text, source string) (*Entry, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO ingest_log (module, text, source, created_at)
		 VALUES ($1, $2, $3, now())
		 RETURNING id, module, text, source, created_at`,
		module, text, source)

	var e Entry
	if err := row.Scan(&e.ID, &e.Module, &e.Text, &e.Source, &e.CreatedAt); err != nil {
		return nil, fmt.Errorf("ingeststore: insert: %w", err)
	}
	return &e, nil
}

// GetByID looks up one entry by ID.
func (s *Store) GetByID(ctx context.Context, id int64) (*Entry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, module, text, source, created_at FROM ingest_log WHERE id = $1`, id)

	var e Entry
	if err := row.Scan(&e.ID, &e.Module, &e.Text, &e.Source, &e.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ingeststore: get by id: %w", err)
	}
	return &e, nil
}

// ListRecent returns the most recent entries for one module, newest first.
func (s *Store) ListRecent(ctx context.Context, module string, limit int32) ([]Entry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, module, text, source, created_at FROM ingest_log
		 WHERE module = $1 ORDER BY created_at DESC LIMIT $2`, module, limit)
	if err != nil {
		return nil, fmt.Errorf("ingeststore: list recent: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Module, &e.Text, &e.Source, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("ingeststore: scan: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
