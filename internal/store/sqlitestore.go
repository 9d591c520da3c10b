package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	mnemoerrors "mnemo/internal/errors"
	"mnemo/internal/graph"
)

// SQLiteStore persists the canonical snapshot text as the single source
// of truth (one row in the snapshots table) while also indexing item
// text into an FTS5 virtual table for search. The snapshot remains the
// authoritative, human-inspectable form; the FTS index is a derived,
// fully-rebuildable view over it.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at path and
// ensures its schema exists.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, mnemoerrors.Storage("open sqlite database", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite is not safe for concurrent writers on one connection pool

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			text TEXT NOT NULL
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS item_search USING fts5(
			item_id UNINDEXED, scope UNINDEXED, text
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return mnemoerrors.Storage("apply sqlite schema", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) (*graph.State, error) {
	var text string
	err := s.db.QueryRowContext(ctx, `SELECT text FROM snapshots WHERE id = 1`).Scan(&text)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, mnemoerrors.Storage("query snapshot row", err)
	}
	state, err := Unmarshal(text)
	if err != nil {
		return nil, mnemoerrors.Storage("parse stored snapshot", err)
	}
	return state, nil
}

// Save replaces the snapshot row and rebuilds the FTS index in one
// transaction so readers never observe the two halves out of sync.
func (s *SQLiteStore) Save(ctx context.Context, state *graph.State, snapshotText string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mnemoerrors.Storage("begin sqlite transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, text) VALUES (1, ?) ON CONFLICT(id) DO UPDATE SET text = excluded.text`,
		snapshotText); err != nil {
		return mnemoerrors.Storage("upsert snapshot row", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM item_search`); err != nil {
		return mnemoerrors.Storage("clear search index", err)
	}
	for _, item := range state.Items {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO item_search (item_id, scope, text) VALUES (?, ?, ?)`,
			item.ID, item.Scope, item.Text); err != nil {
			return mnemoerrors.Storage("index item for search", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return mnemoerrors.Storage("commit sqlite transaction", err)
	}
	return nil
}

// Search runs an FTS5 match query, optionally filtered by scope, and
// returns matching item ids ranked by FTS5's bm25 relevance.
func (s *SQLiteStore) Search(ctx context.Context, query string, limit int, scope string) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT item_id FROM item_search WHERE item_search MATCH ?`
	args := []any{query}
	if scope != "" {
		q += ` AND scope = ?`
		args = append(args, scope)
	}
	q += ` ORDER BY bm25(item_search) LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, mnemoerrors.Storage(fmt.Sprintf("search query %q", query), err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, mnemoerrors.Storage("scan search row", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
