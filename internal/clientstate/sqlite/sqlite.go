// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

// Package sqlite is the SQLite backed clientstate.Store. Importing it
// registers the "sqlite" backend.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sigil-dev/storefront/internal/clientstate"
	sferr "github.com/sigil-dev/storefront/pkg/errors"
)

func init() {
	clientstate.RegisterBackend("sqlite", func(path string) (clientstate.Store, error) {
		return NewStore(path)
	})
}

// Compile-time interface check.
var _ clientstate.Store = (*Store)(nil)

type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at dbPath and its parent
// directory.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, sferr.Wrap(err, sferr.CodeStateStoreOpenFailure, "creating state directory",
				sferr.Field("path", dir))
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, sferr.Wrap(err, sferr.CodeStateStoreOpenFailure, "opening sqlite db")
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, sferr.Wrap(err, sferr.CodeStateStoreOpenFailure, "pinging sqlite db")
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, sferr.Wrap(err, sferr.CodeStateStoreOpenFailure, "migrating sqlite db")
	}

	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS client_state (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`
	_, err := db.Exec(ddl)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	if err := clientstate.ValidateKey(key); err != nil {
		return "", false, err
	}

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM client_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, sferr.Wrap(err, sferr.CodeStateStoreFailure, "reading client state",
			sferr.Field("key", key))
	}
	return value, true, nil
}

func (s *Store) Save(ctx context.Context, key, value string) error {
	if err := clientstate.ValidateKey(key); err != nil {
		return err
	}

	const q = `INSERT INTO client_state (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	if _, err := s.db.ExecContext(ctx, q, key, value, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return sferr.Wrap(err, sferr.CodeStateStoreFailure, "saving client state",
			sferr.Field("key", key))
	}
	return nil
}

func (s *Store) Clear(ctx context.Context, key string) error {
	if err := clientstate.ValidateKey(key); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM client_state WHERE key = ?`, key); err != nil {
		return sferr.Wrap(err, sferr.CodeStateStoreFailure, "clearing client state",
			sferr.Field("key", key))
	}
	return nil
}
