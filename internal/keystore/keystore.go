// Package keystore persists API keys in a local sqlite database so they do
// not have to be passed on every invocation. The pipeline itself never reads
// it: credentials always enter the core as plain call parameters.
package keystore

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when no key is stored under the given name.
var ErrNotFound = errors.New("key not found")

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open keystore: %w", err)
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS api_keys (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create keystore schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Set(name, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO api_keys (name, value) VALUES (?, ?)
		 ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		name, value,
	)
	if err != nil {
		return fmt.Errorf("store key %q: %w", name, err)
	}
	return nil
}

func (s *Store) Get(name string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM api_keys WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load key %q: %w", name, err)
	}
	return value, nil
}
