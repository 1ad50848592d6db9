package store

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

var kvSchema = `
CREATE TABLE IF NOT EXISTS kv_store (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
);`

// SQLStore is a KeyValueStore backed by an embedded SQLite database.
type SQLStore struct {
	db *sqlx.DB
}

// OpenSQLStore opens (creating if needed) a SQLite-backed store at path.
func OpenSQLStore(path string) (*SQLStore, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(kvSchema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLStore{db: db}, nil
}

// NewSQLStore wraps an existing database connection. The kv_store table is
// created if it does not exist.
func NewSQLStore(db *sqlx.DB) (*SQLStore, error) {
	if _, err := db.Exec(kvSchema); err != nil {
		return nil, err
	}
	return &SQLStore{db: db}, nil
}

// Get retrieves the value stored under key.
func (s *SQLStore) Get(key string) ([]byte, error) {
	var value []byte
	err := s.db.Get(&value, `SELECT value FROM kv_store WHERE key = ?;`, key)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Put inserts or replaces the value stored under key.
func (s *SQLStore) Put(key string, value []byte) error {
	_, err := s.db.Exec(`
	INSERT INTO kv_store (key, value) VALUES (?, ?)
	ON CONFLICT (key) DO UPDATE SET value = excluded.value;`, key, value)
	return err
}

// Delete removes the value stored under key.
func (s *SQLStore) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM kv_store WHERE key = ?;`, key)
	return err
}

// Close closes the underlying database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}
