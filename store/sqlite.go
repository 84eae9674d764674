package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps artifacts as rows of a single table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, &PersistenceError{Op: "init", Err: err}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, &PersistenceError{Op: "init", Err: err}
	}
	// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, &PersistenceError{Op: "migrate", Err: err}
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS artifacts (
		namespace TEXT NOT NULL,
		name TEXT NOT NULL,
		data BLOB NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (namespace, name)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Put(ctx context.Context, namespace string, name Artifact, data []byte) error {
	if err := validate(namespace, name); err != nil {
		return &PersistenceError{Op: "put", Namespace: namespace, Name: name, Err: err}
	}
	if data == nil {
		data = []byte{}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO artifacts (namespace, name, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(namespace, name) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at
	`, namespace, string(name), data, time.Now().UTC())
	if err != nil {
		return &PersistenceError{Op: "put", Namespace: namespace, Name: name, Err: err}
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, namespace string, name Artifact) ([]byte, error) {
	if err := validate(namespace, name); err != nil {
		return nil, &PersistenceError{Op: "get", Namespace: namespace, Name: name, Err: err}
	}
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM artifacts WHERE namespace = ? AND name = ?`,
		namespace, string(name),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, &PersistenceError{Op: "get", Namespace: namespace, Name: name, Err: err}
	}
	return data, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
