// Package storage keeps item catalogs as named snapshots in SQLite so that
// graphs can be rebuilt without reanalysing the project.
package storage

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schema string

// DB is a snapshot store backed by one SQLite file
type DB struct {
	conn *sql.DB
	path string
}

// Open creates the parent directory and schema as needed
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	// one writer keeps snapshot transactions serialised
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &DB{conn: conn, path: path}, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// Path is the file the store was opened from
func (db *DB) Path() string {
	return db.path
}

// Clear removes every snapshot; items and relations go with them by cascade
func (db *DB) Clear() error {
	if _, err := db.conn.Exec("DELETE FROM snapshots"); err != nil {
		return fmt.Errorf("failed to clear snapshots: %w", err)
	}
	return nil
}
