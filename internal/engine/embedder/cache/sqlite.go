package cache

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// sqliteMaxVars stays under SQLite's default bound-parameter limit.
const sqliteMaxVars = 500

// SQLiteStore keeps vectors in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the cache database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cache: open sqlite: %w", err)
	}
	const schema = `CREATE TABLE IF NOT EXISTS embeddings (
		key TEXT PRIMARY KEY,
		vec BLOB NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, keys []string) (map[string][]float32, error) {
	out := make(map[string][]float32, len(keys))
	for start := 0; start < len(keys); start += sqliteMaxVars {
		chunk := keys[start:min(start+sqliteMaxVars, len(keys))]
		args := make([]any, len(chunk))
		for i, k := range chunk {
			args[i] = k
		}
		q := "SELECT key, vec FROM embeddings WHERE key IN (?" + strings.Repeat(",?", len(chunk)-1) + ")"
		rows, err := s.db.QueryContext(ctx, q, args...)
		if err != nil {
			return nil, fmt.Errorf("cache: query: %w", err)
		}
		for rows.Next() {
			var k string
			var blob []byte
			if err := rows.Scan(&k, &blob); err != nil {
				rows.Close()
				return nil, fmt.Errorf("cache: scan: %w", err)
			}
			v, err := decode(blob)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out[k] = v
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("cache: rows: %w", err)
		}
	}
	return out, nil
}

func (s *SQLiteStore) Put(ctx context.Context, vecs map[string][]float32) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cache: begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT OR REPLACE INTO embeddings (key, vec) VALUES (?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("cache: prepare: %w", err)
	}
	defer stmt.Close()
	for k, v := range vecs {
		if _, err := stmt.ExecContext(ctx, k, encode(v)); err != nil {
			tx.Rollback()
			return fmt.Errorf("cache: insert: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("cache: commit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
