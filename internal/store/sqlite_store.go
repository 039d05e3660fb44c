package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS targets (
	username   TEXT PRIMARY KEY,
	record     BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SqliteStore keeps records in a single sqlite database. Each Save is one
// transaction, so a crash keeps the previous row.
type SqliteStore struct {
	db *sql.DB
}

func NewSqliteStore(path string) (*SqliteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	for _, stmt := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000", sqliteSchema} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Save(ctx context.Context, rec *Record) error {
	if rec.Version == 0 {
		rec.Version = RecordVersion
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return &StoreError{Kind: WriteFailed, Username: rec.Username, Err: err}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &StoreError{Kind: WriteFailed, Username: rec.Username, Err: err}
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO targets (username, record, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET record = excluded.record, updated_at = excluded.updated_at`,
		rec.Username, data, time.Now().Unix())
	if err != nil {
		_ = tx.Rollback()
		return &StoreError{Kind: WriteFailed, Username: rec.Username, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &StoreError{Kind: WriteFailed, Username: rec.Username, Err: err}
	}
	return nil
}

func (s *SqliteStore) Load(ctx context.Context, username string) (*Record, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT record FROM targets WHERE username = ?`, username).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, &StoreError{Kind: ReadFailed, Username: username, Err: err}
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, &StoreError{Kind: CorruptRecord, Username: username, Err: err}
	}
	if rec.Snapshot == nil {
		return nil, &StoreError{Kind: CorruptRecord, Username: username, Err: fmt.Errorf("record has no snapshot")}
	}
	return &rec, nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}
