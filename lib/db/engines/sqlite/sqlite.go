// Package sqlite implements a durable db.KVDB on a single SQLite table using the
// pure go modernc.org/sqlite driver (no cgo).
//
// All entries live in one table:
//
//	kv(key TEXT PRIMARY KEY, value BLOB NOT NULL, expires_at INTEGER NOT NULL DEFAULT 0)
//
// SetIfUnset is a single upsert whose update branch only fires for expired rows, so the
// number of affected rows tells whether the call stored the value. Expired rows are
// filtered by every read and replaced by the next SetIfUnset on their key.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/veridian-dash/veridian/lib/db"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

const (
	magicNum    = "SQLITEKV"
	defaultPath = "veridian.db"
)

const supportedFeatures = db.FeatureSet |
	db.FeatureSetIfUnset |
	db.FeatureGet |
	db.FeatureDelete |
	db.FeatureHas |
	db.FeatureTTL |
	db.FeatureSave |
	db.FeatureLoad

type sqliteImpl struct {
	db   *sql.DB
	path string
}

// NewSQLiteDB opens (or creates) the database file at path.
func NewSQLiteDB(path string) (db.KVDB, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// a single connection serialises writers, sqlite would otherwise report SQLITE_BUSY
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		expires_at INTEGER NOT NULL DEFAULT 0
	)`); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("create kv table: %w", err)
	}
	return &sqliteImpl{db: conn, path: path}, nil
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

func (s *sqliteImpl) Set(key string, value []byte) error {
	_, err := s.db.Exec(`INSERT INTO kv(key, value, expires_at) VALUES(?, ?, 0)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = 0`, key, nonNil(value))
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

func (s *sqliteImpl) SetIfUnset(key string, value []byte, expiresAt time.Time) (bool, error) {
	return s.SetIfUnsetAt(key, value, expiresAt, time.Now())
}

func (s *sqliteImpl) SetIfUnsetAt(key string, value []byte, expiresAt, now time.Time) (bool, error) {
	res, err := s.db.Exec(`INSERT INTO kv(key, value, expires_at) VALUES(?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
		WHERE kv.expires_at != 0 AND kv.expires_at <= ?`,
		key, nonNil(value), db.UnixNano(expiresAt), now.UnixNano())
	if err != nil {
		return false, fmt.Errorf("set if unset %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set if unset %q: %w", key, err)
	}
	return n > 0, nil
}

func (s *sqliteImpl) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Query Operations
// --------------------------------------------------------------------------

func (s *sqliteImpl) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ? AND (expires_at = 0 OR expires_at > ?)`,
		key, time.Now().UnixNano()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

func (s *sqliteImpl) Has(key string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM kv WHERE key = ? AND (expires_at = 0 OR expires_at > ?)`,
		key, time.Now().UnixNano()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has %q: %w", key, err)
	}
	return true, nil
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

func (s *sqliteImpl) Save(w io.Writer) error {
	rows, err := s.db.Query(`SELECT key, value, expires_at FROM kv ORDER BY key`)
	if err != nil {
		return fmt.Errorf("select kv: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []db.SnapshotEntry
	for rows.Next() {
		var e db.SnapshotEntry
		if err := rows.Scan(&e.Key, &e.Value, &e.ExpiresAt); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate kv: %w", err)
	}
	return db.WriteSnapshot(w, magicNum, entries)
}

func (s *sqliteImpl) Load(r io.Reader) (err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.Exec(`DELETE FROM kv`); err != nil {
		return fmt.Errorf("clear kv: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO kv(key, value, expires_at) VALUES(?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	err = db.ReadSnapshot(r, magicNum, func(e db.SnapshotEntry) error {
		_, err := stmt.Exec(e.Key, nonNil(e.Value), e.ExpiresAt)
		return err
	})
	if err != nil {
		return err
	}
	return tx.Commit()
}

// --------------------------------------------------------------------------
// Features and Metadata
// --------------------------------------------------------------------------

func (s *sqliteImpl) GetInfo() db.DatabaseInfo {
	var entries, sizeBytes int
	_ = s.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(LENGTH(key) + LENGTH(value)), 0) FROM kv
		WHERE expires_at = 0 OR expires_at > ?`, time.Now().UnixNano()).Scan(&entries, &sizeBytes)

	return db.DatabaseInfo{
		SizeBytes:         sizeBytes,
		Entries:           entries,
		DbType:            db.ImplSQLite,
		SupportedFeatures: db.Features(supportedFeatures),
		Metadata: map[string]string{
			"path": s.path,
		},
	}
}

func (s *sqliteImpl) SupportsFeature(feature db.Feature) bool {
	return supportedFeatures&feature == feature
}

func (s *sqliteImpl) Close() error {
	return s.db.Close()
}

// nonNil maps nil to an empty blob, the value column is NOT NULL
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
