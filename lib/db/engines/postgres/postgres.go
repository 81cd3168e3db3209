// Package postgres implements a durable db.KVDB on a Postgres table, using pgx through
// its database/sql driver.
//
// The table layout and the conditional upsert mirror the sqlite engine, so both engines
// behave identically under the shared conformance suite. Several servers may share one
// table: SetIfUnset is decided by Postgres, not by the process.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/veridian-dash/veridian/lib/db"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const (
	magicNum      = "PGKVSNAP"
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/veridian?sslmode=disable"
	defaultTable  = "veridian_kv"
)

const supportedFeatures = db.FeatureSet |
	db.FeatureSetIfUnset |
	db.FeatureGet |
	db.FeatureDelete |
	db.FeatureHas |
	db.FeatureTTL |
	db.FeatureSave |
	db.FeatureLoad

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Options configures the postgres engine
type Options struct {
	DSN     string        // connection string (default: postgres://localhost/veridian?sslmode=disable)
	Table   string        // table name (default: veridian_kv)
	Timeout time.Duration // per statement timeout (0 = 5s)
}

type postgresImpl struct {
	db      *sql.DB
	table   string
	timeout time.Duration

	q struct {
		set, setIfUnset, del, get, has, info, all, clear, insert string
	}
}

// NewPostgresDB connects to Postgres and ensures the kv table exists.
func NewPostgresDB(ctx context.Context, opts Options) (db.KVDB, error) {
	if opts.DSN == "" {
		opts.DSN = defaultDSN
	}
	if opts.Table == "" {
		opts.Table = defaultTable
	}
	if !tableName.MatchString(opts.Table) {
		return nil, fmt.Errorf("invalid table name %q", opts.Table)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	conn, err := sql.Open(defaultDriver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	p := &postgresImpl{db: conn, table: opts.Table, timeout: opts.Timeout}
	p.prepareQueries()

	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key TEXT PRIMARY KEY,
		value BYTEA NOT NULL,
		expires_at BIGINT NOT NULL DEFAULT 0
	)`, p.table)
	if _, err := conn.ExecContext(ctx, ddl); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ensure kv table: %w", err)
	}
	return p, nil
}

func (p *postgresImpl) prepareQueries() {
	t := p.table
	p.q.set = fmt.Sprintf(`INSERT INTO %s(key, value, expires_at) VALUES($1, $2, 0)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = 0`, t)
	p.q.setIfUnset = fmt.Sprintf(`INSERT INTO %[1]s(key, value, expires_at) VALUES($1, $2, $3)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at
		WHERE %[1]s.expires_at != 0 AND %[1]s.expires_at <= $4`, t)
	p.q.del = fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, t)
	p.q.get = fmt.Sprintf(`SELECT value FROM %s WHERE key = $1 AND (expires_at = 0 OR expires_at > $2)`, t)
	p.q.has = fmt.Sprintf(`SELECT 1 FROM %s WHERE key = $1 AND (expires_at = 0 OR expires_at > $2)`, t)
	p.q.info = fmt.Sprintf(`SELECT COUNT(*), COALESCE(SUM(LENGTH(key) + LENGTH(value)), 0) FROM %s
		WHERE expires_at = 0 OR expires_at > $1`, t)
	p.q.all = fmt.Sprintf(`SELECT key, value, expires_at FROM %s ORDER BY key`, t)
	p.q.clear = fmt.Sprintf(`DELETE FROM %s`, t)
	p.q.insert = fmt.Sprintf(`INSERT INTO %s(key, value, expires_at) VALUES($1, $2, $3)`, t)
}

func (p *postgresImpl) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), p.timeout)
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

func (p *postgresImpl) Set(key string, value []byte) error {
	ctx, cancel := p.ctx()
	defer cancel()

	if _, err := p.db.ExecContext(ctx, p.q.set, key, nonNil(value)); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

func (p *postgresImpl) SetIfUnset(key string, value []byte, expiresAt time.Time) (bool, error) {
	return p.SetIfUnsetAt(key, value, expiresAt, time.Now())
}

func (p *postgresImpl) SetIfUnsetAt(key string, value []byte, expiresAt, now time.Time) (bool, error) {
	ctx, cancel := p.ctx()
	defer cancel()

	res, err := p.db.ExecContext(ctx, p.q.setIfUnset, key, nonNil(value), db.UnixNano(expiresAt), now.UnixNano())
	if err != nil {
		return false, fmt.Errorf("set if unset %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set if unset %q: %w", key, err)
	}
	return n > 0, nil
}

func (p *postgresImpl) Delete(key string) error {
	ctx, cancel := p.ctx()
	defer cancel()

	if _, err := p.db.ExecContext(ctx, p.q.del, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Query Operations
// --------------------------------------------------------------------------

func (p *postgresImpl) Get(key string) ([]byte, bool, error) {
	ctx, cancel := p.ctx()
	defer cancel()

	var value []byte
	err := p.db.QueryRowContext(ctx, p.q.get, key, time.Now().UnixNano()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

func (p *postgresImpl) Has(key string) (bool, error) {
	ctx, cancel := p.ctx()
	defer cancel()

	var one int
	err := p.db.QueryRowContext(ctx, p.q.has, key, time.Now().UnixNano()).Scan(&one)
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

func (p *postgresImpl) Save(w io.Writer) error {
	ctx := context.Background()

	rows, err := p.db.QueryContext(ctx, p.q.all)
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

func (p *postgresImpl) Load(r io.Reader) (err error) {
	ctx := context.Background()

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, p.q.clear); err != nil {
		return fmt.Errorf("clear kv: %w", err)
	}
	err = db.ReadSnapshot(r, magicNum, func(e db.SnapshotEntry) error {
		_, err := tx.ExecContext(ctx, p.q.insert, e.Key, nonNil(e.Value), e.ExpiresAt)
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

func (p *postgresImpl) GetInfo() db.DatabaseInfo {
	ctx, cancel := p.ctx()
	defer cancel()

	var entries, sizeBytes int
	_ = p.db.QueryRowContext(ctx, p.q.info, time.Now().UnixNano()).Scan(&entries, &sizeBytes)

	stats := p.db.Stats()
	return db.DatabaseInfo{
		SizeBytes:         sizeBytes,
		Entries:           entries,
		DbType:            db.ImplPostgres,
		SupportedFeatures: db.Features(supportedFeatures),
		Metadata: map[string]any{
			"table":            p.table,
			"open_connections": stats.OpenConnections,
			"in_use":           stats.InUse,
		},
	}
}

func (p *postgresImpl) SupportsFeature(feature db.Feature) bool {
	return supportedFeatures&feature == feature
}

func (p *postgresImpl) Close() error {
	return p.db.Close()
}

// nonNil maps nil to an empty bytea, the value column is NOT NULL
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}
