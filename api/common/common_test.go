package common

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veridian-dash/veridian/lib/db"
	"github.com/veridian-dash/veridian/lib/store/dstore"
)

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]logger.LogLevel{
		"debug": logger.DEBUG, "INFO": logger.INFO, "": logger.INFO,
		"warn": logger.WARNING, "warning": logger.WARNING, "error": logger.ERROR,
	} {
		got, err := ParseLogLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLogLevel("loud")
	assert.Error(t, err)
	assert.Error(t, InitLoggers("loud"))
	assert.NoError(t, InitLoggers("error"))
}

func TestServerConfigString(t *testing.T) {
	cfg := ServerConfig{
		Endpoint:        ":8080",
		ShutdownTimeout: 10 * time.Second,
		PageSize:        20,
		LogLevel:        "info",
		Store: StoreConfig{
			Backend:       BackendPostgres,
			PostgresDSN:   "postgres://user:secret@db:5432/veridian",
			PostgresTable: "veridian_kv",
			Timeout:       5 * time.Second,
		},
	}

	out := cfg.String()
	assert.Contains(t, out, "HTTP SERVER")
	assert.Contains(t, out, "  Endpoint              : :8080")
	assert.Contains(t, out, "(built-in)")
	assert.Contains(t, out, "postgres://user:****@db:5432/veridian")
	assert.NotContains(t, out, "secret")

	raft := ServerConfig{Store: StoreConfig{Backend: BackendRaft, Raft: dstore.Config{
		ReplicaID:      1,
		ClusterMembers: map[uint64]string{1: "localhost:63001"},
		RTTMillisecond: 100,
	}}}
	assert.Contains(t, raft.String(), "RAFT PARAMETERS")
	assert.Contains(t, raft.String(), "localhost:63001")
}

func TestRedactDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:****@h/db", redactDSN("postgres://u:p@h/db"))
	assert.Equal(t, "postgres://u@h/db", redactDSN("postgres://u@h/db"))
	assert.Equal(t, "host=h user=u", redactDSN("host=h user=u"))
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	for _, cfg := range []StoreConfig{
		{Backend: BackendMemory},
		{Backend: BackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "kv.db")},
	} {
		s, err := cfg.OpenStore(ctx)
		require.NoError(t, err, cfg.Backend)

		stored, err := s.SetIfUnset("k", []byte("v"), 0)
		require.NoError(t, err)
		assert.True(t, stored)

		info, err := s.GetDBInfo()
		require.NoError(t, err)
		assert.Equal(t, 1, info.Entries)
		require.NoError(t, s.Close())
	}

	_, err := (&StoreConfig{Backend: "floppy"}).OpenStore(ctx)
	assert.Error(t, err)

	_, err = (&StoreConfig{Backend: BackendRaft}).OpenStore(ctx)
	assert.Error(t, err, "raft needs a replica id and members")
}

func TestOpenStoreReportsEngine(t *testing.T) {
	s, err := (&StoreConfig{Backend: BackendSQLite, SQLitePath: filepath.Join(t.TempDir(), "kv.db")}).OpenStore(context.Background())
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	info, err := s.GetDBInfo()
	require.NoError(t, err)
	assert.Equal(t, db.ImplSQLite, info.DbType)
}
