package sqlite

import (
	"path/filepath"
	"testing"

	"github.com/veridian-dash/veridian/lib/db"
	dbtesting "github.com/veridian-dash/veridian/lib/db/testing"
)

func newTestDB(t testing.TB) db.KVDB {
	database, err := NewSQLiteDB(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return database
}

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "SQLite", newTestDB)
}

func Benchmark(b *testing.B) {
	dbtesting.RunKVDBBenchmarks(b, "SQLite", newTestDB)
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "kv.db")

	database, err := NewSQLiteDB(path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Set("user:u1", []byte(`{"id":"u1"}`)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := database.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewSQLiteDB(path)
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	defer reopened.Close()

	value, ok, err := reopened.Get("user:u1")
	if err != nil || !ok {
		t.Fatalf("Expected key to survive reopen (ok=%v, err=%v)", ok, err)
	}
	if string(value) != `{"id":"u1"}` {
		t.Errorf("Unexpected value after reopen: %s", value)
	}
}
