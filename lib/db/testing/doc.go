// Package testing provides standardised tests and benchmarks for
// engines that satisfy the db.KVDB interface.
//
// The package contains:
//   - RunKVDBTests: a conformance suite for the KVDB interface contract
//   - RunKVDBBenchmarks: throughput measurements for the common operations
//
// Every engine under lib/db/engines runs the same suite, so the entity layer can rely
// on identical semantics regardless of the configured backend.
//
// Example usage:
//
//	factory := func(t testing.TB) db.KVDB {
//		return NewMyDatabase(t.TempDir())
//	}
//
//	dbtesting.RunKVDBTests(t, "MyDatabase", factory)
//	dbtesting.RunKVDBBenchmarks(b, "MyDatabase", factory)
package testing
