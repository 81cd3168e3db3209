package testing

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/veridian-dash/veridian/lib/db"
)

// RunKVDBBenchmarks runs the benchmark suite for a KVDB implementation.
// Durable engines should be benchmarked with a small b.N (e.g. -benchtime=1000x).
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Set", func(b *testing.B) {
			benchmarkSet(b, factory(b))
		})

		b.Run("SetExisting", func(b *testing.B) {
			benchmarkSetExisting(b, factory(b))
		})

		b.Run("SetIfUnset", func(b *testing.B) {
			benchmarkSetIfUnset(b, factory(b))
		})

		b.Run("Get", func(b *testing.B) {
			benchmarkGet(b, factory(b))
		})

		b.Run("Has(not)", func(b *testing.B) {
			benchmarkHasNot(b, factory(b))
		})

		b.Run("Delete", func(b *testing.B) {
			benchmarkDelete(b, factory(b))
		})

		b.Run("SaveLoad", func(b *testing.B) {
			benchmarkSaveLoad(b, factory)
		})

		b.Run("MixedUsage", func(b *testing.B) {
			benchmarkMixedUsage(b, factory(b))
		})
	})
}

func benchmarkSet(b *testing.B, database db.KVDB) {
	defer database.Close()
	requireFeature(b, database, db.FeatureSet)

	value := []byte("benchmark-value")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = database.Set(fmt.Sprintf("bench-key-%d", i), value)
	}
}

func benchmarkSetExisting(b *testing.B, database db.KVDB) {
	defer database.Close()
	requireFeature(b, database, db.FeatureSet)

	const numKeys = 100
	value := []byte("benchmark-value")
	for i := 0; i < numKeys; i++ {
		_ = database.Set(fmt.Sprintf("bench-key-%d", i), value)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = database.Set(fmt.Sprintf("bench-key-%d", i%numKeys), value)
	}
}

func benchmarkSetIfUnset(b *testing.B, database db.KVDB) {
	defer database.Close()
	requireFeature(b, database, db.FeatureSetIfUnset)

	value := []byte("benchmark-value")
	deadline := time.Now().Add(time.Hour)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = database.SetIfUnset(fmt.Sprintf("bench-key-%d", i%1000), value, deadline)
	}
}

func benchmarkGet(b *testing.B, database db.KVDB) {
	defer database.Close()
	requireFeature(b, database, db.FeatureSet|db.FeatureGet)

	const numKeys = 1000
	for i := 0; i < numKeys; i++ {
		_ = database.Set(fmt.Sprintf("bench-key-%d", i), []byte(fmt.Sprintf("value-%d", i)))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = database.Get(fmt.Sprintf("bench-key-%d", i%numKeys))
	}
}

func benchmarkHasNot(b *testing.B, database db.KVDB) {
	defer database.Close()
	requireFeature(b, database, db.FeatureHas)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = database.Has(fmt.Sprintf("missing-key-%d", i))
	}
}

func benchmarkDelete(b *testing.B, database db.KVDB) {
	defer database.Close()
	requireFeature(b, database, db.FeatureSet|db.FeatureDelete)

	for i := 0; i < b.N; i++ {
		_ = database.Set(fmt.Sprintf("bench-key-%d", i), []byte("value"))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = database.Delete(fmt.Sprintf("bench-key-%d", i))
	}
}

func benchmarkSaveLoad(b *testing.B, factory DBFactory) {
	database := factory(b)
	defer database.Close()
	requireFeature(b, database, db.FeatureSet|db.FeatureSave|db.FeatureLoad)

	for i := 0; i < 10_000; i++ {
		_ = database.Set(fmt.Sprintf("bench-key-%d", i), []byte(fmt.Sprintf("value-%d", i)))
	}

	var snapshot bytes.Buffer
	if err := database.Save(&snapshot); err != nil {
		b.Fatalf("Save failed: %v", err)
	}

	b.Run("Save", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var buf bytes.Buffer
			_ = database.Save(&buf)
		}
	})

	b.Run("Load", func(b *testing.B) {
		target := factory(b)
		defer target.Close()
		for i := 0; i < b.N; i++ {
			_ = target.Load(bytes.NewReader(snapshot.Bytes()))
		}
	})
}

func benchmarkMixedUsage(b *testing.B, database db.KVDB) {
	defer database.Close()
	requireFeature(b, database, db.FeatureSet|db.FeatureGet|db.FeatureHas|db.FeatureDelete)

	const numKeys = 1000
	for i := 0; i < numKeys; i++ {
		_ = database.Set(fmt.Sprintf("bench-key-%d", i), []byte("value"))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := fmt.Sprintf("bench-key-%d", i%numKeys)
		switch i % 10 {
		case 0:
			_ = database.Set(key, []byte("updated"))
		case 1:
			_ = database.Delete(key)
		case 2, 3:
			_, _ = database.Has(key)
		default:
			_, _, _ = database.Get(key)
		}
	}
}
