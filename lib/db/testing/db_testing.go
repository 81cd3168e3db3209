package testing

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/veridian-dash/veridian/lib/db"
)

// DBFactory is a function that creates a new, empty instance of a KVDB implementation
type DBFactory func(t testing.TB) db.KVDB

// RunKVDBTests runs the conformance test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory(t))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory(t))
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, factory(t))
		})

		t.Run("SetIfUnset", func(t *testing.T) {
			testSetIfUnset(t, factory(t))
		})

		t.Run("Expiry", func(t *testing.T) {
			testExpiry(t, factory(t))
		})

		t.Run("SetIfUnsetAt", func(t *testing.T) {
			testSetIfUnsetAt(t, factory(t))
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory(t))
		})

		t.Run("ManyKeys", func(t *testing.T) {
			testManyKeys(t, factory(t))
		})

		t.Run("ConcurrentSetIfUnset", func(t *testing.T) {
			testConcurrentSetIfUnset(t, factory(t))
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory(t))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skipf("feature %s not supported", feature)
	}
}

func mustNoErr(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
}

func get(t testing.TB, database db.KVDB, key string) ([]byte, bool) {
	t.Helper()
	value, ok, err := database.Get(key)
	mustNoErr(t, err)
	return value, ok
}

func has(t testing.TB, database db.KVDB, key string) bool {
	t.Helper()
	ok, err := database.Has(key)
	mustNoErr(t, err)
	return ok
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	mustNoErr(t, database.Set(testKey, testValue1))

	result, exists := get(t, database, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	mustNoErr(t, database.Set(testKey, testValue2))

	result, exists = get(t, database, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	if _, exists = get(t, database, "nonexistent-key"); exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}

	retrievedValue, _ := get(t, database, testKey)
	retrievedValue[0] = 'X'

	originalValue, _ := get(t, database, testKey)
	if bytes.Equal(retrievedValue, originalValue) {
		t.Errorf("Get should return a copy, not a reference to the stored value")
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	testKey := "delete-test-key"
	mustNoErr(t, database.Set(testKey, []byte("delete-test-value")))

	if _, exists := get(t, database, testKey); !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}

	mustNoErr(t, database.Delete(testKey))

	if _, exists := get(t, database, testKey); exists {
		t.Errorf("Expected key %s to not exist after Delete", testKey)
	}

	// deleting a missing key is a no-op
	mustNoErr(t, database.Delete(testKey))
	mustNoErr(t, database.Delete("nonexistent-key"))
}

func testHas(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureDelete|db.FeatureHas)

	testKey := "has-test-key"

	if has(t, database, testKey) {
		t.Errorf("Expected Has to return false for nonexistent key")
	}

	mustNoErr(t, database.Set(testKey, []byte("has-test-value")))

	if !has(t, database, testKey) {
		t.Errorf("Expected Has to return true after Set")
	}

	mustNoErr(t, database.Delete(testKey))

	if has(t, database, testKey) {
		t.Errorf("Expected Has to return false after Delete")
	}
}

func testSetIfUnset(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSetIfUnset|db.FeatureGet)

	testKey := "set-if-unset-key"
	testValue1 := []byte("first")
	testValue2 := []byte("second")

	stored, err := database.SetIfUnset(testKey, testValue1, time.Time{})
	mustNoErr(t, err)
	if !stored {
		t.Errorf("Expected first SetIfUnset to store the value")
	}

	stored, err = database.SetIfUnset(testKey, testValue2, time.Time{})
	mustNoErr(t, err)
	if stored {
		t.Errorf("Expected second SetIfUnset to be rejected")
	}

	result, exists := get(t, database, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after SetIfUnset", testKey)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}
}

func testExpiry(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSetIfUnset|db.FeatureGet|db.FeatureHas|db.FeatureTTL)

	testKey := "expiring-key"
	testValue := []byte("expiring-value")

	// an entry that expired in the past is invisible right away
	stored, err := database.SetIfUnset(testKey, testValue, time.Now().Add(-time.Second))
	mustNoErr(t, err)
	if !stored {
		t.Errorf("Expected SetIfUnset to store the value")
	}
	if _, exists := get(t, database, testKey); exists {
		t.Errorf("Expired key should not be returned by Get")
	}
	if has(t, database, testKey) {
		t.Errorf("Expired key should not be reported by Has")
	}

	// an expired entry counts as unset
	stored, err = database.SetIfUnset(testKey, testValue, time.Now().Add(time.Hour))
	mustNoErr(t, err)
	if !stored {
		t.Errorf("Expected SetIfUnset to overwrite an expired entry")
	}
	result, exists := get(t, database, testKey)
	if !exists || !bytes.Equal(result, testValue) {
		t.Errorf("Expected value %s, got %s (exists=%v)", testValue, result, exists)
	}

	// short lived entry expires while we wait
	shortKey := "short-lived-key"
	_, err = database.SetIfUnset(shortKey, testValue, time.Now().Add(50*time.Millisecond))
	mustNoErr(t, err)
	if !has(t, database, shortKey) {
		t.Errorf("Key should exist before its deadline")
	}
	time.Sleep(100 * time.Millisecond)
	if has(t, database, shortKey) {
		t.Errorf("Key should not exist after its deadline")
	}

	// Set clears the expiration
	mustNoErr(t, database.Set(shortKey, testValue))
	if !has(t, database, shortKey) {
		t.Errorf("Key should exist after Set")
	}
}

// testSetIfUnsetAt checks that the given clock, not the wall clock, decides whether an entry is expired
func testSetIfUnsetAt(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSetIfUnset|db.FeatureGet|db.FeatureTTL)

	now := time.Now()
	key := "clocked-key"

	stored, err := database.SetIfUnsetAt(key, []byte("first"), now.Add(time.Hour), now)
	mustNoErr(t, err)
	if !stored {
		t.Fatalf("Expected SetIfUnsetAt to store an absent key")
	}

	// live on the wall clock, expired on the given clock
	stored, err = database.SetIfUnsetAt(key, []byte("second"), now.Add(-time.Minute), now.Add(2*time.Hour))
	mustNoErr(t, err)
	if !stored {
		t.Errorf("Expected SetIfUnsetAt to replace an entry expired at the given time")
	}

	// expired on the wall clock, live on the given clock
	stored, err = database.SetIfUnsetAt(key, []byte("third"), time.Time{}, now.Add(-2*time.Minute))
	mustNoErr(t, err)
	if stored {
		t.Errorf("Expected SetIfUnsetAt to keep an entry that is live at the given time")
	}

	// the wall clock still governs reads
	if _, exists := get(t, database, key); exists {
		t.Errorf("Expected the entry to be invisible once its deadline passed")
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	database := factory(t)
	database2 := factory(t)

	defer database.Close()
	defer database2.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureSave|db.FeatureLoad)

	numEntries := 1000
	for i := 0; i < numEntries; i++ {
		key := fmt.Sprintf("save-load-test-key-%d", i)
		value := []byte(fmt.Sprintf("save-load-test-value-%d", i))
		mustNoErr(t, database.Set(key, value))
	}

	// expired entries stay invisible after a round trip
	_, err := database.SetIfUnset("save-load-expired", []byte("gone"), time.Now().Add(-time.Second))
	mustNoErr(t, err)

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		t.Fatalf("Unexpected error during Save: %v", err)
	}

	mustNoErr(t, database2.Set("stale-key", []byte("stale")))
	if err := database2.Load(&buf); err != nil {
		t.Fatalf("Unexpected error during Load: %v", err)
	}

	for i := 0; i < numEntries; i++ {
		key := fmt.Sprintf("save-load-test-key-%d", i)
		expectedValue := []byte(fmt.Sprintf("save-load-test-value-%d", i))

		actualValue, exists := get(t, database2, key)
		if !exists {
			t.Errorf("Key %s not found after Load", key)
			continue
		}
		if !bytes.Equal(actualValue, expectedValue) {
			t.Errorf("Value mismatch for key %s: expected %s, got %s", key, expectedValue, actualValue)
		}
	}

	if _, exists := get(t, database2, "stale-key"); exists {
		t.Errorf("Load should replace the previous state")
	}
	if _, exists := get(t, database2, "save-load-expired"); exists {
		t.Errorf("Expired entries should stay invisible after Save/Load")
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	emptyValueKey := "empty-value-key"
	mustNoErr(t, database.Set(emptyValueKey, []byte{}))

	result, exists := get(t, database, emptyValueKey)
	if !exists {
		t.Errorf("Key for empty value not found after Set")
	} else if len(result) != 0 {
		t.Errorf("Empty value resulted in non-empty value: %v", result)
	}

	nilValueKey := "nil-value-key"
	mustNoErr(t, database.Set(nilValueKey, nil))

	result, exists = get(t, database, nilValueKey)
	if !exists {
		t.Errorf("Key for nil value not found after Set")
	} else if len(result) != 0 {
		t.Errorf("Nil value resulted in non-empty value: %v", result)
	}

	separatorKey := "user:__index__"
	mustNoErr(t, database.Set(separatorKey, []byte(`{"ids":["u1"]}`)))
	result, exists = get(t, database, separatorKey)
	if !exists || string(result) != `{"ids":["u1"]}` {
		t.Errorf("Key with separators mismatch: %s (exists=%v)", result, exists)
	}

	largeValueKey := "large-value-key"
	largeValue := make([]byte, 1024*1024)
	for i := range largeValue {
		largeValue[i] = byte(i % 256)
	}
	mustNoErr(t, database.Set(largeValueKey, largeValue))

	result, exists = get(t, database, largeValueKey)
	if !exists {
		t.Errorf("Key for large value not found after Set")
	} else if !bytes.Equal(result, largeValue) {
		t.Errorf("Large value mismatch (got %d bytes, want %d)", len(result), len(largeValue))
	}
}

func testManyKeys(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	prefix := "many-keys-"
	numKeys := 500

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("%s%d", prefix, i)
		mustNoErr(t, database.Set(key, []byte(fmt.Sprintf("value-%d", i))))
	}

	for i := 0; i < numKeys; i += 2 {
		mustNoErr(t, database.Delete(fmt.Sprintf("%s%d", prefix, i)))
	}

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("%s%d", prefix, i)
		value, exists := get(t, database, key)

		if i%2 == 0 {
			if exists {
				t.Errorf("Key %s should be deleted", key)
			}
			continue
		}
		if !exists {
			t.Errorf("Key %s should still exist", key)
		} else if string(value) != fmt.Sprintf("value-%d", i) {
			t.Errorf("Value for key %s does not match: got %s", key, value)
		}
	}
}

func testConcurrentSetIfUnset(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSetIfUnset|db.FeatureGet)

	const numWorkers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners int
		errs    []error
	)

	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func(workerID int) {
			defer wg.Done()
			stored, err := database.SetIfUnset("contended-key", []byte(fmt.Sprintf("worker-%d", workerID)), time.Time{})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if stored {
				winners++
			}
		}(w)
	}
	wg.Wait()

	for _, err := range errs {
		t.Errorf("Unexpected error during concurrent SetIfUnset: %v", err)
	}
	if winners != 1 {
		t.Errorf("Expected exactly one SetIfUnset to win, got %d", winners)
	}
}

func testInfo(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet)

	mustNoErr(t, database.Set("info-key", []byte("info-value")))

	info := database.GetInfo()
	if info.DbType == "" {
		t.Errorf("Expected DbType to be set")
	}
	if len(info.SupportedFeatures) == 0 {
		t.Errorf("Expected at least one supported feature")
	}
	for _, f := range info.SupportedFeatures {
		if !database.SupportsFeature(f) {
			t.Errorf("Info reports feature %s but SupportsFeature disagrees", f)
		}
	}
}
