package maple

import (
	"cmp"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/veridian-dash/veridian/lib/db"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	magicNum             = "MAPLEDB\x00"   // File format identifier
	defaultSweepInterval = 1 * time.Second // Default interval between sweeps
	entryOverhead        = 16              // deadline + length prefixes
)

const supportedFeatures = db.FeatureSet |
	db.FeatureSetIfUnset |
	db.FeatureGet |
	db.FeatureDelete |
	db.FeatureHas |
	db.FeatureTTL |
	db.FeatureSave |
	db.FeatureLoad

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

type entry struct {
	value     []byte
	expiresAt int64 // unix nanos, 0 = never
}

type mapleImpl struct {
	data *xsync.MapOf[string, entry]

	sweepInterval time.Duration
	sweeps        atomic.Uint64
	swept         atomic.Uint64
	stop          chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup

	// loadMu guards the data pointer, Load swaps it
	loadMu sync.RWMutex
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	SweepInterval  time.Duration // Time between expiry sweeps (0 = use default: 1 sec)
	DisableSweeper bool          // Keep expired entries until they are overwritten or deleted (raft replicas)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		SweepInterval: defaultSweepInterval,
	}
}

// NewMapleDB creates a new MapleDB instance with the specified options (optional)
func NewMapleDB(opts *DBOptions) db.KVDB {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = defaultSweepInterval
	}

	m := &mapleImpl{
		data:          xsync.NewMapOf[string, entry](),
		sweepInterval: opts.SweepInterval,
		stop:          make(chan struct{}),
	}
	if opts.DisableSweeper {
		m.sweepInterval = 0
		return m
	}

	m.wg.Add(1)
	go m.sweeper()

	return m
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

// Set inserts or updates an entry. The entry never expires.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (m *mapleImpl) Set(key string, value []byte) error {
	m.loadMu.RLock()
	defer m.loadMu.RUnlock()

	m.data.Store(key, entry{value: clone(value)})
	return nil
}

// SetIfUnset stores the value only if the key is absent or expired.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (m *mapleImpl) SetIfUnset(key string, value []byte, expiresAt time.Time) (bool, error) {
	return m.SetIfUnsetAt(key, value, expiresAt, time.Now())
}

// SetIfUnsetAt stores the value only if the key is absent or expired at now.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (m *mapleImpl) SetIfUnsetAt(key string, value []byte, expiresAt, now time.Time) (bool, error) {
	m.loadMu.RLock()
	defer m.loadMu.RUnlock()

	stored := false
	m.data.Compute(key, func(old entry, loaded bool) (entry, bool) {
		if loaded && !db.Expired(old.expiresAt, now) {
			return old, false
		}
		stored = true
		return entry{value: clone(value), expiresAt: db.UnixNano(expiresAt)}, false
	})
	return stored, nil
}

// Delete removes the key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (m *mapleImpl) Delete(key string) error {
	m.loadMu.RLock()
	defer m.loadMu.RUnlock()

	m.data.Delete(key)
	return nil
}

// --------------------------------------------------------------------------
// Query Operations
// --------------------------------------------------------------------------

// Get returns a copy of the value stored for the key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (m *mapleImpl) Get(key string) ([]byte, bool, error) {
	m.loadMu.RLock()
	defer m.loadMu.RUnlock()

	e, ok := m.data.Load(key)
	if !ok || db.Expired(e.expiresAt, time.Now()) {
		return nil, false, nil
	}
	return clone(e.value), true, nil
}

// Has reports whether a non-expired entry exists for the key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (m *mapleImpl) Has(key string) (bool, error) {
	m.loadMu.RLock()
	defer m.loadMu.RUnlock()

	e, ok := m.data.Load(key)
	return ok && !db.Expired(e.expiresAt, time.Now()), nil
}

// --------------------------------------------------------------------------
// Expiry sweeper
// --------------------------------------------------------------------------

func (m *mapleImpl) sweeper() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.sweep(now)
		}
	}
}

// sweep removes entries that were already expired at now.
// The deadline is checked again inside Compute so a concurrent SetIfUnset wins.
func (m *mapleImpl) sweep(now time.Time) {
	m.loadMu.RLock()
	defer m.loadMu.RUnlock()

	var expired []string
	m.data.Range(func(key string, e entry) bool {
		if db.Expired(e.expiresAt, now) {
			expired = append(expired, key)
		}
		return true
	})

	for _, key := range expired {
		m.data.Compute(key, func(old entry, loaded bool) (entry, bool) {
			if !loaded || !db.Expired(old.expiresAt, now) {
				return old, !loaded
			}
			m.swept.Add(1)
			return old, true
		})
	}
	m.sweeps.Add(1)
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save writes a snapshot of all entries ordered by key. Expired entries are kept with their
// deadline, reads after Load filter them as before.
//
// Thread-safety: Writers are not blocked, the snapshot is fuzzy.
func (m *mapleImpl) Save(w io.Writer) error {
	var entries []db.SnapshotEntry

	m.loadMu.RLock()
	m.data.Range(func(key string, e entry) bool {
		entries = append(entries, db.SnapshotEntry{Key: key, Value: e.value, ExpiresAt: e.expiresAt})
		return true
	})
	m.loadMu.RUnlock()

	slices.SortFunc(entries, func(a, b db.SnapshotEntry) int { return cmp.Compare(a.Key, b.Key) })
	return db.WriteSnapshot(w, magicNum, entries)
}

// Load replaces the database state with a snapshot written by Save.
//
// Thread-safety: All operations are blocked while the state is replaced.
func (m *mapleImpl) Load(r io.Reader) error {
	data := xsync.NewMapOf[string, entry]()
	err := db.ReadSnapshot(r, magicNum, func(e db.SnapshotEntry) error {
		data.Store(e.Key, entry{value: e.Value, expiresAt: e.ExpiresAt})
		return nil
	})
	if err != nil {
		return err
	}

	m.loadMu.Lock()
	m.data = data
	m.loadMu.Unlock()
	return nil
}

// --------------------------------------------------------------------------
// Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (m *mapleImpl) GetInfo() db.DatabaseInfo {
	now := time.Now()
	entries, sizeBytes, expiredBacklog := 0, 0, 0
	m.loadMu.RLock()
	m.data.Range(func(key string, e entry) bool {
		entries++
		sizeBytes += len(key) + len(e.value) + entryOverhead
		if db.Expired(e.expiresAt, now) {
			expiredBacklog++
		}
		return true
	})
	m.loadMu.RUnlock()

	meta := &struct {
		ExpiredBacklog int    `json:"expired_backlog"`
		Sweeps         uint64 `json:"sweeps"`
		Swept          uint64 `json:"swept"`
		SweepInterval  string `json:"sweep_interval,omitempty"`
	}{
		ExpiredBacklog: expiredBacklog,
		Sweeps:         m.sweeps.Load(),
		Swept:          m.swept.Load(),
	}
	if m.sweepInterval > 0 {
		meta.SweepInterval = m.sweepInterval.String()
	}

	return db.DatabaseInfo{
		SizeBytes:         sizeBytes,
		Entries:           entries,
		DbType:            db.ImplMaple,
		SupportedFeatures: db.Features(supportedFeatures),
		Metadata:          meta,
	}
}

// SupportsFeature checks if this implementation supports a specific KVDB feature
func (m *mapleImpl) SupportsFeature(feature db.Feature) bool {
	return supportedFeatures&feature == feature
}

// Close stops the sweeper
func (m *mapleImpl) Close() error {
	m.stopOnce.Do(func() {
		close(m.stop)
	})
	m.wg.Wait()
	return nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
