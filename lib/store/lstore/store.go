package lstore

import (
	"fmt"
	"time"

	"github.com/rcrowley/go-metrics"
	"github.com/veridian-dash/veridian/lib/db"
	"github.com/veridian-dash/veridian/lib/store"
)

type storeImpl struct {
	db       db.KVDB
	registry metrics.Registry
}

// NewLocalStore creates a new local store instance.
// This store implementation is not distributed and only works on a single node.
func NewLocalStore(factory store.DBFactory) store.IStore {
	return &storeImpl{
		db:       factory(),
		registry: metrics.NewRegistry(),
	}
}

// timed records the duration of one operation under name.
func (s *storeImpl) timed(name string, start time.Time) {
	metrics.GetOrRegisterTimer(name, s.registry).UpdateSince(start)
}

// failed counts a failed operation and wraps the engine error.
func (s *storeImpl) failed(name string, err error) error {
	metrics.GetOrRegisterCounter(name+".errors", s.registry).Inc(1)
	return store.NewError(store.RetCInternalError, fmt.Sprintf("%s: %v", name, err))
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(key string, value []byte) error {
	if !s.db.SupportsFeature(db.FeatureSet) {
		return store.NewError(store.RetCUnsupportedOperation, "Set operation is not supported")
	}
	defer s.timed("set", time.Now())
	if err := s.db.Set(key, value); err != nil {
		return s.failed("set", err)
	}
	return nil
}

func (s *storeImpl) SetIfUnset(key string, value []byte, ttl time.Duration) (bool, error) {
	if !s.db.SupportsFeature(db.FeatureSetIfUnset) {
		return false, store.NewError(store.RetCUnsupportedOperation, "SetIfUnset operation is not supported")
	}
	var expiresAt time.Time
	if ttl > 0 {
		if !s.db.SupportsFeature(db.FeatureTTL) {
			return false, store.NewError(store.RetCUnsupportedOperation, "expiring entries are not supported")
		}
		expiresAt = time.Now().Add(ttl)
	}
	defer s.timed("set_if_unset", time.Now())
	stored, err := s.db.SetIfUnset(key, value, expiresAt)
	if err != nil {
		return false, s.failed("set_if_unset", err)
	}
	return stored, nil
}

func (s *storeImpl) Delete(key string) error {
	if !s.db.SupportsFeature(db.FeatureDelete) {
		return store.NewError(store.RetCUnsupportedOperation, "Delete operation is not supported")
	}
	defer s.timed("delete", time.Now())
	if err := s.db.Delete(key); err != nil {
		return s.failed("delete", err)
	}
	return nil
}

func (s *storeImpl) Get(key string) ([]byte, bool, error) {
	if !s.db.SupportsFeature(db.FeatureGet) {
		return nil, false, store.NewError(store.RetCUnsupportedOperation, "Get operation is not supported")
	}
	defer s.timed("get", time.Now())
	val, ok, err := s.db.Get(key)
	if err != nil {
		return nil, false, s.failed("get", err)
	}
	return val, ok, nil
}

func (s *storeImpl) Has(key string) (bool, error) {
	if !s.db.SupportsFeature(db.FeatureHas) {
		return false, store.NewError(store.RetCUnsupportedOperation, "Has operation is not supported")
	}
	defer s.timed("has", time.Now())
	ok, err := s.db.Has(key)
	if err != nil {
		return false, s.failed("has", err)
	}
	return ok, nil
}

// GetDBInfo returns the engine info. The engine metadata is moved to "engine" and the
// per-operation timers of this store are added under "operations".
func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	info := s.db.GetInfo()
	info.Metadata = map[string]any{
		"engine":     info.Metadata,
		"operations": OperationStats(s.registry),
	}
	return info, nil
}

func (s *storeImpl) Close() error {
	return s.db.Close()
}

// OpStats summarizes one timer of the registry.
type OpStats struct {
	Count  int64   `json:"count"`
	Errors int64   `json:"errors"`
	MeanMs float64 `json:"mean_ms"`
	P99Ms  float64 `json:"p99_ms"`
}

// OperationStats collects all timers (and their error counters) of a registry.
func OperationStats(r metrics.Registry) map[string]OpStats {
	out := map[string]OpStats{}
	r.Each(func(name string, m interface{}) {
		timer, ok := m.(metrics.Timer)
		if !ok {
			return
		}
		snap := timer.Snapshot()
		stats := OpStats{
			Count:  snap.Count(),
			MeanMs: snap.Mean() / float64(time.Millisecond),
			P99Ms:  snap.Percentile(0.99) / float64(time.Millisecond),
		}
		if c, ok := r.Get(name + ".errors").(metrics.Counter); ok {
			stats.Errors = c.Count()
		}
		out[name] = stats
	})
	return out
}
