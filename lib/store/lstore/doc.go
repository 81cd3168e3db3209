// Package lstore implements a single-node store.IStore on top of any db.KVDB engine.
//
// The store checks the engine's feature flags before each call, converts relative TTLs
// into absolute deadlines and records the latency of every operation in a go-metrics
// registry. GetDBInfo reports the engine info together with these timers, the health
// endpoint of the HTTP API shows them as they are.
//
// Usage Example:
//
//	factory := func() db.KVDB { return maple.NewMapleDB(nil) }
//	s := lstore.NewLocalStore(factory)
//
//	stored, err := s.SetIfUnset("user:u1", []byte(`{"id":"u1","name":"User A"}`), 0)
//	value, exists, err := s.Get("user:u1")
package lstore
