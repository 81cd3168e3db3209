// Package store provides the key-value namespace that the entity layer operates on.
// It wraps the lower-level db.KVDB engines, turns engine failures into a typed Error and
// translates relative TTLs into the absolute deadlines the engines work with.
//
// Key Components:
//
//   - IStore Interface: Set, SetIfUnset, Get, Has, Delete and GetDBInfo. Each call is
//     atomic on its own. Callers that need more (the entity index, read-modify-write)
//     build it on top and document their own guarantees.
//
//   - Error System: Error carries a RetCode so callers can tell unsupported operations,
//     timeouts and internal failures apart.
//
//   - DBFactory: abstracts the creation of the underlying db.KVDB instance.
//
// Implementations:
//
//	- Local Store (lstore): calls one db.KVDB directly and records per-operation timers.
//	  Used for the memory, sqlite, postgres and s3 backends.
//
//	- Distributed Store (dstore): replicates every write through the Dragonboat RAFT
//	  library. Reads are linearizable. Used for the raft backend.
package store
