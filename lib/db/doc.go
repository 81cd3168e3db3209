// Package db provides a standardized interface for the key-value engines that back the
// entity namespace. It defines a KVDB interface so that the store and entity layers can run
// unchanged on top of an in-memory map, an embedded SQLite file, a Postgres table or an S3 bucket.
//
// The package focuses on:
//   - A unified interface for key-value operations
//   - Feature discovery through capability flags
//   - Standardized persistence operations
//   - Metadata reporting
//
// Key Components:
//
//   - KVDB Interface: The core interface that all engines must satisfy. It provides
//     basic operations (Set, Get, Has, Delete), a create-if-absent primitive with an
//     optional expiration (SetIfUnset), metadata retrieval (GetInfo) and persistence
//     operations (Save, Load).
//
//   - Feature Flags: The Feature type defines capability flags that engines advertise
//     through SupportsFeature. The S3 engine for example cannot Save or Load a whole
//     bucket, and the store layer refuses those operations instead of failing halfway.
//
//   - Database Information: DatabaseInfo reports the engine type, entry count and
//     engine-specific metadata. Sizes are estimates for most engines.
//
// Note on Expiration:
//   - Expiration is wall-clock based. An entry whose deadline passed is invisible to
//     Get and Has and counts as unset for SetIfUnset, even if the engine has not
//     physically removed it yet.
//   - SetIfUnsetAt takes the clock as an argument. The raft state machine uses it with
//     the proposer's clock, so a replica applying the log late decides the same way.
//   - Save keeps expired entries. Only reads filter them, so a snapshot does not depend
//     on the time it was taken.
//   - Only SetIfUnset accepts a deadline. Set always stores a non-expiring entry.
//     Expiring entries are used for short lived lock records (see lib/lockmgr).
//
// Related Packages:
//
//   - engines/maple: in-memory engine on an xsync map with binary Save/Load.
//   - engines/sqlite: embedded durable engine (modernc.org/sqlite, no cgo).
//   - engines/postgres: durable engine on Postgres through the pgx database/sql driver.
//   - engines/s3: object-per-key engine on any S3 compatible bucket.
//   - testing: RunKVDBTests, the conformance suite every engine runs.
package db
