// Package maple implements an in-memory key-value database (KVDB) on top of a
// concurrent xsync map. It is the default engine for the memory store backend and
// for all unit tests of the store, entity and api packages.
//
// The package focuses on:
//   - Lock-minimal concurrent access through xsync.MapOf
//   - Wall-clock expiration of entries written with SetIfUnset
//   - A background sweeper that reclaims expired entries
//   - Persistent snapshots in a compact binary encoding
//
// Internal Mechanisms:
//
//   - Conditional Writes: SetIfUnset is a single Compute call on the map, so two
//     concurrent callers for the same key can never both store their value. An
//     expired entry counts as unset.
//
//   - Expiration: Every entry carries an absolute deadline in unix nanoseconds (0 =
//     never). Get and Has check the deadline themselves, the sweeper only frees memory.
//     The sweeper runs every SweepInterval and removes an entry only if it is still
//     expired inside the Compute callback, so it never races with a fresh write.
//     DisableSweeper turns it off for raft replicas, whose state may only change through
//     the log. SetIfUnsetAt then decides expiry with the clock carried by the entry.
//
//   - Persistence Format:
//     1. Magic number "MAPLEDB\x00" to identify the file format
//     2. Version number (currently 4)
//     3. Number of entries
//     4. For each entry: key length, key bytes, deadline, value length, value bytes
//     Save produces a fuzzy snapshot (writers are not blocked). Expired entries are kept.
//     Load replaces the whole state.
package maple
