// Package internal defines the raft log entries and lookup queries of the dstore package.
//
// Command Format:
//
//	- 1 byte: Command type (Set, SetIfUnset, Delete)
//	- 8 bytes: ExpiresAt (unix nanoseconds, big endian, 0 = never)
//	- 8 bytes: Now, the proposer's clock (unix nanoseconds, big endian)
//	- 4 bytes: Key length (uint32, big endian)
//	- N bytes: Key data
//	- M bytes: Value data (optional, only present for Set-type operations)
//
// Lookups (query.go) are executed locally on the state machine and are never serialized.
package internal
