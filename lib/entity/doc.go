// Package entity maps typed records onto a store.IStore key-value namespace.
//
// Two strategies share one Schema:
//
//	- Kind[T] stores one JSON encoded state per id under <kind>:<id>. Alert configurations
//	  use it with a fixed id.
//	- Collection[T] composes a Kind with an index record under <kind>:__index__ that keeps
//	  the member ids in insertion order and the seeded marker. It adds cursor paginated
//	  listing, bulk delete and one-time seeding. Users and chat boards use it.
//
// Nothing is cached. Every call reads or writes the store, so handles can be created per
// request. Single store operations are atomic, sequences are not:
//
//	- Create uses SetIfUnset, two creators of the same id cannot both succeed.
//	- Mutate is a Get followed by a Set. Concurrent mutations of one record lose updates
//	  (last write wins). MutateExclusive takes a lockmgr lock on <kind>:<id>:__lock__ and
//	  fails with ErrBusy if it is held.
//	- Index updates are read-modify-write as well and race the same way.
//
// Errors are *Error values with a RetCode and match the sentinels through errors.Is:
//
//	if errors.Is(err, entity.ErrNotFound) { ... }
//
// Store failures are wrapped and match ErrInternal, the store error stays reachable
// through errors.As.
package entity
