// Package lockmgr implements owner-token locks on top of any store.IStore.
//
// The lock manager keeps no state of its own, it can be created per request as long
// as the same store is used. The entity layer uses it for MutateExclusive.
//
// Implementation Approach:
//
//	- Lock Acquisition: SetIfUnset with a random 256 bit owner ID as value. The store
//	  guarantees that only one caller stores the key, the returned flag tells the caller
//	  whether it holds the lock. There is no waiting or retrying.
//
//	- Timeouts: The lock record is written with a TTL and disappears on its own if the
//	  holder crashes.
//
//	- Release: Get, compare the owner ID, Delete. If the lock expired and was taken by
//	  another owner in the meantime, the release reports false and leaves it alone. Get and
//	  Delete are two operations, a lock that expires exactly in between can be removed
//	  although it was just re-acquired; keep the TTL well above the critical section.
//
// Usage Example:
//
//	locks := lockmgr.NewLockManager(store)
//
//	acquired, ownerID, err := locks.AcquireLock("chat:c1:__lock__", 5*time.Second)
//	if err != nil { ... }
//	if acquired {
//		defer locks.ReleaseLock("chat:c1:__lock__", ownerID)
//		// ...
//	}
package lockmgr
