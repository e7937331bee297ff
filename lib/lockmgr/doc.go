// Package lockmgr implements advisory locks on top of a store.Store. It
// gives callers of the collection wrappers a way to run compound sequences
// (read then write, pop then push) without interference from other
// goroutines using the same store.
//
// The lock manager only ever stores in the provided store and has no other
// internal state. Therefore it is safe to be created multiple times on the
// same store. As long as the same store is used every time, all locks will
// work as expected.
//
// Implementation Approach:
//
//	Lock records live under keys.LockPrefix, keyed by the lock name, so they
//	never collide with schema fields.
//
//	- Lock Acquisition: A ConditionalUpdate against "absent" creates the
//	  record with a random owner ID (a UUID). Only one requester can succeed.
//
//	- Safe Release: A ConditionalUpdate against the owner ID removes the
//	  record, so only the holder can release it.
//
//	- Waiting: WithLock polls AcquireLock with a growing interval until the
//	  lock is free or its context is done.
//
// Locks have no timeout. A holder that never releases blocks the key until
// the record is removed by hand.
//
// Usage Example:
//
//	lm := lockmgr.NewLockManager(s)
//	err := lockmgr.WithLock(ctx, lm, "queue", func() error {
//		// compound sequence on the queue field
//		return nil
//	})
package lockmgr
