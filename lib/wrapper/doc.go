// Package wrapper implements typed collections on a prefixed region of a
// store.Store:
//
//   - List: index addressed, grows at the back
//   - Deque: grows and shrinks at both ends
//   - Map: arbitrary encodable keys, ordered iteration, entry API
//   - DefaultTrait, DefaultValue: scalars whose default is stored as an
//     absent key
//   - Option: a scalar that is set or unset
//
// Handles are cheap and meant to be created per access, normally by the
// schema package. List and Deque handles of one field share their counters
// through *atomic.Uint64 values, so concurrent single pushes and pops never
// claim the same index. Compound sequences (pop then push, read then write)
// are not protected: handles embed a noCopy marker and must not be shared
// between goroutines without external locking.
//
// Consistency caveat: List and Deque claim an index before writing the
// element. A crash between the two leaves a gap, which reads report as a
// missing element. The gap is not repaired automatically.
package wrapper
