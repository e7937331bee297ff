// Package db defines the byte-level contract between the typed collection
// layer and the storage engines that hold the data.
//
// The package focuses on:
//   - A minimal ByteStore interface every engine satisfies (Get, Insert, Remove)
//   - Optional capabilities (Atomic, Ordered, Ranged, Persistent) discovered
//     at runtime through Go interfaces and Feature flags
//   - Standardized metadata reporting through DatabaseInfo
//
// Key Components:
//
//   - ByteStore: Keys and values are opaque byte slices. Engines copy values
//     on input and output so neither side can corrupt the other.
//
//   - Atomic: Single-key read-modify-write (AtomicUpdate) and compare-and-swap
//     (ConditionalUpdate). A nil expected value stands for "key absent" and a
//     nil new value for "remove", which lets callers express insert-if-absent
//     and delete-if-unchanged with one primitive.
//
//   - Ordered: Strict predecessor and successor lookups (GetLT, GetGT) over the
//     lexicographic byte order of keys. The collection layer uses them to
//     recover list and deque cursors from the stored keys.
//
//   - Ranged: Ascending scans over a half open key interval.
//
//   - Persistent: Snapshots written to and read from an io.Writer / io.Reader.
//
//   - Feature Flags: Engines advertise their capabilities with SupportsFeature.
//     The helpers AsAtomic, AsOrdered, AsRanged and AsPersistent combine the
//     type assertion with the flag check so a decorator that forwards every
//     method can still report a missing capability of the engine it wraps.
//
// Related Packages:
//
// The engines/oak package provides an ordered in-memory engine on a B-tree and
// supports every capability. The engines/maple package provides a sharded hash
// engine that is fast for point operations but has no key order.
//
// The metered package wraps any ByteStore and records operation counts and
// latencies.
//
// The testing package (github.com/ValentinKolb/dStruct/lib/db/testing) provides
// standardized tests and benchmarks for engines that satisfy the ByteStore
// interface, plus a fault injecting store for error path tests.
package db
