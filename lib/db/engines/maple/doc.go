// Package maple implements a high-performance unordered ByteStore with
// sharded data. It provides Get, Insert and Remove, the Atomic capability
// (AtomicUpdate, ConditionalUpdate) and snapshots, but no key order: Ordered
// and Ranged are not advertised, so collections that recover their bounds
// from the key order (List, Deque) refuse to open on it.
//
// Key Components:
//
//   - mapleImpl: The central database structure implementing db.ByteStore.
//     It owns the shards and the hash seed.
//
//   - Shard: A partition of the database that manages a subset of the key
//     space in an xsync.MapOf. Shards operate independently to minimize lock
//     contention. Keys are spread across shards by a seeded FNV-1a hash whose
//     low 7 bits are dropped before the modulo.
//
// Internal Mechanisms:
//
//   - Atomic updates run inside xsync.MapOf.Compute, which holds the bucket
//     lock of the key while the callback runs. The callback is therefore
//     called exactly once and must not call back into the database.
//
//   - Persistence Format: The database uses a compact binary format with the
//     following structure:
//     1. Magic number "MAPLEDB\x00" to identify the file format
//     2. Version number (currently 4)
//     3. Database seed value for hash function consistency
//     4. Number of entries
//     5. For each entry: key length, key, value length, value
//     Save does not stop writers, so the snapshot is fuzzy. Load parses into
//     fresh shards and swaps them in only on success.
//
//   - Metrics and Monitoring: GetInfo reports the exact number of entries,
//     a sampled size estimate, the shard distribution and per-prefix counts.
package maple
