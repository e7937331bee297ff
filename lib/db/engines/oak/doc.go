// Package oak implements an ordered in-memory ByteStore on a B-tree
// (github.com/google/btree). It supports every optional capability of the db
// package and is the default engine for collections that need ordered lookups
// (lists and deques recover their bounds with GetLT and GetGT).
//
// Concurrency:
//
//   - A single RWMutex guards the tree. Reads (Get, GetLT, GetGT) share the
//     lock; Insert, Remove, AtomicUpdate and ConditionalUpdate hold it
//     exclusively, which makes every single key operation linearizable.
//   - Range copies entries in batches of 256 and calls the callback without
//     holding the lock, so callbacks may write to the database.
//
// Persistence Format:
//
//  1. Magic number "OAKDB\x00\x00\x00"
//  2. Version number (currently 1)
//  3. Number of entries
//  4. For each entry in key order: key length, key, value length, value
//
// Load parses the whole snapshot before swapping it in, so a corrupt snapshot
// leaves the database unchanged.
package oak
