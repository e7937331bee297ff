// Package util provides helpers shared by the storage engines and tools
// that work on db.ByteStore implementations.
//
// The package contains:
//   - statistics: summary and distribution statistics, a SizeHistogram for
//     tracking entry sizes and PrefixStats for grouping entries by their
//     collection prefix
//   - functions: seed generation, byte hashing and shard selection
//
// The engines use it to report estimates in GetInfo without full scans, and
// the command line tools use PrefixStats to describe the contents of a snapshot.
package util
