// Package testing provides standardised tests and benchmarks for
// storage engines that satisfy the db.ByteStore interface.
//
// The package contains:
//   - testing: A test suite validating the ByteStore contract and every optional
//     capability (Atomic, Ordered, Ranged, Persistent) the engine advertises
//   - benchmark: Performance tests for the access patterns of the collection layer
//   - faulty: FaultyStore, a wrapper that injects backend failures so error
//     paths of higher layers can be tested
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func() db.ByteStore {
//		return NewMyDatabase()
//	}
//
//	// Running the standard test suite
//	dbtesting.RunByteStoreTests(t, "MyDatabase", factory)
//
//	// Running performance benchmarks
//	dbtesting.RunByteStoreBenchmarks(b, "MyDatabase", factory)
package testing
