// Package cmd implements the dstruct command-line tool. It works on the
// in-memory engines of lib/db and keeps state between invocations in
// snapshot files.
//
// The package is organized into several subpackages:
//
//   - demo: Runs the primes scenario on a schema stored in a snapshot
//   - inspect: Prints the layout and statistics of a snapshot
//   - perf: Benchmarks the collection types on an engine
//   - lock: Acquires and releases field locks stored in a snapshot
//   - util: Shared utilities for flags, configuration and snapshots (internal use)
//
// Every flag can also be set through the environment as DSTRUCT_<FLAG>
// (e.g. DSTRUCT_ENGINE=maple), including .env and .env.local files.
//
// See dstruct -help for a list of all commands.
package cmd
