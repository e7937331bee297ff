// Package store provides the typed layer between application values and a
// db.ByteStore, together with the unified error handling used by every
// collection built on top of it.
//
// The package focuses on:
//   - Generic typed operations (Get, Insert, Remove, Contains) that encode keys
//     with the order preserving key codec and values with a pluggable codec
//   - Typed access to the optional backend capabilities: AtomicUpdate and
//     ConditionalUpdate (Atomic), GetLT and GetGT (Ordered) and Range
//   - A structured error type with return codes
//
// Key Components:
//
//   - Store: Holds the byte store and the value codec. Go methods cannot have
//     type parameters, so the typed operations are package level functions
//     taking the Store as first argument.
//
//   - Maybe: An optional value used by ConditionalUpdate. None on the expected
//     side means "the key must be absent", None on the new side means "remove".
//
//   - Error System: Every error returned by this package and by the collection
//     packages is an *Error. Its code tells the caller what went wrong:
//     RetCSerialization for codec failures (the store is left unchanged),
//     RetCBackend for engine failures (the cause is kept and can be unwrapped),
//     RetCUnsupportedOperation when the engine lacks a capability and
//     RetCInvalidOperation for violated preconditions. The Err* sentinels
//     match by code with errors.Is.
//
// Absent keys are never errors: lookups report them with a loaded flag.
package store
